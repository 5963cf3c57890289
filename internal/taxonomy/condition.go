// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package taxonomy

import (
	"github.com/bonial-oss/physec-risk/internal/response"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// Match is a predicate over a single answer. All set fields must hold; the
// zero Match never holds. Absent answers never match.
type Match struct {
	Is            string   `yaml:"is" json:"is,omitempty"`
	Any           []string `yaml:"any" json:"any,omitempty"`
	NoneOf        []string `yaml:"none_of" json:"noneOf,omitempty"`
	RatingAtMost  int      `yaml:"rating_at_most" json:"ratingAtMost,omitempty"`
	RatingAtLeast int      `yaml:"rating_at_least" json:"ratingAtLeast,omitempty"`
}

// IsZero reports whether no predicate is set.
func (m Match) IsZero() bool {
	return m.Is == "" && len(m.Any) == 0 && len(m.NoneOf) == 0 && m.RatingAtMost == 0 && m.RatingAtLeast == 0
}

// Holds evaluates the predicate against the answer to question q.
func (m Match) Holds(r response.Responses, q string) bool {
	if m.IsZero() || !r.Answered(q) {
		return false
	}
	switch m.Is {
	case "":
	case "yes":
		if r.YesNo(q) != response.Yes {
			return false
		}
	case "no":
		if r.YesNo(q) != response.No {
			return false
		}
	default:
		return false
	}
	if len(m.Any) > 0 && !r.Contains(q, m.Any...) {
		return false
	}
	if len(m.NoneOf) > 0 && r.Contains(q, m.NoneOf...) {
		return false
	}
	if m.RatingAtMost > 0 || m.RatingAtLeast > 0 {
		if r[q].Kind() != response.KindRating {
			return false
		}
		v := r.Rating(q)
		if m.RatingAtMost > 0 && v > m.RatingAtMost {
			return false
		}
		if m.RatingAtLeast > 0 && v < m.RatingAtLeast {
			return false
		}
	}
	return true
}

// Sample returns a raw answer that satisfies the predicate (gap=true) or
// clearly does not (gap=false). Useful for building fixtures.
func (m Match) Sample(gap bool) any {
	switch {
	case m.Is == "yes":
		if gap {
			return "yes"
		}
		return "no"
	case m.Is == "no":
		if gap {
			return "no"
		}
		return "yes"
	case len(m.Any) > 0:
		if gap {
			return []any{m.Any[0]}
		}
		return nil
	case len(m.NoneOf) > 0:
		if gap {
			return "unspecified"
		}
		return m.NoneOf[0]
	case m.RatingAtMost > 0:
		if gap {
			return float64(response.RatingMin)
		}
		return float64(response.RatingMax)
	case m.RatingAtLeast > 0:
		if gap {
			return float64(response.RatingMax)
		}
		return float64(response.RatingMin)
	}
	return nil
}

// Condition gates a rule. Set parts are combined with AND; an empty
// condition never holds.
//
//	profile:  a profile flag is set
//	tier/min: a profile tier is at least min
//	gap:      the named question's gap rule holds
//	question: the inline Match holds for the named question
type Condition struct {
	Profile  string `yaml:"profile"`
	Tier     string `yaml:"tier"`
	Min      int    `yaml:"min"`
	Gap      string `yaml:"gap"`
	Question string `yaml:"question"`
	Match    `yaml:",inline"`
}

// Questions returns the question codes the condition reads.
func (c Condition) Questions() []string {
	var out []string
	if c.Gap != "" {
		out = append(out, c.Gap)
	}
	if c.Question != "" {
		out = append(out, c.Question)
	}
	return out
}

// Eval evaluates the condition. Unknown question references evaluate false.
func (t *Taxonomy) Eval(c Condition, r response.Responses, p *types.Profile) bool {
	set := false
	if c.Profile != "" {
		set = true
		if !p.Flag(c.Profile) {
			return false
		}
	}
	if c.Tier != "" {
		set = true
		if p.Tier(c.Tier) < c.Min || p.Tier(c.Tier) == 0 {
			return false
		}
	}
	if c.Gap != "" {
		set = true
		if !t.IsGap(r, c.Gap) {
			return false
		}
	}
	if c.Question != "" {
		set = true
		if !c.Match.Holds(r, c.Question) {
			return false
		}
	}
	return set
}

// IsGap reports whether the answer to q indicates an unmet control.
func (t *Taxonomy) IsGap(r response.Responses, q string) bool {
	question, ok := t.questions[q]
	if !ok {
		return false
	}
	return question.Gap.Holds(r, q)
}
