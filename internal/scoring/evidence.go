// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package scoring implements the algorithmic risk factor scorers and the
// risk composer shared by every scoring path.
package scoring

import (
	"fmt"

	"github.com/bonial-oss/physec-risk/internal/response"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// Weights of a detected gap.
const (
	WeightOrdinary = 1
	WeightCritical = 2
)

// IncidentMatch is the strength of an incident-history match.
type IncidentMatch int

const (
	IncidentNone IncidentMatch = iota
	IncidentRelated
	IncidentDirect
)

func (m IncidentMatch) String() string {
	switch m {
	case IncidentDirect:
		return "direct"
	case IncidentRelated:
		return "related"
	default:
		return "none"
	}
}

// Gap is an unmet control indicator found on one of the threat's linked
// questions.
type Gap struct {
	QuestionID string
	Factor     string
	Critical   bool
	Weight     int
	Controls   []string
	Urgency    types.Urgency
}

// Adjustment is a fired likelihood or impact rule.
type Adjustment struct {
	Delta  int
	Group  string
	Factor string
}

// ExposureAdjustment is a fired exposure rule.
type ExposureAdjustment struct {
	Delta  float64
	Factor string
}

// Answer is a linked question together with its normalized answer text.
type Answer struct {
	QuestionID string
	Question   string
	Answer     string
}

// Evidence is everything the scorers know about one threat in one run. The
// AI prompt is built from the same value.
type Evidence struct {
	Threat      types.Threat
	Scale       types.Scale
	Gaps        []Gap
	Answers     []Answer
	Incident    IncidentMatch
	Likelihood  []Adjustment
	Impact      []Adjustment
	Exposure    []ExposureAdjustment
	ImpactFloor int
}

// RiskFactorCount returns the weighted number of detected gaps.
func (e Evidence) RiskFactorCount() int {
	n := 0
	for _, g := range e.Gaps {
		n += g.Weight
	}
	return n
}

// Gather collects the evidence for a threat. It fails with a wrapped
// taxonomy.ErrDanglingReference when the threat's tables do not resolve.
func Gather(tax *taxonomy.Taxonomy, threatID string, r response.Responses, p *types.Profile) (Evidence, error) {
	if err := tax.CheckThreat(threatID); err != nil {
		return Evidence{}, err
	}
	threat, _ := tax.Threat(threatID)
	spec, _ := tax.Spec(threatID)

	ev := Evidence{
		Threat:      threat,
		Scale:       tax.Scale(),
		ImpactFloor: spec.ImpactFloor,
	}

	// Step 1: walk linked questions in link order.
	for _, link := range tax.QuestionLinks(threatID) {
		q, ok := tax.Question(link.QuestionID)
		if !ok {
			return Evidence{}, fmt.Errorf("%w: question %q", taxonomy.ErrDanglingReference, link.QuestionID)
		}
		if r.Answered(q.ID) {
			ev.Answers = append(ev.Answers, Answer{QuestionID: q.ID, Question: q.Text, Answer: r.Text(q.ID)})
		}
		if !tax.IsGap(r, q.ID) {
			continue
		}
		weight := WeightOrdinary
		if link.IsCritical {
			weight = WeightCritical
		}
		ev.Gaps = append(ev.Gaps, Gap{
			QuestionID: q.ID,
			Factor:     q.Factor,
			Critical:   link.IsCritical,
			Weight:     weight,
			Controls:   q.Controls,
			Urgency:    q.Urgency,
		})
	}

	// Step 2: incident history.
	ls := tax.Likelihood()
	if ls.IncidentQuestion != "" {
		switch {
		case r.Contains(ls.IncidentQuestion, spec.Incidents...):
			ev.Incident = IncidentDirect
		case r.Contains(ls.IncidentQuestion, spec.RelatedIncidents...):
			ev.Incident = IncidentRelated
		}
	}

	// Step 3: fired rules.
	for _, rule := range ls.Rules {
		if rule.Applies(threatID) && tax.Eval(rule.When, r, p) {
			ev.Likelihood = append(ev.Likelihood, Adjustment{Delta: rule.Delta, Group: rule.Group, Factor: rule.Factor})
		}
	}
	for _, rule := range tax.Impact().Rules {
		if rule.Applies(threatID) && tax.Eval(rule.When, r, p) {
			ev.Impact = append(ev.Impact, Adjustment{Delta: rule.Delta, Factor: rule.Factor})
		}
	}
	if es := tax.Exposure(); es != nil {
		for _, rule := range es.Rules {
			if tax.Eval(rule.When, r, p) {
				ev.Exposure = append(ev.Exposure, ExposureAdjustment{Delta: rule.Delta, Factor: rule.Factor})
			}
		}
	}
	return ev, nil
}
