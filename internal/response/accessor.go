// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package response turns raw questionnaire answers into a closed set of
// typed answers. It is the only place that inspects raw answer shapes.
package response

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the normalized shape of an answer.
type Kind int

const (
	KindAbsent Kind = iota
	KindBoolean
	KindRating
	KindMultiSelect
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindRating:
		return "rating"
	case KindMultiSelect:
		return "multi_select"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Tri is a yes/no signal that may be unknown.
type Tri int

const (
	Unknown Tri = iota
	Yes
	No
)

func (t Tri) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// Neutral defaults for absent or unparseable answers.
const (
	RatingMin     = 1
	RatingMax     = 5
	RatingDefault = 3
)

// Answer is a single normalized answer. The zero value is an absent answer.
type Answer struct {
	kind   Kind
	yes    bool
	number float64
	items  []string
	text   string
}

// Kind returns the normalized shape.
func (a Answer) Kind() Kind { return a.kind }

// Responses maps question codes to normalized answers. It is built once per
// run and only read afterwards.
type Responses map[string]Answer

// Normalize converts a raw response map (as decoded from JSON) into
// Responses. Unsupported shapes become absent answers.
func Normalize(raw map[string]any) Responses {
	out := make(Responses, len(raw))
	for q, v := range raw {
		out[q] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) Answer {
	switch val := v.(type) {
	case nil:
		return Answer{}
	case bool:
		return Answer{kind: KindBoolean, yes: val}
	case float64:
		return number(val)
	case float32:
		return number(float64(val))
	case int:
		return number(float64(val))
	case int64:
		return number(float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Answer{}
		}
		return number(f)
	case string:
		return normalizeString(val)
	case []string:
		return multi(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case float64, int, bool:
				items = append(items, strings.TrimSpace(strings.ToLower(toString(it))))
			}
		}
		return multi(items)
	default:
		return Answer{}
	}
}

func number(f float64) Answer {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Answer{}
	}
	return Answer{kind: KindRating, number: f}
}

func multi(items []string) Answer {
	clean := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			clean = append(clean, s)
		}
	}
	return Answer{kind: KindMultiSelect, items: clean}
}

var (
	yesWords = map[string]bool{"yes": true, "y": true, "true": true}
	noWords  = map[string]bool{"no": true, "n": true, "false": true, "none": true}
)

func normalizeString(s string) Answer {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Answer{}
	}
	lower := strings.ToLower(trimmed)
	if lower == "n/a" || lower == "na" {
		return Answer{kind: KindText, text: trimmed}
	}
	if t := leadingYesNo(lower); t != Unknown {
		return Answer{kind: KindBoolean, yes: t == Yes, text: trimmed}
	}
	if f, ok := leadingNumber(lower); ok {
		return Answer{kind: KindRating, number: f, text: trimmed}
	}
	return Answer{kind: KindText, text: trimmed}
}

// leadingYesNo recognizes "yes", "no" and answers that start with one of
// them followed by punctuation, e.g. "Yes - fully implemented".
func leadingYesNo(lower string) Tri {
	word := lower
	if i := strings.IndexAny(lower, " -,.;:/("); i > 0 {
		word = lower[:i]
	}
	switch {
	case yesWords[word]:
		return Yes
	case noWords[word]:
		return No
	}
	return Unknown
}

// leadingNumber parses answers such as "4" or "4 - good".
func leadingNumber(lower string) (float64, bool) {
	end := 0
	for end < len(lower) && (lower[end] >= '0' && lower[end] <= '9' || lower[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	if end < len(lower) && lower[end] != ' ' && lower[end] != '-' && lower[end] != '/' {
		return 0, false
	}
	f, err := strconv.ParseFloat(lower[:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// Answered reports whether the question has a non-absent answer.
func (r Responses) Answered(q string) bool {
	return r[q].kind != KindAbsent
}

// YesNo interprets the answer as a yes/no signal. Ratings map 0 to No and
// any other value to Yes; text and selections are Unknown.
func (r Responses) YesNo(q string) Tri {
	a := r[q]
	switch a.kind {
	case KindBoolean:
		if a.yes {
			return Yes
		}
		return No
	case KindRating:
		if a.number == 0 {
			return No
		}
		return Yes
	}
	return Unknown
}

// Rating interprets the answer as a 1-5 rating. Absent or unparseable
// answers yield RatingDefault; numeric answers are rounded and clamped.
func (r Responses) Rating(q string) int {
	a := r[q]
	if a.kind != KindRating {
		return RatingDefault
	}
	v := int(math.Round(a.number))
	if v < RatingMin {
		return RatingMin
	}
	if v > RatingMax {
		return RatingMax
	}
	return v
}

// Contains reports whether the answer's text, or any selected item,
// contains one of the indicators (case-insensitive).
func (r Responses) Contains(q string, indicators ...string) bool {
	a := r[q]
	var hay []string
	switch a.kind {
	case KindMultiSelect:
		hay = a.items
	case KindText, KindBoolean, KindRating:
		if a.text == "" {
			return false
		}
		hay = []string{a.text}
	default:
		return false
	}
	for _, h := range hay {
		lh := strings.ToLower(h)
		for _, ind := range indicators {
			if ind == "" {
				continue
			}
			if strings.Contains(lh, strings.ToLower(ind)) {
				return true
			}
		}
	}
	return false
}

// Text returns the free-text form of the answer, joining selections with
// ", ". Absent answers return "".
func (r Responses) Text(q string) string {
	a := r[q]
	switch a.kind {
	case KindMultiSelect:
		return strings.Join(a.items, ", ")
	case KindBoolean:
		if a.text != "" {
			return a.text
		}
		if a.yes {
			return "yes"
		}
		return "no"
	case KindRating:
		if a.text != "" {
			return a.text
		}
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	}
	return a.text
}

