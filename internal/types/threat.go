// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import "math"

// Domain selects the assessment taxonomy.
type Domain string

const (
	DomainManufacturing       Domain = "manufacturing"
	DomainRetail              Domain = "retail"
	DomainExecutiveProtection Domain = "executive_protection"
	DomainWarehouse           Domain = "warehouse"
	DomainOffice              Domain = "office"
)

// Threat is a single catalog entry. Threats never cross domains.
type Threat struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Category           string `json:"category"`
	Domain             Domain `json:"domain"`
	BaselineLikelihood int    `json:"baselineLikelihood"`
	BaselineImpact     int    `json:"baselineImpact"`
	StandardsCode      string `json:"standardsCode,omitempty"`
	Description        string `json:"description,omitempty"`
}

// Scale describes the valid range of the scoring factors for a domain.
// Likelihood, vulnerability and impact share [Min, Max]; exposure only
// applies when Exposure is set.
type Scale struct {
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Exposure    bool    `json:"exposure"`
	ExposureMin float64 `json:"exposureMin,omitempty"`
	ExposureMax float64 `json:"exposureMax,omitempty"`
}

// MaxPossible returns the product of every factor's scale maximum.
func (s Scale) MaxPossible() float64 {
	m := float64(s.Max) * float64(s.Max) * float64(s.Max)
	if s.Exposure {
		m *= s.ExposureMax
	}
	return m
}

// Clamp bounds v to [Min, Max].
func (s Scale) Clamp(v int) int {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}

// ClampExposure bounds v to [ExposureMin, ExposureMax].
func (s Scale) ClampExposure(v float64) float64 {
	if math.IsNaN(v) || v < s.ExposureMin {
		return s.ExposureMin
	}
	if v > s.ExposureMax {
		return s.ExposureMax
	}
	return v
}

// Band folds a score on this scale into one of five qualitative bands (1-5).
func (s Scale) Band(v int) int {
	v = s.Clamp(v)
	span := s.Max - s.Min
	if span <= 0 {
		return 1
	}
	b := 1 + (v-s.Min)*5/(span+1)
	if b > 5 {
		b = 5
	}
	return b
}
