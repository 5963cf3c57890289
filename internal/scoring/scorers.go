// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package scoring

import (
	"math"

	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// Vulnerability computes base + weighted gap count / divisor, clamped.
func Vulnerability(tax *taxonomy.Taxonomy, ev Evidence) int {
	delta := ev.RiskFactorCount() / tax.VulnerabilityDivisor()
	return ev.Scale.Clamp(tax.BaselineVulnerability() + delta)
}

// Likelihood computes the threat's baseline plus the incident bonus and the
// bounded profile and control adjustments, clamped.
func Likelihood(tax *taxonomy.Taxonomy, ev Evidence) int {
	ls := tax.Likelihood()
	v := ev.Threat.BaselineLikelihood

	switch ev.Incident {
	case IncidentDirect:
		v += ls.DirectBonus
	case IncidentRelated:
		v += ls.RelatedBonus
	}

	var profile, controls int
	for _, a := range ev.Likelihood {
		switch a.Group {
		case taxonomy.GroupProfile:
			profile += a.Delta
		case taxonomy.GroupControls:
			controls += a.Delta
		}
	}
	v += bound(profile, ls.Cap) + bound(controls, ls.Cap)
	return ev.Scale.Clamp(v)
}

// Impact computes the threat baseline (or the domain baseline) plus the
// bounded rule adjustments, raised to the threat's floor and clamped.
func Impact(tax *taxonomy.Taxonomy, ev Evidence) int {
	v := ev.Threat.BaselineImpact
	if v == 0 {
		v = tax.BaselineImpact()
	}
	sum := 0
	for _, a := range ev.Impact {
		sum += a.Delta
	}
	v += bound(sum, tax.Impact().Cap)
	return FloorImpact(ev, v)
}

// FloorImpact raises impact to the threat's floor and clamps it to the scale.
// Both the algorithmic and the AI path go through it.
func FloorImpact(ev Evidence, impact int) int {
	if ev.ImpactFloor > impact {
		impact = ev.ImpactFloor
	}
	return ev.Scale.Clamp(impact)
}

// Exposure computes the person-centric multiplier, or nil when the domain
// does not score exposure.
func Exposure(tax *taxonomy.Taxonomy, ev Evidence) *float64 {
	es := tax.Exposure()
	if es == nil || !ev.Scale.Exposure {
		return nil
	}
	v := es.Base
	for _, a := range ev.Exposure {
		v += a.Delta
	}
	v = ev.Scale.ClampExposure(math.Round(v*100) / 100)
	return &v
}

// bound limits v to [-limit, limit]. A non-positive limit leaves v as is.
func bound(v, limit int) int {
	if limit <= 0 {
		return v
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Factors returns the contributing factors in detection order: gap labels
// first, then the labels of raising likelihood, impact and exposure rules.
// Duplicates are dropped.
func Factors(ev Evidence) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ev.Gaps))
	add := func(f string) {
		if f == "" || seen[f] {
			return
		}
		seen[f] = true
		out = append(out, f)
	}
	for _, g := range ev.Gaps {
		add(g.Factor)
	}
	for _, a := range ev.Likelihood {
		if a.Delta > 0 {
			add(a.Factor)
		}
	}
	for _, a := range ev.Impact {
		if a.Delta > 0 {
			add(a.Factor)
		}
	}
	for _, a := range ev.Exposure {
		if a.Delta > 0 {
			add(a.Factor)
		}
	}
	return out
}

// Algorithmic runs every factor scorer over the evidence.
func Algorithmic(tax *taxonomy.Taxonomy, ev Evidence) types.FactorScores {
	return types.FactorScores{
		Likelihood:    Likelihood(tax, ev),
		Vulnerability: Vulnerability(tax, ev),
		Impact:        Impact(tax, ev),
		Exposure:      Exposure(tax, ev),
	}
}
