// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package recommend derives control recommendations from detected gaps and
// aggregates them across a run.
package recommend

import (
	"sort"

	"github.com/bonial-oss/physec-risk/internal/scoring"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// ForThreat returns the threat's candidate controls that address one of its
// detected gaps, in the threat's control-link order. A control's urgency is
// the highest of its gap urgencies, its catalog default and the urgency the
// threat's risk level imposes.
func ForThreat(tax *taxonomy.Taxonomy, threatID string, gaps []scoring.Gap, level types.RiskLevel) []types.ControlRecommendation {
	if len(gaps) == 0 {
		return nil
	}
	wanted := make(map[string]types.Urgency)
	for _, g := range gaps {
		for _, cid := range g.Controls {
			wanted[cid] = types.MaxUrgency(wanted[cid], g.Urgency)
		}
	}

	floor := types.UrgencyForLevel(level)
	var out []types.ControlRecommendation
	for _, link := range tax.ControlLinks(threatID) {
		gapUrgency, ok := wanted[link.ControlID]
		if !ok {
			continue
		}
		c, ok := tax.Control(link.ControlID)
		if !ok {
			continue
		}
		out = append(out, types.ControlRecommendation{
			ControlID: c.ID,
			Name:      c.Name,
			Urgency:   types.MaxUrgency(types.MaxUrgency(gapUrgency, c.Urgency), floor),
		})
	}
	return out
}

// IDs returns the control ids of recs in order.
func IDs(recs []types.ControlRecommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ControlID)
	}
	return out
}

// Aggregator de-duplicates recommendations across the threats of one run.
// It is not safe for concurrent use; the orchestrator owns it and adds a
// threat's recommendations only after that threat is scored.
type Aggregator struct {
	index map[string]int
	items []types.Recommendation
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{index: make(map[string]int)}
}

// Add merges a threat's recommendations. A control already present keeps
// its position and has its urgency upgraded, never downgraded.
func (a *Aggregator) Add(threatID string, recs []types.ControlRecommendation) {
	for _, r := range recs {
		i, ok := a.index[r.ControlID]
		if !ok {
			a.index[r.ControlID] = len(a.items)
			a.items = append(a.items, types.Recommendation{
				ControlID: r.ControlID,
				Name:      r.Name,
				Urgency:   r.Urgency,
				ThreatIDs: []string{threatID},
			})
			continue
		}
		item := &a.items[i]
		item.Urgency = types.MaxUrgency(item.Urgency, r.Urgency)
		if !containsString(item.ThreatIDs, threatID) {
			item.ThreatIDs = append(item.ThreatIDs, threatID)
		}
	}
}

// Len returns the number of distinct controls.
func (a *Aggregator) Len() int { return len(a.items) }

// List returns the aggregated recommendations, most urgent first and in
// first-seen order within an urgency tier.
func (a *Aggregator) List() []types.Recommendation {
	out := make([]types.Recommendation, len(a.items))
	for i, it := range a.items {
		it.ThreatIDs = append([]string(nil), it.ThreatIDs...)
		out[i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Urgency.Rank() > out[j].Urgency.Rank()
	})
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
