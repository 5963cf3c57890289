// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/bonial-oss/physec-risk/internal/assessor"
	"github.com/bonial-oss/physec-risk/internal/scoring"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

const validAI = `{"likelihood": 4.6, "vulnerability": 2, "impact": 3, "inherentRisk": 999, "riskLevel": "low", "rationale": "ok"}`

// gapResponses answers every question of the domain so that it reads as a
// control gap.
func gapResponses(t *testing.T, d types.Domain) map[string]any {
	t.Helper()
	tax, err := taxonomy.Load(d)
	require.NoError(t, err)
	raw := map[string]any{}
	for _, q := range tax.Questions() {
		if q.Gap.IsZero() {
			continue
		}
		raw[q.ID] = q.Gap.Sample(true)
	}
	return raw
}

func richProfile() *types.Profile {
	return &types.Profile{
		HasIntellectualProperty: true,
		HasHighValueAssets:      true,
		HandlesCash:             true,
		AnnualValue:             "over $500M",
		EmployeeCount:           1200,
		NetWorth:                "$2B",
		PublicProfile:           "high",
		MediaCoverage:           "national",
		FamilyMembers:           3,
	}
}

func scenario(t *testing.T, r *types.RunResult, threatID string) types.ThreatScore {
	t.Helper()
	for _, s := range r.Scenarios {
		if s.ThreatID == threatID {
			return s
		}
	}
	require.Failf(t, "scenario not found", "threat %s", threatID)
	return types.ThreatScore{}
}

func failFor(ids ...string) assessor.Func {
	return func(_ context.Context, threatID string, _ scoring.Evidence) ([]byte, error) {
		for _, id := range ids {
			if id == threatID {
				return nil, errors.New("upstream unavailable")
			}
		}
		return []byte(validAI), nil
	}
}

func TestRun_UnknownDomain(t *testing.T) {
	r, err := New(Config{}).Run(context.Background(), Request{Domain: "casino"})
	assert.Nil(t, r)
	assert.ErrorIs(t, err, taxonomy.ErrUnknownDomain)
}

func TestRun_Algorithmic(t *testing.T) {
	tax, err := taxonomy.Load(types.DomainOffice)
	require.NoError(t, err)

	r, err := New(Config{}).Run(context.Background(), Request{
		AssessmentID: "a-1",
		Domain:       types.DomainOffice,
		Responses:    gapResponses(t, types.DomainOffice),
	})
	require.NoError(t, err)

	assert.Equal(t, "a-1", r.AssessmentID)
	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, types.ModeAlgorithmic, r.Mode)
	assert.Equal(t, types.ConfidenceFallback, r.Confidence)
	assert.Zero(t, r.AIAttempts)
	assert.False(t, r.Cancelled)
	require.Len(t, r.Scenarios, len(tax.Threats()))

	total := 0
	for _, level := range types.RiskLevels {
		total += r.Counts[level]
	}
	assert.Equal(t, len(r.Scenarios), total)

	for i, s := range r.Scenarios {
		assert.Equal(t, tax.Threats()[i].ID, s.ThreatID, "threat order")
		assert.True(t, s.Success)
		assert.Equal(t, types.MethodAlgorithmic, s.Method)
		assert.NotEmpty(t, s.Narrative)
		assert.Empty(t, s.AIError)
	}
}

func TestRun_UseAIWithoutAssessor(t *testing.T) {
	r, err := New(Config{}).Run(context.Background(), Request{Domain: types.DomainWarehouse, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, types.ModeAlgorithmic, r.Mode)
	assert.Zero(t, r.AIAttempts)
}

func TestRun_ManufacturingIPTheftScenario(t *testing.T) {
	r, err := New(Config{}).Run(context.Background(), Request{
		Domain: types.DomainManufacturing,
		Responses: map[string]any{
			"production_1": "no",
			"ip_2":         "no",
			"ip_5":         "no",
			"personnel_6":  "no",
		},
		Profile: &types.Profile{HasIntellectualProperty: true, AnnualValue: "over $500M"},
	})
	require.NoError(t, err)

	s := scenario(t, r, "industrial_espionage_ip_theft")
	assert.Equal(t, 5, s.Vulnerability)
	assert.GreaterOrEqual(t, s.Impact, 4)
	assert.GreaterOrEqual(t, s.Likelihood, 5)
	assert.Equal(t, types.RiskCritical, s.RiskLevel)
	assert.NotEmpty(t, s.RecommendedControlIDs)
	assert.Contains(t, s.Narrative, "CRITICAL")
}

func TestRun_DeterministicAcrossDomains(t *testing.T) {
	o := New(Config{})
	for _, d := range taxonomy.Domains() {
		t.Run(string(d), func(t *testing.T) {
			req := Request{Domain: d, Responses: gapResponses(t, d), Profile: richProfile()}

			first, err := o.Run(context.Background(), req)
			require.NoError(t, err)
			second, err := o.Run(context.Background(), req)
			require.NoError(t, err)

			a, err := json.Marshal(first.Scenarios)
			require.NoError(t, err)
			b, err := json.Marshal(second.Scenarios)
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
			assert.Equal(t, first.Recommendations, second.Recommendations)
			assert.NotEqual(t, first.RunID, second.RunID)
		})
	}
}

func TestRun_ConcurrentRunsAreIdempotent(t *testing.T) {
	o := New(Config{})
	req := Request{
		Domain:    types.DomainExecutiveProtection,
		Responses: gapResponses(t, types.DomainExecutiveProtection),
		Profile:   richProfile(),
	}

	const runs = 8
	outputs := make([]string, runs)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < runs; i++ {
		g.Go(func() error {
			r, err := o.Run(ctx, req)
			if err != nil {
				return err
			}
			data, err := json.Marshal(r.Scenarios)
			if err != nil {
				return err
			}
			outputs[i] = string(data)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := 1; i < runs; i++ {
		assert.Equal(t, outputs[0], outputs[i], "run %d", i)
	}
}

func TestRun_HybridFallbackIsolation(t *testing.T) {
	req := Request{Domain: types.DomainOffice, Responses: gapResponses(t, types.DomainOffice), UseAI: true}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	hybrid, err := New(Config{}, WithAssessor(failFor("unauthorized_access")), WithMetrics(m)).Run(context.Background(), req)
	require.NoError(t, err)

	req.UseAI = false
	algorithmic, err := New(Config{}).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, types.ModeHybrid, hybrid.Mode)
	assert.Equal(t, types.ConfidenceMedium, hybrid.Confidence)
	assert.Equal(t, len(hybrid.Scenarios), hybrid.AIAttempts)
	assert.Equal(t, 1, hybrid.AIFailures)

	// The failed threat scores exactly as the algorithmic path does.
	failed := scenario(t, hybrid, "unauthorized_access")
	assert.Equal(t, types.MethodAlgorithmic, failed.Method)
	assert.Contains(t, failed.AIError, "upstream unavailable")
	failed.AIError = ""
	assert.Equal(t, scenario(t, algorithmic, "unauthorized_access"), failed)

	// The AI payload is clamped and its arithmetic recomputed.
	ok := scenario(t, hybrid, "vandalism")
	assert.Equal(t, types.MethodAI, ok.Method)
	assert.Equal(t, 5, ok.Likelihood)
	assert.Equal(t, 2, ok.Vulnerability)
	assert.Equal(t, 3, ok.Impact)
	assert.Equal(t, 30.0, ok.InherentRisk)
	assert.Equal(t, 24.0, ok.NormalizedRisk)
	assert.Equal(t, types.RiskLow, ok.RiskLevel)
	assert.Equal(t, "ok", ok.AIRationale)
	assert.Empty(t, ok.AIError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("office", "hybrid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AIFailuresTotal.WithLabelValues("office")))
	want := map[[2]string]float64{}
	for _, s := range hybrid.Scenarios {
		want[[2]string{string(s.Method), string(s.RiskLevel)}]++
	}
	for k, v := range want {
		assert.Equal(t, v, testutil.ToFloat64(m.ThreatsTotal.WithLabelValues("office", k[0], k[1])), "%v", k)
	}
}

func TestRun_AIImpactKeepsThreatFloor(t *testing.T) {
	a := assessor.Func(func(context.Context, string, scoring.Evidence) ([]byte, error) {
		return []byte(`{"likelihood": 2, "vulnerability": 2, "impact": 1}`), nil
	})
	r, err := New(Config{}, WithAssessor(a)).Run(context.Background(), Request{Domain: types.DomainManufacturing, UseAI: true})
	require.NoError(t, err)
	assert.Equal(t, types.ModeAI, r.Mode)

	tests := []struct {
		threatID   string
		impact     int
		inherent   float64
		normalized float64
	}{
		{"hazmat_diversion", 5, 20, 16},
		{"industrial_espionage_ip_theft", 4, 16, 12.8},
		{"workplace_violence", 4, 16, 12.8},
		{"vandalism", 1, 4, 3.2},
	}
	for _, tt := range tests {
		t.Run(tt.threatID, func(t *testing.T) {
			s := scenario(t, r, tt.threatID)
			assert.Equal(t, types.MethodAI, s.Method)
			assert.Equal(t, tt.impact, s.Impact)
			assert.Equal(t, tt.inherent, s.InherentRisk)
			assert.InDelta(t, tt.normalized, s.NormalizedRisk, 0.001)
		})
	}
}

func TestRun_Confidence(t *testing.T) {
	tax, err := taxonomy.Load(types.DomainOffice)
	require.NoError(t, err)
	var ids []string
	for _, th := range tax.Threats() {
		ids = append(ids, th.ID)
	}

	tests := []struct {
		name       string
		failing    []string
		mode       types.Mode
		confidence types.Confidence
	}{
		{"all ai", nil, types.ModeAI, types.ConfidenceHigh},
		{"tie", ids[:len(ids)/2], types.ModeHybrid, types.ConfidenceMedium},
		{"mostly algorithmic", ids[1:], types.ModeHybrid, types.ConfidenceLow},
		{"all failed", ids, types.ModeAlgorithmic, types.ConfidenceFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Config{}, WithAssessor(failFor(tt.failing...))).Run(context.Background(),
				Request{Domain: types.DomainOffice, UseAI: true})
			require.NoError(t, err)
			assert.Equal(t, tt.mode, r.Mode)
			assert.Equal(t, tt.confidence, r.Confidence)
			assert.Equal(t, len(tt.failing), r.AIFailures)
		})
	}
}

func TestRun_InvalidPayloadFallsBack(t *testing.T) {
	a := assessor.Func(func(context.Context, string, scoring.Evidence) ([]byte, error) {
		return []byte(`{"likelihood": 3, "vulnerability": 9, "impact": 3}`), nil
	})
	r, err := New(Config{}, WithAssessor(a)).Run(context.Background(), Request{Domain: types.DomainRetail, UseAI: true})
	require.NoError(t, err)
	for _, s := range r.Scenarios {
		assert.Equal(t, types.MethodAlgorithmic, s.Method)
		assert.Contains(t, s.AIError, "vulnerability")
	}
	assert.Equal(t, len(r.Scenarios), r.AIFailures)
}

func TestRun_AssessorPanicIsIsolated(t *testing.T) {
	a := assessor.Func(func(_ context.Context, threatID string, _ scoring.Evidence) ([]byte, error) {
		if threatID == "vandalism" {
			panic("boom")
		}
		return []byte(validAI), nil
	})
	r, err := New(Config{}, WithAssessor(a)).Run(context.Background(), Request{Domain: types.DomainOffice, UseAI: true})
	require.NoError(t, err)

	s := scenario(t, r, "vandalism")
	assert.Equal(t, types.MethodAlgorithmic, s.Method)
	assert.Contains(t, s.AIError, "panicked")
	assert.Equal(t, 1, r.AIFailures)
}

func TestRun_PerCallTimeout(t *testing.T) {
	a := assessor.Func(func(ctx context.Context, _ string, _ scoring.Evidence) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r, err := New(Config{AITimeout: 5 * time.Millisecond}, WithAssessor(a)).Run(context.Background(),
		Request{Domain: types.DomainOffice, UseAI: true})
	require.NoError(t, err)

	assert.False(t, r.Cancelled)
	assert.Equal(t, types.ModeAlgorithmic, r.Mode)
	assert.Equal(t, len(r.Scenarios), r.AIFailures)
	assert.Contains(t, r.Scenarios[0].AIError, "deadline exceeded")
}

func TestRun_InterCallDelay(t *testing.T) {
	var calls atomic.Int32
	a := assessor.Func(func(context.Context, string, scoring.Evidence) ([]byte, error) {
		calls.Add(1)
		return []byte(validAI), nil
	})
	const delay = 10 * time.Millisecond

	start := time.Now()
	r, err := New(Config{AIDelay: delay}, WithAssessor(a)).Run(context.Background(),
		Request{Domain: types.DomainOffice, UseAI: true})
	require.NoError(t, err)

	n := int(calls.Load())
	assert.Equal(t, len(r.Scenarios), n)
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(n-1)*delay)
}

func TestRun_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	a := assessor.Func(func(ctx context.Context, _ string, _ scoring.Evidence) ([]byte, error) {
		if calls.Add(1) == 3 {
			cancel()
			return nil, ctx.Err()
		}
		return []byte(validAI), nil
	})

	r, err := New(Config{}, WithAssessor(a)).Run(ctx, Request{Domain: types.DomainOffice, UseAI: true})
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	require.Len(t, r.Scenarios, 2)
	assert.Equal(t, 3, r.AIAttempts)
	assert.Zero(t, r.AIFailures)
	for _, s := range r.Scenarios {
		assert.Equal(t, types.MethodAI, s.Method)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := New(Config{}).Run(ctx, Request{Domain: types.DomainWarehouse})
	require.NoError(t, err)
	assert.True(t, r.Cancelled)
	assert.Empty(t, r.Scenarios)
	assert.Empty(t, r.Recommendations)
}

func TestRun_RecommendationDedup(t *testing.T) {
	r, err := New(Config{}).Run(context.Background(), Request{
		Domain:    types.DomainManufacturing,
		Responses: gapResponses(t, types.DomainManufacturing),
		Profile:   richProfile(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.Recommendations)

	seen := map[string]bool{}
	for _, rec := range r.Recommendations {
		assert.False(t, seen[rec.ControlID], "duplicate %s", rec.ControlID)
		seen[rec.ControlID] = true

		var want types.Urgency
		var threats []string
		for _, s := range r.Scenarios {
			for _, c := range s.Recommendations {
				if c.ControlID == rec.ControlID {
					want = types.MaxUrgency(want, c.Urgency)
					threats = append(threats, s.ThreatID)
				}
			}
		}
		assert.Equal(t, want, rec.Urgency, rec.ControlID)
		assert.Equal(t, threats, rec.ThreatIDs, rec.ControlID)
	}

	for i := 1; i < len(r.Recommendations); i++ {
		assert.GreaterOrEqual(t, r.Recommendations[i-1].Urgency.Rank(), r.Recommendations[i].Urgency.Rank())
	}
}

const defectiveTaxonomy = `
domain: test
title: Test
scale: {min: 1, max: 5}
baseline_vulnerability: 3
baseline_impact: 3
vulnerability_divisor: 3
thresholds: standard
likelihood:
  cap: 2
controls:
  - {id: c1, name: "Control one"}
questions:
  - {id: q1, text: "Q1?", gap: {is: "no"}, factor: "Q1 missing", controls: [c1]}
threats:
  - {id: ok, name: OK, likelihood: 2, impact: 2, questions: [q1], controls: [c1]}
  - {id: bad_question, name: Bad, likelihood: 2, impact: 2, questions: [q1, q_missing], controls: [c1]}
  - {id: also_ok, name: Also OK, likelihood: 3, impact: 3, questions: [q1], controls: [c1]}
`

func TestRun_SkipsDefectiveThreats(t *testing.T) {
	tax, err := taxonomy.Parse([]byte(defectiveTaxonomy))
	require.NoError(t, err)
	reg := taxonomy.NewRegistry()
	reg.Register(tax)
	m := NewMetrics(prometheus.NewRegistry())

	r, err := New(Config{}, WithRegistry(reg), WithMetrics(m)).Run(context.Background(), Request{
		Domain:    "test",
		Responses: map[string]any{"q1": "no"},
	})
	require.NoError(t, err)

	require.Len(t, r.Scenarios, 2)
	assert.Equal(t, "ok", r.Scenarios[0].ThreatID)
	assert.Equal(t, "also_ok", r.Scenarios[1].ThreatID)
	require.Len(t, r.Skipped, 1)
	assert.Equal(t, "bad_question", r.Skipped[0].ThreatID)
	assert.False(t, r.Skipped[0].Success)
	assert.Contains(t, r.Skipped[0].Error, "q_missing")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedTotal.WithLabelValues("test")))

	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, []string{"ok", "also_ok"}, r.Recommendations[0].ThreatIDs)
}

func TestRun_ProcessingTimeUsesClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks int
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * 1500 * time.Millisecond)
	}
	r, err := New(Config{}, WithClock(clock)).Run(context.Background(), Request{Domain: types.DomainWarehouse})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), r.ProcessingTimeMs)
}

func TestSummarize(t *testing.T) {
	s := func(methods ...types.Method) []types.ThreatScore {
		out := make([]types.ThreatScore, len(methods))
		for i, m := range methods {
			out[i].Method = m
		}
		return out
	}
	ai, alg := types.MethodAI, types.MethodAlgorithmic

	tests := []struct {
		name       string
		in         []types.ThreatScore
		mode       types.Mode
		confidence types.Confidence
	}{
		{"empty", nil, types.ModeAlgorithmic, types.ConfidenceFallback},
		{"all ai", s(ai, ai), types.ModeAI, types.ConfidenceHigh},
		{"all algorithmic", s(alg), types.ModeAlgorithmic, types.ConfidenceFallback},
		{"ai majority", s(ai, ai, alg), types.ModeHybrid, types.ConfidenceMedium},
		{"tie", s(ai, alg), types.ModeHybrid, types.ConfidenceMedium},
		{"algorithmic majority", s(ai, alg, alg), types.ModeHybrid, types.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, conf := summarize(tt.in)
			assert.Equal(t, tt.mode, mode)
			assert.Equal(t, tt.confidence, conf)
		})
	}
}

func TestTracker(t *testing.T) {
	tr := newTracker("arson")
	tr.to(StateAIAttempted)
	tr.to(StateAIFailed)
	tr.to(StateAlgorithmicFallback)
	tr.to(StateScored)
	assert.Equal(t, []State{StatePending, StateAIAttempted, StateAIFailed, StateAlgorithmicFallback, StateScored}, tr.history)

	assert.Panics(t, func() { newTracker("x").to(StateScored) })
	assert.Panics(t, func() {
		tr := newTracker("x")
		tr.to(StateAIAttempted)
		tr.to(StateAlgorithmicFallback)
	})
}
