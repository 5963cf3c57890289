// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator runs one assessment: it scores every threat of the
// domain taxonomy in order, optionally through an AI assessor with
// per-threat algorithmic fallback, and aggregates the run result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/bonial-oss/physec-risk/internal/assessor"
	"github.com/bonial-oss/physec-risk/internal/narrative"
	"github.com/bonial-oss/physec-risk/internal/recommend"
	"github.com/bonial-oss/physec-risk/internal/response"
	"github.com/bonial-oss/physec-risk/internal/scoring"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

const (
	DefaultAITimeout = 30 * time.Second
	DefaultAIDelay   = 500 * time.Millisecond
)

var tracer = otel.Tracer("github.com/bonial-oss/physec-risk/internal/orchestrator")

// Config holds the AI call budget.
type Config struct {
	// AIDelay is the minimum spacing between assessor calls. Zero disables it.
	AIDelay time.Duration
	// AITimeout bounds one assessor call. Zero means DefaultAITimeout.
	AITimeout time.Duration
}

// Request is one assessment.
type Request struct {
	AssessmentID string
	Domain       types.Domain
	Responses    map[string]any
	Profile      *types.Profile
	UseAI        bool
}

type Orchestrator struct {
	cfg      Config
	assessor assessor.Assessor
	logger   *slog.Logger
	registry *taxonomy.Registry
	now      func() time.Time
	metrics  *Metrics
}

type Option func(*Orchestrator)

func WithAssessor(a assessor.Assessor) Option {
	return func(o *Orchestrator) { o.assessor = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRegistry(r *taxonomy.Registry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithClock replaces time.Now for processing time measurement.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator. Without WithAssessor every run is
// algorithmic.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	o := &Orchestrator{
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		registry: taxonomy.Default,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run scores every threat of the requested domain. An unknown domain fails
// before anything is scored. A cancelled context yields the threats scored
// so far with Cancelled set and a nil error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*types.RunResult, error) {
	start := o.now()

	tax, err := o.registry.Get(req.Domain)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy: %w", err)
	}

	ctx, span := tracer.Start(ctx, "orchestrator.Run", trace.WithAttributes(
		attribute.String("assessment.domain", string(req.Domain)),
		attribute.Bool("assessment.use_ai", req.UseAI),
	))
	defer span.End()

	result := &types.RunResult{
		RunID:        uuid.NewString(),
		AssessmentID: req.AssessmentID,
		Domain:       tax.Domain(),
		Scenarios:    []types.ThreatScore{},
		Counts:       make(map[types.RiskLevel]int, len(types.RiskLevels)),
	}
	for _, level := range types.RiskLevels {
		result.Counts[level] = 0
	}
	logger := o.logger.With("run_id", result.RunID, "domain", string(tax.Domain()))

	// Step 1: normalize the answers once.
	responses := response.Normalize(req.Responses)

	// Step 2: decide whether the assessor takes part.
	var limiter *rate.Limiter
	switch {
	case req.UseAI && o.assessor == nil:
		logger.Warn("ai scoring requested but no assessor is configured, using algorithmic scoring")
	case req.UseAI:
		limiter = newLimiter(o.cfg.AIDelay)
	}

	// Step 3: score threats sequentially.
	agg := recommend.NewAggregator()
	for _, threat := range tax.Threats() {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		score, err := o.scoreThreat(ctx, tax, threat, responses, req.Profile, limiter, result, logger)
		switch {
		case err == nil:
		case errors.Is(err, taxonomy.ErrDanglingReference):
			logger.Error("skipping threat with unresolved taxonomy references", "threat_id", threat.ID, "error", err)
			result.Skipped = append(result.Skipped, types.SkippedThreat{ThreatID: threat.ID, Error: err.Error()})
			o.metrics.skipped(tax.Domain())
			continue
		case ctx.Err() != nil:
			result.Cancelled = true
		default:
			return nil, fmt.Errorf("scoring %s: %w", threat.ID, err)
		}
		if result.Cancelled {
			break
		}
		result.Scenarios = append(result.Scenarios, score)
		result.Counts[score.RiskLevel]++
		agg.Add(threat.ID, score.Recommendations)
		o.metrics.threat(tax.Domain(), score)
	}

	// Step 4: aggregate.
	result.Recommendations = agg.List()
	if result.Recommendations == nil {
		result.Recommendations = []types.Recommendation{}
	}
	result.Mode, result.Confidence = summarize(result.Scenarios)
	elapsed := o.now().Sub(start)
	result.ProcessingTimeMs = elapsed.Milliseconds()
	o.metrics.run(tax.Domain(), result.Mode, elapsed)

	span.SetAttributes(
		attribute.String("assessment.mode", string(result.Mode)),
		attribute.Int("assessment.scenarios", len(result.Scenarios)),
		attribute.Int("assessment.ai_failures", result.AIFailures),
	)
	if result.Cancelled {
		span.SetStatus(codes.Error, "run cancelled")
		logger.Warn("run cancelled", "scored", len(result.Scenarios))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	logger.Info("assessment scored",
		"mode", string(result.Mode),
		"confidence", string(result.Confidence),
		"scenarios", len(result.Scenarios),
		"skipped", len(result.Skipped),
		"ai_failures", result.AIFailures,
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

func (o *Orchestrator) scoreThreat(
	ctx context.Context,
	tax *taxonomy.Taxonomy,
	threat types.Threat,
	r response.Responses,
	p *types.Profile,
	limiter *rate.Limiter,
	result *types.RunResult,
	logger *slog.Logger,
) (types.ThreatScore, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.scoreThreat", trace.WithAttributes(
		attribute.String("threat.id", threat.ID),
	))
	defer span.End()

	st := newTracker(threat.ID)

	ev, err := scoring.Gather(tax, threat.ID, r, p)
	if err != nil {
		st.to(StateSkipped)
		span.RecordError(err)
		span.SetStatus(codes.Error, "taxonomy defect")
		return types.ThreatScore{}, err
	}

	score := types.ThreatScore{
		ThreatID:   threat.ID,
		ThreatName: threat.Name,
		Category:   threat.Category,
		Method:     types.MethodAlgorithmic,
		Success:    true,
	}

	var factors types.FactorScores
	if limiter != nil {
		st.to(StateAIAttempted)
		result.AIAttempts++
		a, err := o.assess(ctx, limiter, threat.ID, ev)
		if err == nil {
			st.to(StateAIOK)
			factors = a.Factors
			factors.Impact = scoring.FloorImpact(ev, factors.Impact)
			score.Method = types.MethodAI
			score.AIRationale = a.Rationale
		} else {
			if ctx.Err() != nil {
				span.RecordError(ctx.Err())
				return types.ThreatScore{}, ctx.Err()
			}
			st.to(StateAIFailed)
			result.AIFailures++
			score.AIError = err.Error()
			o.metrics.aiFailure(tax.Domain())
			span.AddEvent("ai_failed", trace.WithAttributes(attribute.String("error", err.Error())))
			logger.Warn("ai assessment failed, falling back to algorithmic scoring", "threat_id", threat.ID, "error", err)
		}
	}
	if score.Method == types.MethodAlgorithmic {
		st.to(StateAlgorithmicFallback)
		factors = scoring.Algorithmic(tax, ev)
	}

	c := scoring.Compose(tax.Scale(), tax.Thresholds(), factors)
	contributing := scoring.Factors(ev)
	recs := recommend.ForThreat(tax, threat.ID, ev.Gaps, c.Level)

	score.Likelihood = c.Likelihood
	score.Vulnerability = c.Vulnerability
	score.Impact = c.Impact
	score.Exposure = c.Exposure
	score.InherentRisk = c.InherentRisk
	score.NormalizedRisk = c.NormalizedRisk
	score.RiskLevel = c.Level
	score.ContributingFactors = nonNil(contributing)
	score.Recommendations = recs
	score.RecommendedControlIDs = nonNil(recommend.IDs(recs))
	score.Narrative = narrative.Compose(threat, tax.Scale(), c, contributing)
	st.to(StateScored)

	span.SetAttributes(
		attribute.String("threat.method", string(score.Method)),
		attribute.String("threat.level", string(score.RiskLevel)),
		attribute.Float64("threat.normalized_risk", score.NormalizedRisk),
	)
	span.SetStatus(codes.Ok, "")
	logger.Debug("threat scored", "threat_id", threat.ID, "method", string(score.Method), "level", string(score.RiskLevel), "states", st.history)
	return score, nil
}

// assess makes one bounded assessor call and parses its payload. Panics in
// the assessor are reported as errors.
func (o *Orchestrator) assess(ctx context.Context, limiter *rate.Limiter, threatID string, ev scoring.Evidence) (a *assessor.Assessment, err error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for assessor slot: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AITimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a, err = nil, fmt.Errorf("assessor panicked: %v", r)
		}
	}()

	raw, err := o.assessor.Assess(callCtx, threatID, ev)
	if err != nil {
		return nil, fmt.Errorf("calling assessor: %w", err)
	}
	return assessor.Parse(raw, ev.Scale)
}

func newLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// summarize derives the run mode and confidence from the scoring methods.
func summarize(scenarios []types.ThreatScore) (types.Mode, types.Confidence) {
	var ai, algorithmic int
	for _, s := range scenarios {
		if s.Method == types.MethodAI {
			ai++
		} else {
			algorithmic++
		}
	}
	switch {
	case ai > 0 && algorithmic == 0:
		return types.ModeAI, types.ConfidenceHigh
	case ai == 0:
		return types.ModeAlgorithmic, types.ConfidenceFallback
	case ai >= algorithmic:
		return types.ModeHybrid, types.ConfidenceMedium
	default:
		return types.ModeHybrid, types.ConfidenceLow
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
