// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/physec-risk/internal/assessor"
	"github.com/bonial-oss/physec-risk/internal/cache"
	"github.com/bonial-oss/physec-risk/internal/config"
	"github.com/bonial-oss/physec-risk/internal/input"
	"github.com/bonial-oss/physec-risk/internal/logging"
	"github.com/bonial-oss/physec-risk/internal/orchestrator"
	"github.com/bonial-oss/physec-risk/internal/output"
	"github.com/bonial-oss/physec-risk/internal/sink"
	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ExitError signals a non-zero exit code with an optional message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// Options holds all CLI flag values.
type Options struct {
	Domain            string
	ProfilePath       string
	UseAI             bool
	Format            string
	Output            string
	FailOn            string
	Save              bool
	SortBy            string
	NoRecommendations bool
	LogLevel          string
	CacheDir          string
	AIDelay           time.Duration
	AITimeout         time.Duration
	MetricsFile       string
}

// NewRootCommand creates the root cobra command with all flags.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	cmd := &cobra.Command{
		Use:     "physec-risk",
		Short:   "Score physical-security assessments into risk scenarios and control recommendations",
		Version: Version,
		Long: `physec-risk reads a completed facility or executive-protection assessment
from stdin, scores every threat of the domain taxonomy for likelihood,
vulnerability and impact, classifies the resulting risk and recommends
controls. Scoring is algorithmic unless --use-ai is set and an AI provider
is configured, in which case failed AI calls fall back per threat.

Usage:
  physec-risk --domain office < answers.json
  physec-risk --format table --fail-on high < assessment.json
  physec-risk taxonomy manufacturing`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			return run(c, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Domain, "domain", "", "Assessment domain (overrides the input envelope)")
	flags.StringVar(&opts.ProfilePath, "profile", "", "JSON file with the facility or principal profile")
	flags.BoolVar(&opts.UseAI, "use-ai", false, "Score through the configured AI provider with algorithmic fallback")
	flags.StringVar(&opts.Format, "format", "json", "Output format: json, table")
	flags.StringVarP(&opts.Output, "output", "o", "", "Write to file instead of stdout")
	flags.StringVar(&opts.FailOn, "fail-on", "", "Exit code 1 if any scenario reaches level: critical, high, medium, low")
	flags.BoolVar(&opts.Save, "save", false, "Persist scenarios to the database configured by PHYSEC_DB_DSN")
	flags.StringVar(&opts.SortBy, "sort-by", "", "Sort table by: risk, name (default taxonomy order)")
	flags.BoolVar(&opts.NoRecommendations, "no-recommendations", false, "Omit the recommended controls section from table output")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.CacheDir, "cache-dir", "", "Override AI response cache directory")
	flags.DurationVar(&opts.AIDelay, "ai-delay", orchestrator.DefaultAIDelay, "Minimum delay between AI calls")
	flags.DurationVar(&opts.AITimeout, "ai-timeout", orchestrator.DefaultAITimeout, "Timeout for a single AI call")
	flags.StringVar(&opts.MetricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this file")

	cmd.AddCommand(newTaxonomyCommand())

	return cmd
}

// run orchestrates the full scoring pipeline.
func run(c *cobra.Command, opts *Options) error {
	// Step 1: validate flags.
	if opts.Format != "json" && opts.Format != "table" {
		return &ExitError{Code: 2, Message: fmt.Sprintf("unsupported output format: %s", opts.Format)}
	}
	var failOn types.RiskLevel
	if opts.FailOn != "" {
		var err error
		if failOn, err = parseRiskLevel(opts.FailOn); err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
	}

	// Step 2: configuration and logging. Flags override environment.
	cfg, err := config.Load()
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if c.Flags().Changed("ai-delay") {
		cfg.AI.Delay = opts.AIDelay
	}
	if c.Flags().Changed("ai-timeout") {
		cfg.AI.Timeout = opts.AITimeout
	}
	if opts.CacheDir != "" {
		cfg.CacheDir = opts.CacheDir
	}
	if opts.Save && cfg.DBDSN == "" {
		return &ExitError{Code: 2, Message: "--save requires PHYSEC_DB_DSN"}
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Writer: c.ErrOrStderr()})
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	// Step 3: read and parse the assessment.
	data, err := io.ReadAll(c.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		return &ExitError{Code: 2, Message: "no input provided on stdin"}
	}
	parsed, err := input.Parse(data)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("parsing input: %v", err)}
	}
	env := parsed.Envelope
	logger.Debug("input parsed", "format", parsed.Format.String(), "responses", len(env.Responses))

	if opts.Domain != "" {
		env.Domain = types.Domain(opts.Domain)
	}
	if env.Domain == "" {
		return &ExitError{Code: 2, Message: "no domain given: use --domain or set \"domain\" in the input"}
	}
	if opts.ProfilePath != "" {
		profile, err := readProfile(opts.ProfilePath)
		if err != nil {
			return &ExitError{Code: 2, Message: err.Error()}
		}
		env.Profile = profile
	}
	useAI := opts.UseAI || env.UseAI

	// Step 4: build the orchestrator.
	reg := prometheus.NewRegistry()
	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(orchestrator.NewMetrics(reg)),
	}
	if useAI {
		a, err := newAssessor(cfg, logger)
		switch {
		case errors.Is(err, assessor.ErrDisabled):
			logger.Warn("no AI provider configured, scoring algorithmically")
		case err != nil:
			return err
		default:
			orchOpts = append(orchOpts, orchestrator.WithAssessor(a))
		}
	}
	orch := orchestrator.New(orchestrator.Config{AIDelay: cfg.AI.Delay, AITimeout: cfg.AI.Timeout}, orchOpts...)

	// Step 5: score.
	result, err := orch.Run(c.Context(), orchestrator.Request{
		AssessmentID: env.AssessmentID,
		Domain:       env.Domain,
		Responses:    env.Responses,
		Profile:      env.Profile,
		UseAI:        useAI,
	})
	if errors.Is(err, taxonomy.ErrUnknownDomain) {
		return &ExitError{
			Code:    3,
			Message: fmt.Sprintf("unknown domain %q (known: %s)", env.Domain, knownDomains()),
		}
	}
	if err != nil {
		return fmt.Errorf("scoring assessment: %w", err)
	}

	// Step 6: write output.
	w := c.OutOrStdout()
	if opts.Output != "" && opts.Output != "-" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	switch opts.Format {
	case "json":
		err = output.WriteJSON(w, result)
	case "table":
		err = output.WriteTable(w, result, output.TableConfig{
			SortBy:              opts.SortBy,
			HideRecommendations: opts.NoRecommendations,
			IsTerminal:          output.IsOutputToTerminal(w),
		})
	}
	if err != nil {
		return err
	}

	// Step 7: persist.
	if opts.Save {
		if err := save(c.Context(), cfg.DBDSN, result, logger); err != nil {
			return err
		}
	}

	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics file: %w", err)
		}
	}

	// Step 8: check policy.
	if failOn != "" && result.HighestLevel().Rank() >= failOn.Rank() {
		return &ExitError{
			Code:    1,
			Message: fmt.Sprintf("policy violation: %s risk found (--fail-on %s)", result.HighestLevel(), failOn),
		}
	}
	if result.Cancelled {
		return &ExitError{Code: 2, Message: "run cancelled before all threats were scored"}
	}

	return nil
}

// newAssessor builds the OpenAI assessor behind the response cache.
func newAssessor(cfg *config.Config, logger *slog.Logger) (assessor.Assessor, error) {
	if !cfg.AI.IsEnabled() {
		return nil, assessor.ErrDisabled
	}
	ai, err := assessor.NewOpenAI(assessor.OpenAIConfig{
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		BaseURL: cfg.AI.BaseURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		if cacheDir, err = defaultCacheDir(); err != nil {
			return nil, err
		}
	}
	return assessor.NewCached(ai, cache.New(cacheDir), ai.Model(), logger), nil
}

func defaultCacheDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "physec-risk"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "physec-risk"), nil
}

func save(ctx context.Context, dsn string, result *types.RunResult, logger *slog.Logger) error {
	db, err := sink.OpenPostgres(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database connection", "error", err)
		}
	}()
	assessmentID := result.AssessmentID
	if assessmentID == "" {
		assessmentID = result.RunID
	}
	ids, err := sink.SaveAll(ctx, db, assessmentID, result.Scenarios)
	if err != nil {
		return fmt.Errorf("persisting scenarios: %w", err)
	}
	logger.Info("scenarios saved", "assessment_id", assessmentID, "count", len(ids))
	return nil
}

func readProfile(path string) (*types.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	p, err := input.ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return p, nil
}

func parseRiskLevel(s string) (types.RiskLevel, error) {
	l := types.RiskLevel(strings.ToLower(s))
	if l.Rank() == 0 {
		return "", fmt.Errorf("invalid --fail-on level %q: want critical, high, medium or low", s)
	}
	return l, nil
}

func knownDomains() string {
	domains := taxonomy.Domains()
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
