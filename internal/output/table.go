// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bonial-oss/physec-risk/internal/taxonomy"
	"github.com/bonial-oss/physec-risk/internal/types"
)

const (
	maxFactorWords  = 12
	maxFactorsShown = 3
)

// TableConfig controls row order and styling.
type TableConfig struct {
	SortBy              string // "risk", "name", "" (taxonomy order)
	HideRecommendations bool
	IsTerminal          bool // true when output goes to a terminal (enables ANSI styling)
}

// IsOutputToTerminal returns true if the writer is stdout connected to a
// character device (TTY).
func IsOutputToTerminal(output io.Writer) bool {
	return output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// WriteTable writes a run result: a summary header, the scenario table,
// skipped threats and the aggregated control recommendations.
func WriteTable(w io.Writer, r *types.RunResult, cfg TableConfig) error {
	writeHeader(w, fmt.Sprintf("%s assessment", r.Domain), cfg.IsTerminal)
	fmt.Fprintln(w, levelSummary(r))
	fmt.Fprintf(w, "Mode: %s, confidence: %s, AI failures: %d/%d\n", r.Mode, r.Confidence, r.AIFailures, r.AIAttempts)
	if r.Cancelled {
		fmt.Fprintln(w, "Run cancelled: results are partial.")
	}
	fmt.Fprintln(w)

	rows := make([]*types.ThreatScore, len(r.Scenarios))
	for i := range r.Scenarios {
		rows[i] = &r.Scenarios[i]
	}
	sortRows(rows, cfg.SortBy)
	writeScenarioTable(w, rows, hasExposure(r.Scenarios), cfg.IsTerminal)

	if len(r.Skipped) > 0 {
		writeSection(w, fmt.Sprintf("Skipped Threats (Total: %d)", len(r.Skipped)), cfg.IsTerminal)
		tw := newTableWriter(w, cfg.IsTerminal)
		tw.SetHeaders("Threat", "Error")
		for _, s := range r.Skipped {
			tw.AddRow(s.ThreatID, s.Error)
		}
		tw.Render()
	}

	if !cfg.HideRecommendations && len(r.Recommendations) > 0 {
		writeSection(w, fmt.Sprintf("Recommended Controls (Total: %d)", len(r.Recommendations)), cfg.IsTerminal)
		tw := newTableWriter(w, cfg.IsTerminal)
		tw.SetHeaders("Control", "Name", "Urgency", "Threats")
		for _, rec := range r.Recommendations {
			tw.AddRow(rec.ControlID, rec.Name, colorizeUrgency(rec.Urgency, cfg.IsTerminal), strings.Join(rec.ThreatIDs, "\n"))
		}
		tw.Render()
	}
	return nil
}

// WriteCatalog lists the threats of a taxonomy with their critical questions
// and control pool.
func WriteCatalog(w io.Writer, tax *taxonomy.Taxonomy, cfg TableConfig) error {
	scale := tax.Scale()
	writeHeader(w, fmt.Sprintf("%s (%s)", tax.Title(), tax.Domain()), cfg.IsTerminal)
	fmt.Fprintf(w, "Scale: %d-%d", scale.Min, scale.Max)
	if scale.Exposure {
		fmt.Fprintf(w, ", exposure %.1f-%.1f", scale.ExposureMin, scale.ExposureMax)
	}
	th := tax.Thresholds()
	fmt.Fprintf(w, ", thresholds: critical >= %.0f, high >= %.0f, medium >= %.0f\n\n", th.Critical, th.High, th.Medium)

	tw := newTableWriter(w, cfg.IsTerminal)
	tw.SetHeaders("Threat", "Category", "Likelihood", "Impact", "Standard", "Critical Questions", "Controls")
	for _, t := range tax.Threats() {
		var critical []string
		for _, link := range tax.QuestionLinks(t.ID) {
			if link.IsCritical {
				critical = append(critical, link.QuestionID)
			}
		}
		var controls []string
		for _, link := range tax.ControlLinks(t.ID) {
			controls = append(controls, link.ControlID)
		}
		tw.AddRow(
			t.ID,
			t.Category,
			fmt.Sprint(t.BaselineLikelihood),
			fmt.Sprint(t.BaselineImpact),
			dash(t.StandardsCode),
			dash(strings.Join(critical, "\n")),
			dash(strings.Join(controls, "\n")),
		)
	}
	tw.Render()
	return nil
}

// writeHeader writes a title underlined for terminals or with "=" otherwise.
func writeHeader(w io.Writer, title string, isTerminal bool) {
	if isTerminal {
		_ = tml.Fprintf(w, "<underline><bold>%s</bold></underline>\n", title)
		return
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(title)))
}

func writeSection(w io.Writer, title string, isTerminal bool) {
	if isTerminal {
		_ = tml.Fprintf(w, "\n<underline>%s</underline>\n\n", title)
		return
	}
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "%s\n", strings.Repeat("=", utf8.RuneCountInString(title)))
}

// newTableWriter creates a table writer with borders, auto-merge and row
// separators. When isTerminal is true, header and line styles use ANSI
// formatting.
func newTableWriter(w io.Writer, isTerminal bool) *aqtable.Table {
	tw := aqtable.New(w)
	if isTerminal {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetAutoMerge(true)
	tw.SetRowLines(true)
	return tw
}

func writeScenarioTable(w io.Writer, rows []*types.ThreatScore, exposure, isTerminal bool) {
	tw := newTableWriter(w, isTerminal)
	headers := []string{"Threat", "Category", "L", "V", "I"}
	if exposure {
		headers = append(headers, "E")
	}
	headers = append(headers, "Risk %", "Level", "Method", "Key Factors")
	tw.SetHeaders(headers...)

	for _, s := range rows {
		cols := []string{
			s.ThreatName,
			s.Category,
			fmt.Sprint(s.Likelihood),
			fmt.Sprint(s.Vulnerability),
			fmt.Sprint(s.Impact),
		}
		if exposure {
			cols = append(cols, formatExposure(s.Exposure))
		}
		method := string(s.Method)
		if s.AIError != "" {
			method += " (fallback)"
		}
		cols = append(cols,
			fmt.Sprintf("%.1f", s.NormalizedRisk),
			colorizeLevel(s.RiskLevel, isTerminal),
			method,
			keyFactors(s.ContributingFactors),
		)
		tw.AddRow(cols...)
	}
	tw.Render()
}

// levelSummary returns a line like:
// Total: 5 (LOW: 2, MEDIUM: 1, HIGH: 1, CRITICAL: 1)
func levelSummary(r *types.RunResult) string {
	return fmt.Sprintf("Total: %d (LOW: %d, MEDIUM: %d, HIGH: %d, CRITICAL: %d)",
		len(r.Scenarios), r.Counts[types.RiskLow], r.Counts[types.RiskMedium], r.Counts[types.RiskHigh], r.Counts[types.RiskCritical])
}

var levelColors = map[types.RiskLevel]func(a ...any) string{
	types.RiskLow:      color.New(color.FgBlue).SprintFunc(),
	types.RiskMedium:   color.New(color.FgYellow).SprintFunc(),
	types.RiskHigh:     color.New(color.FgHiRed).SprintFunc(),
	types.RiskCritical: color.New(color.FgRed).SprintFunc(),
}

func colorizeLevel(l types.RiskLevel, isTerminal bool) string {
	label := strings.ToUpper(string(l))
	if fn, ok := levelColors[l]; ok && isTerminal {
		return fn(label)
	}
	return label
}

var urgencyColors = map[types.Urgency]func(a ...any) string{
	types.UrgencyImmediate:  color.New(color.FgRed).SprintFunc(),
	types.UrgencyShortTerm:  color.New(color.FgYellow).SprintFunc(),
	types.UrgencyMediumTerm: color.New(color.FgCyan).SprintFunc(),
}

func colorizeUrgency(u types.Urgency, isTerminal bool) string {
	if fn, ok := urgencyColors[u]; ok && isTerminal {
		return fn(string(u))
	}
	return string(u)
}

// sortRows orders scenario rows in place.
func sortRows(rows []*types.ThreatScore, sortBy string) {
	switch sortBy {
	case "risk":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].NormalizedRisk > rows[j].NormalizedRisk
		})
	case "name":
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].ThreatName < rows[j].ThreatName
		})
	default:
		// preserve taxonomy order
	}
}

func hasExposure(scenarios []types.ThreatScore) bool {
	for _, s := range scenarios {
		if s.Exposure != nil {
			return true
		}
	}
	return false
}

func formatExposure(e *float64) string {
	if e == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *e)
}

// keyFactors shows the first few factors, one per line, each truncated to
// maxFactorWords words.
func keyFactors(factors []string) string {
	if len(factors) == 0 {
		return "-"
	}
	shown := factors
	if len(shown) > maxFactorsShown {
		shown = shown[:maxFactorsShown]
	}
	lines := make([]string, 0, len(shown)+1)
	for _, f := range shown {
		lines = append(lines, truncateWords(f, maxFactorWords))
	}
	if extra := len(factors) - len(shown); extra > 0 {
		lines = append(lines, fmt.Sprintf("(+%d more)", extra))
	}
	return strings.Join(lines, "\n")
}

// truncateWords limits text to maxWords words, appending "..." if truncated.
func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return text
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
