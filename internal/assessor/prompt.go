// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package assessor

import (
	"fmt"
	"strings"

	"github.com/bonial-oss/physec-risk/internal/scoring"
)

// SystemPrompt frames every request.
const SystemPrompt = "You are a certified physical security professional scoring threats " +
	"with the Threat x Vulnerability x Impact methodology. Return ONLY valid JSON."

// BuildPrompt renders the evidence of one threat as a user prompt. The output
// depends only on ev, so it is usable as a cache key.
func BuildPrompt(ev scoring.Evidence) string {
	var b strings.Builder
	s := ev.Scale

	fmt.Fprintf(&b, "Threat: %s (%s)\n", ev.Threat.Name, ev.Threat.ID)
	if ev.Threat.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", ev.Threat.Category)
	}
	if ev.Threat.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.Threat.Description)
	}
	fmt.Fprintf(&b, "Baseline likelihood: %d, baseline impact: %d\n", ev.Threat.BaselineLikelihood, ev.Threat.BaselineImpact)
	if ev.ImpactFloor > 0 {
		fmt.Fprintf(&b, "Impact must not be scored below %d.\n", ev.ImpactFloor)
	}

	b.WriteString("\nInterview answers:\n")
	if len(ev.Answers) == 0 {
		b.WriteString("- none recorded\n")
	}
	for _, a := range ev.Answers {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.QuestionID, a.Question, a.Answer)
	}

	b.WriteString("\nControl gaps:\n")
	if len(ev.Gaps) == 0 {
		b.WriteString("- none detected\n")
	}
	for _, g := range ev.Gaps {
		marker := ""
		if g.Critical {
			marker = " (critical)"
		}
		fmt.Fprintf(&b, "- %s%s\n", g.Factor, marker)
	}

	fmt.Fprintf(&b, "\nIncident history match: %s\n", ev.Incident)
	for _, adj := range ev.Likelihood {
		fmt.Fprintf(&b, "Likelihood factor (%+d): %s\n", adj.Delta, adj.Factor)
	}
	for _, adj := range ev.Impact {
		fmt.Fprintf(&b, "Impact factor (%+d): %s\n", adj.Delta, adj.Factor)
	}
	for _, adj := range ev.Exposure {
		fmt.Fprintf(&b, "Exposure factor (%+.2f): %s\n", adj.Delta, adj.Factor)
	}

	fmt.Fprintf(&b, "\nScore likelihood, vulnerability and impact as integers from %d to %d.\n", s.Min, s.Max)
	if s.Exposure {
		fmt.Fprintf(&b, "Score exposure as a number from %.1f to %.1f.\n", s.ExposureMin, s.ExposureMax)
		b.WriteString(`Respond with: {"likelihood": <int>, "vulnerability": <int>, "impact": <int>, "exposure": <number>, "rationale": "<one paragraph>"}`)
	} else {
		b.WriteString(`Respond with: {"likelihood": <int>, "vulnerability": <int>, "impact": <int>, "rationale": "<one paragraph>"}`)
	}
	b.WriteString("\n")
	return b.String()
}
