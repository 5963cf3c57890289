// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package narrative renders the fixed-template scenario description of a
// scored threat.
package narrative

import (
	"fmt"
	"math"
	"strings"

	"github.com/bonial-oss/physec-risk/internal/scoring"
	"github.com/bonial-oss/physec-risk/internal/types"
)

// MaxFactors is the number of contributing factors quoted in a narrative.
const MaxFactors = 5

// Adjectives per five-point band, index 0 is band 1.
var (
	likelihoodWords    = [5]string{"rare", "unlikely", "possible", "likely", "almost certain"}
	vulnerabilityWords = [5]string{"well-protected", "adequately protected", "moderately vulnerable", "vulnerable", "highly vulnerable"}
	impactWords        = [5]string{"negligible", "minor", "moderate", "major", "severe"}
	exposureWords      = [5]string{"low-profile", "modestly exposed", "noticeably exposed", "highly exposed", "extremely exposed"}
)

// Compose renders the narrative. Identical input yields identical output;
// factors are quoted in the order given.
func Compose(threat types.Threat, scale types.Scale, c scoring.Composite, factors []string) string {
	var b strings.Builder

	b.WriteString(threat.Name)
	b.WriteString(".")
	if threat.Description != "" {
		b.WriteString(" ")
		b.WriteString(threat.Description)
	}

	fmt.Fprintf(&b, " This threat is %s (likelihood %d/%d), the target is %s (vulnerability %d/%d) and the consequences would be %s (impact %d/%d).",
		likelihoodWords[scale.Band(c.Likelihood)-1], c.Likelihood, scale.Max,
		vulnerabilityWords[scale.Band(c.Vulnerability)-1], c.Vulnerability, scale.Max,
		impactWords[scale.Band(c.Impact)-1], c.Impact, scale.Max,
	)
	if c.Exposure != nil {
		fmt.Fprintf(&b, " The principal is %s (exposure %.2f/%.1f).",
			exposureWords[exposureBand(*c.Exposure)-1], *c.Exposure, scale.ExposureMax)
	}

	fmt.Fprintf(&b, " Overall risk is %s at %.1f%% of the maximum.", strings.ToUpper(string(c.Level)), c.NormalizedRisk)

	if len(factors) == 0 {
		b.WriteString(" No specific control gaps were identified.")
		return b.String()
	}
	if len(factors) > MaxFactors {
		factors = factors[:MaxFactors]
	}
	b.WriteString(" Key factors: ")
	b.WriteString(strings.Join(factors, "; "))
	b.WriteString(".")
	return b.String()
}

func exposureBand(e float64) int {
	b := int(math.Floor(e))
	if b < 1 {
		return 1
	}
	if b > 5 {
		return 5
	}
	return b
}
