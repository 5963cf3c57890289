// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"regexp"
	"strconv"
	"strings"
)

// Profile holds the facility or person facts that adjust likelihood,
// impact and exposure. All fields are optional.
type Profile struct {
	HasIntellectualProperty bool   `json:"hasIntellectualProperty,omitempty"`
	HasHazardousMaterials   bool   `json:"hasHazardousMaterials,omitempty"`
	HasHighValueAssets      bool   `json:"hasHighValueAssets,omitempty"`
	HandlesCash             bool   `json:"handlesCash,omitempty"`
	Operates24x7            bool   `json:"operates24x7,omitempty"`
	CFATSTier               int    `json:"cfatsTier,omitempty" validate:"gte=0,lte=4"`
	AnnualValue             string `json:"annualValue,omitempty"`
	EmployeeCount           int    `json:"employeeCount,omitempty" validate:"gte=0"`
	NetWorth                string `json:"netWorth,omitempty"`
	PublicProfile           string `json:"publicProfile,omitempty"`
	MediaCoverage           string `json:"mediaCoverage,omitempty"`
	FamilyMembers           int    `json:"familyMembers,omitempty" validate:"gte=0"`
}

// Profile flag names usable from taxonomy rule tables.
const (
	FlagHasIP              = "has_ip"
	FlagHasHazmat          = "has_hazmat"
	FlagHasHighValueAssets = "has_high_value_assets"
	FlagHandlesCash        = "handles_cash"
	FlagOperates24x7       = "operates_24x7"
	FlagCFATSRegulated     = "cfats_regulated"
	FlagHasFamily          = "has_family"
)

// Profile tier names usable from taxonomy rule tables.
const (
	TierAnnualValue   = "annual_value"
	TierEmployees     = "employees"
	TierNetWorth      = "net_worth"
	TierPublicProfile = "public_profile"
	TierMediaCoverage = "media_coverage"
	TierCFATS         = "cfats"
)

// KnownFlag reports whether name is a profile flag.
func KnownFlag(name string) bool {
	switch name {
	case FlagHasIP, FlagHasHazmat, FlagHasHighValueAssets, FlagHandlesCash,
		FlagOperates24x7, FlagCFATSRegulated, FlagHasFamily:
		return true
	}
	return false
}

// KnownTier reports whether name is a profile tier.
func KnownTier(name string) bool {
	switch name {
	case TierAnnualValue, TierEmployees, TierNetWorth, TierPublicProfile,
		TierMediaCoverage, TierCFATS:
		return true
	}
	return false
}

// Flag returns the named boolean fact. Safe to call on a nil receiver.
func (p *Profile) Flag(name string) bool {
	if p == nil {
		return false
	}
	switch name {
	case FlagHasIP:
		return p.HasIntellectualProperty
	case FlagHasHazmat:
		return p.HasHazardousMaterials
	case FlagHasHighValueAssets:
		return p.HasHighValueAssets
	case FlagHandlesCash:
		return p.HandlesCash
	case FlagOperates24x7:
		return p.Operates24x7
	case FlagCFATSRegulated:
		return p.CFATSTier > 0
	case FlagHasFamily:
		return p.FamilyMembers > 0
	}
	return false
}

// Tier returns the named 1-5 tier, or 0 when the fact is unknown.
// Safe to call on a nil receiver.
func (p *Profile) Tier(name string) int {
	if p == nil {
		return 0
	}
	switch name {
	case TierAnnualValue:
		return dollarTier(p.AnnualValue, annualValueBands)
	case TierEmployees:
		return countTier(p.EmployeeCount)
	case TierNetWorth:
		return dollarTier(p.NetWorth, netWorthBands)
	case TierPublicProfile:
		return wordTier(p.PublicProfile)
	case TierMediaCoverage:
		return wordTier(p.MediaCoverage)
	case TierCFATS:
		// CFATS tier 1 is the highest-risk designation.
		if p.CFATSTier < 1 || p.CFATSTier > 4 {
			return 0
		}
		return 6 - p.CFATSTier
	}
	return 0
}

// Lower bounds, in dollars, of tiers 2 through 5.
var (
	annualValueBands = [4]float64{10e6, 50e6, 100e6, 500e6}
	netWorthBands    = [4]float64{1e6, 10e6, 100e6, 1e9}
)

var amountPattern = regexp.MustCompile(`(?i)\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(k|m|mm|b|bn|thousand|million|billion)?`)

// dollarTier parses band text such as "over $500M", "$10M-$50M" or
// "under 1 million" and places its lower bound into bands.
func dollarTier(text string, bands [4]float64) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		amount *= 1e3
	case "m", "mm", "million":
		amount *= 1e6
	case "b", "bn", "billion":
		amount *= 1e9
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "under") || strings.HasPrefix(lower, "less than") || strings.HasPrefix(lower, "<") {
		// Strictly below the stated amount.
		amount = amount * 0.999
	}
	tier := 1
	for _, b := range bands {
		if amount >= b {
			tier++
		}
	}
	return tier
}

func countTier(n int) int {
	switch {
	case n <= 0:
		return 0
	case n < 50:
		return 1
	case n < 250:
		return 2
	case n < 1000:
		return 3
	case n < 5000:
		return 4
	default:
		return 5
	}
}

// wordTier maps visibility words (or a digit 1-5) to a tier.
func wordTier(text string) int {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n < 1 {
			return 0
		}
		if n > 5 {
			return 5
		}
		return n
	}
	t = strings.NewReplacer("-", "_", " ", "_").Replace(t)
	switch t {
	case "none", "minimal", "private":
		return 1
	case "low", "local":
		return 2
	case "moderate", "medium", "regional", "occasional":
		return 3
	case "high", "national", "frequent", "public_figure":
		return 4
	case "very_high", "celebrity", "international", "global", "constant":
		return 5
	}
	return 0
}
