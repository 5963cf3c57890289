// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package types

// RiskLevel is the classification of a normalized risk value.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// RiskLevels lists every level from most to least severe.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow}

// Rank returns a numeric rank for sorting (higher = more severe).
func (l RiskLevel) Rank() int {
	switch l {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// Thresholds are the lower bounds (inclusive) of each level on the 0-100
// normalized scale. Anything below Medium is low.
type Thresholds struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
}

var (
	// ThresholdsStandard is used by most domains.
	ThresholdsStandard = Thresholds{Critical: 75, High: 50, Medium: 25}
	// ThresholdsSensitive is used by the manufacturing and retail domains.
	ThresholdsSensitive = Thresholds{Critical: 60, High: 40, Medium: 25}
)

// ThresholdTables maps the table names used in taxonomy files to their values.
var ThresholdTables = map[string]Thresholds{
	"standard":  ThresholdsStandard,
	"sensitive": ThresholdsSensitive,
}

// Classify returns the risk level for a normalized risk value.
func (t Thresholds) Classify(normalized float64) RiskLevel {
	switch {
	case normalized >= t.Critical:
		return RiskCritical
	case normalized >= t.High:
		return RiskHigh
	case normalized >= t.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Urgency is the implementation priority of a control recommendation.
type Urgency string

const (
	UrgencyImmediate  Urgency = "immediate"
	UrgencyShortTerm  Urgency = "short_term"
	UrgencyMediumTerm Urgency = "medium_term"
)

// Rank returns a numeric rank for sorting (higher = more urgent).
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 3
	case UrgencyShortTerm:
		return 2
	case UrgencyMediumTerm:
		return 1
	default:
		return 0
	}
}

// MaxUrgency returns the more urgent of a and b.
func MaxUrgency(a, b Urgency) Urgency {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// UrgencyForLevel is the minimum urgency a threat at the given level imposes
// on the controls it recommends.
func UrgencyForLevel(l RiskLevel) Urgency {
	switch l {
	case RiskCritical:
		return UrgencyImmediate
	case RiskHigh:
		return UrgencyShortTerm
	default:
		return UrgencyMediumTerm
	}
}

// Method records which path produced a threat score.
type Method string

const (
	MethodAI          Method = "ai"
	MethodAlgorithmic Method = "algorithmic"
)

// FactorScores are the four risk factors of one threat. Exposure is nil
// for facility domains.
type FactorScores struct {
	Likelihood    int
	Vulnerability int
	Impact        int
	Exposure      *float64
}

// ControlRecommendation is a control recommended for a single threat.
type ControlRecommendation struct {
	ControlID string  `json:"controlId"`
	Name      string  `json:"name"`
	Urgency   Urgency `json:"urgency"`
}

// ThreatScore is the scored result for one threat in one run. Scores are
// never mutated after creation; a new run supersedes the previous set.
type ThreatScore struct {
	ThreatID              string                  `json:"threatId"`
	ThreatName            string                  `json:"threatName"`
	Category              string                  `json:"category"`
	Likelihood            int                     `json:"likelihood"`
	Vulnerability         int                     `json:"vulnerability"`
	Impact                int                     `json:"impact"`
	Exposure              *float64                `json:"exposure,omitempty"`
	InherentRisk          float64                 `json:"inherentRisk"`
	NormalizedRisk        float64                 `json:"normalizedRisk"`
	RiskLevel             RiskLevel               `json:"riskLevel"`
	ContributingFactors   []string                `json:"contributingFactors"`
	RecommendedControlIDs []string                `json:"recommendedControlIds"`
	Recommendations       []ControlRecommendation `json:"recommendations,omitempty"`
	Narrative             string                  `json:"narrative"`
	Method                Method                  `json:"method"`
	AIError               string                  `json:"aiError,omitempty"`
	AIRationale           string                  `json:"aiRationale,omitempty"`
	Success               bool                    `json:"success"`
}

// SkippedThreat records a threat that could not be scored because its
// taxonomy entry is defective.
type SkippedThreat struct {
	ThreatID string `json:"threatId"`
	Success  bool   `json:"success"`
	Error    string `json:"error"`
}

// Recommendation is a run-level, de-duplicated control recommendation.
type Recommendation struct {
	ControlID string   `json:"controlId"`
	Name      string   `json:"name"`
	Urgency   Urgency  `json:"urgency"`
	ThreatIDs []string `json:"threatIds"`
}

// Mode describes which scoring paths contributed to a run.
type Mode string

const (
	ModeAI          Mode = "ai"
	ModeAlgorithmic Mode = "algorithmic"
	ModeHybrid      Mode = "hybrid"
)

// Confidence is the run-level confidence tier derived from the AI/algorithmic mix.
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
	ConfidenceFallback Confidence = "fallback"
)

// RunResult is the transient aggregate returned to the caller.
type RunResult struct {
	RunID            string            `json:"runId"`
	AssessmentID     string            `json:"assessmentId,omitempty"`
	Domain           Domain            `json:"domain"`
	Scenarios        []ThreatScore     `json:"scenarios"`
	Skipped          []SkippedThreat   `json:"skipped,omitempty"`
	Recommendations  []Recommendation  `json:"recommendations"`
	Mode             Mode              `json:"mode"`
	Confidence       Confidence        `json:"confidence"`
	Counts           map[RiskLevel]int `json:"counts"`
	AIAttempts       int               `json:"aiAttempts"`
	AIFailures       int               `json:"aiFailures"`
	Cancelled        bool              `json:"cancelled,omitempty"`
	ProcessingTimeMs int64             `json:"processingTimeMs"`
}

// HighestLevel returns the most severe level among the scored scenarios, or
// "" when nothing was scored.
func (r *RunResult) HighestLevel() RiskLevel {
	var highest RiskLevel
	for _, s := range r.Scenarios {
		if s.RiskLevel.Rank() > highest.Rank() {
			highest = s.RiskLevel
		}
	}
	return highest
}
