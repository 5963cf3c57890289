// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package taxonomy holds the static, per-domain threat catalogs and the
// declarative rule tables that link threats to indicator questions and
// mitigating controls.
package taxonomy

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bonial-oss/physec-risk/internal/types"
)

//go:embed data/*.yaml
var dataFS embed.FS

var (
	// ErrUnknownDomain is returned when no taxonomy exists for a domain.
	ErrUnknownDomain = errors.New("unknown assessment domain")
	// ErrDanglingReference marks a threat that references a question or
	// control missing from the domain tables.
	ErrDanglingReference = errors.New("dangling taxonomy reference")
)

// Likelihood adjustment groups. Each group's sum is bounded independently.
const (
	GroupProfile  = "profile"
	GroupControls = "controls"
)

// Control is a mitigation that can be recommended.
type Control struct {
	ID      string        `yaml:"id" json:"id"`
	Name    string        `yaml:"name" json:"name"`
	Urgency types.Urgency `yaml:"urgency" json:"urgency,omitempty"`
}

// Question is an indicator question. Gap describes the answer that counts
// as an unmet control; questions without a gap rule only feed conditions.
type Question struct {
	ID       string        `yaml:"id" json:"id"`
	Text     string        `yaml:"text" json:"text"`
	Gap      Match         `yaml:"gap" json:"gap"`
	Factor   string        `yaml:"factor" json:"factor,omitempty"`
	Controls []string      `yaml:"controls" json:"controls,omitempty"`
	Urgency  types.Urgency `yaml:"urgency" json:"urgency,omitempty"`
}

// ThreatSpec is the catalog entry of a threat together with its links.
type ThreatSpec struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Category         string   `yaml:"category"`
	Likelihood       int      `yaml:"likelihood"`
	Impact           int      `yaml:"impact"`
	ImpactFloor      int      `yaml:"impact_floor"`
	Standards        string   `yaml:"standards"`
	Description      string   `yaml:"description"`
	Questions        []string `yaml:"questions"`
	Critical         []string `yaml:"critical"`
	Controls         []string `yaml:"controls"`
	Incidents        []string `yaml:"incidents"`
	RelatedIncidents []string `yaml:"related_incidents"`
}

// Rule is a conditional integer adjustment applied to the listed threats
// (all threats when Threats is empty).
type Rule struct {
	When    Condition `yaml:"when"`
	Threats []string  `yaml:"threats"`
	Delta   int       `yaml:"delta"`
	Group   string    `yaml:"group"`
	Factor  string    `yaml:"factor"`
}

// ExposureRule is a conditional exposure increment.
type ExposureRule struct {
	When   Condition `yaml:"when"`
	Delta  float64   `yaml:"delta"`
	Factor string    `yaml:"factor"`
}

// LikelihoodSpec configures the likelihood scorer for a domain.
type LikelihoodSpec struct {
	IncidentQuestion string `yaml:"incident_question"`
	DirectBonus      int    `yaml:"direct_bonus"`
	RelatedBonus     int    `yaml:"related_bonus"`
	Cap              int    `yaml:"cap"`
	Rules            []Rule `yaml:"rules"`
}

// ImpactSpec configures the impact scorer for a domain.
type ImpactSpec struct {
	Cap   int    `yaml:"cap"`
	Rules []Rule `yaml:"rules"`
}

// ExposureSpec configures the exposure scorer (person-centric domains).
type ExposureSpec struct {
	Base  float64        `yaml:"base"`
	Rules []ExposureRule `yaml:"rules"`
}

type scaleSpec struct {
	Min         int     `yaml:"min"`
	Max         int     `yaml:"max"`
	ExposureMin float64 `yaml:"exposure_min"`
	ExposureMax float64 `yaml:"exposure_max"`
}

type document struct {
	Domain                types.Domain   `yaml:"domain"`
	Title                 string         `yaml:"title"`
	Scale                 scaleSpec      `yaml:"scale"`
	BaselineVulnerability int            `yaml:"baseline_vulnerability"`
	BaselineImpact        int            `yaml:"baseline_impact"`
	VulnerabilityDivisor  int            `yaml:"vulnerability_divisor"`
	Thresholds            string         `yaml:"thresholds"`
	Likelihood            LikelihoodSpec `yaml:"likelihood"`
	Impact                ImpactSpec     `yaml:"impact"`
	Exposure              *ExposureSpec  `yaml:"exposure"`
	Controls              []Control      `yaml:"controls"`
	Questions             []Question     `yaml:"questions"`
	Threats               []ThreatSpec   `yaml:"threats"`
}

// ThreatQuestionLink links a threat to an indicator question.
type ThreatQuestionLink struct {
	ThreatID   string `json:"threatId"`
	QuestionID string `json:"questionId"`
	IsCritical bool   `json:"isCritical"`
}

// ThreatControlLink links a threat to a candidate control.
type ThreatControlLink struct {
	ThreatID  string `json:"threatId"`
	ControlID string `json:"controlId"`
}

// Taxonomy is the immutable, loaded catalog of one domain.
type Taxonomy struct {
	doc        document
	scale      types.Scale
	thresholds types.Thresholds
	threats    map[string]*ThreatSpec
	questions  map[string]*Question
	controls   map[string]*Control
}

// Parse decodes and structurally validates a taxonomy document. Reference
// defects inside individual threats are not fatal here; see CheckThreat.
func Parse(data []byte) (*Taxonomy, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding taxonomy: %w", err)
	}
	if doc.Domain == "" {
		return nil, fmt.Errorf("taxonomy has no domain")
	}
	if doc.Scale.Min < 1 || doc.Scale.Max <= doc.Scale.Min {
		return nil, fmt.Errorf("taxonomy %s: invalid scale [%d, %d]", doc.Domain, doc.Scale.Min, doc.Scale.Max)
	}
	if doc.VulnerabilityDivisor <= 0 {
		return nil, fmt.Errorf("taxonomy %s: vulnerability divisor must be positive", doc.Domain)
	}
	thresholds, ok := types.ThresholdTables[doc.Thresholds]
	if !ok {
		return nil, fmt.Errorf("taxonomy %s: unknown threshold table %q", doc.Domain, doc.Thresholds)
	}
	for _, r := range doc.Likelihood.Rules {
		if r.Group != GroupProfile && r.Group != GroupControls {
			return nil, fmt.Errorf("taxonomy %s: likelihood rule has unknown group %q", doc.Domain, r.Group)
		}
	}

	t := &Taxonomy{
		doc:        doc,
		thresholds: thresholds,
		scale: types.Scale{
			Min: doc.Scale.Min,
			Max: doc.Scale.Max,
		},
		threats:   make(map[string]*ThreatSpec, len(doc.Threats)),
		questions: make(map[string]*Question, len(doc.Questions)),
		controls:  make(map[string]*Control, len(doc.Controls)),
	}
	if doc.Exposure != nil {
		if doc.Scale.ExposureMin <= 0 || doc.Scale.ExposureMax < doc.Scale.ExposureMin {
			return nil, fmt.Errorf("taxonomy %s: invalid exposure range", doc.Domain)
		}
		t.scale.Exposure = true
		t.scale.ExposureMin = doc.Scale.ExposureMin
		t.scale.ExposureMax = doc.Scale.ExposureMax
	}

	for i := range t.doc.Controls {
		c := &t.doc.Controls[i]
		if _, dup := t.controls[c.ID]; dup {
			return nil, fmt.Errorf("taxonomy %s: duplicate control %q", doc.Domain, c.ID)
		}
		if c.Urgency == "" {
			c.Urgency = types.UrgencyMediumTerm
		}
		t.controls[c.ID] = c
	}
	for i := range t.doc.Questions {
		q := &t.doc.Questions[i]
		if _, dup := t.questions[q.ID]; dup {
			return nil, fmt.Errorf("taxonomy %s: duplicate question %q", doc.Domain, q.ID)
		}
		t.questions[q.ID] = q
	}
	for i := range t.doc.Threats {
		th := &t.doc.Threats[i]
		if _, dup := t.threats[th.ID]; dup {
			return nil, fmt.Errorf("taxonomy %s: duplicate threat %q", doc.Domain, th.ID)
		}
		t.threats[th.ID] = th
	}
	return t, nil
}

// Load reads the embedded taxonomy for a domain.
func Load(domain types.Domain) (*Taxonomy, error) {
	data, err := dataFS.ReadFile("data/" + string(domain) + ".yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
		}
		return nil, fmt.Errorf("reading taxonomy %s: %w", domain, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if t.Domain() != domain {
		return nil, fmt.Errorf("taxonomy file for %s declares domain %s", domain, t.Domain())
	}
	return t, nil
}

// Domains lists the embedded domains in sorted order.
func Domains() []types.Domain {
	entries, err := dataFS.ReadDir("data")
	if err != nil {
		return nil
	}
	out := make([]types.Domain, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			out = append(out, types.Domain(strings.TrimSuffix(name, ".yaml")))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Domain returns the taxonomy's domain.
func (t *Taxonomy) Domain() types.Domain { return t.doc.Domain }

// Title returns the human-readable domain title.
func (t *Taxonomy) Title() string { return t.doc.Title }

// Scale returns the factor scale.
func (t *Taxonomy) Scale() types.Scale { return t.scale }

// Thresholds returns the classification table.
func (t *Taxonomy) Thresholds() types.Thresholds { return t.thresholds }

// BaselineVulnerability returns the starting vulnerability score.
func (t *Taxonomy) BaselineVulnerability() int { return t.doc.BaselineVulnerability }

// BaselineImpact returns the domain-wide impact baseline.
func (t *Taxonomy) BaselineImpact() int { return t.doc.BaselineImpact }

// VulnerabilityDivisor returns the risk-factor divisor.
func (t *Taxonomy) VulnerabilityDivisor() int { return t.doc.VulnerabilityDivisor }

// Likelihood returns the likelihood configuration.
func (t *Taxonomy) Likelihood() LikelihoodSpec { return t.doc.Likelihood }

// Impact returns the impact configuration.
func (t *Taxonomy) Impact() ImpactSpec { return t.doc.Impact }

// Exposure returns the exposure configuration, or nil for facility domains.
func (t *Taxonomy) Exposure() *ExposureSpec { return t.doc.Exposure }

// Threats returns the catalog in declaration order.
func (t *Taxonomy) Threats() []types.Threat {
	out := make([]types.Threat, 0, len(t.doc.Threats))
	for i := range t.doc.Threats {
		out = append(out, t.threat(&t.doc.Threats[i]))
	}
	return out
}

func (t *Taxonomy) threat(th *ThreatSpec) types.Threat {
	return types.Threat{
		ID:                 th.ID,
		Name:               th.Name,
		Category:           th.Category,
		Domain:             t.doc.Domain,
		BaselineLikelihood: th.Likelihood,
		BaselineImpact:     th.Impact,
		StandardsCode:      th.Standards,
		Description:        th.Description,
	}
}

// Threat returns the catalog entry for id.
func (t *Taxonomy) Threat(id string) (types.Threat, bool) {
	th, ok := t.threats[id]
	if !ok {
		return types.Threat{}, false
	}
	return t.threat(th), true
}

// Spec returns the full spec (links included) of a threat.
func (t *Taxonomy) Spec(id string) (*ThreatSpec, bool) {
	th, ok := t.threats[id]
	return th, ok
}

// Question returns the question with the given id.
func (t *Taxonomy) Question(id string) (*Question, bool) {
	q, ok := t.questions[id]
	return q, ok
}

// Control returns the control with the given id.
func (t *Taxonomy) Control(id string) (*Control, bool) {
	c, ok := t.controls[id]
	return c, ok
}

// Controls returns the control catalog in declaration order.
func (t *Taxonomy) Controls() []Control {
	out := make([]Control, len(t.doc.Controls))
	copy(out, t.doc.Controls)
	return out
}

// Questions returns the question catalog in declaration order.
func (t *Taxonomy) Questions() []Question {
	out := make([]Question, len(t.doc.Questions))
	copy(out, t.doc.Questions)
	return out
}

// QuestionLinks returns the threat's question links in declaration order.
func (t *Taxonomy) QuestionLinks(threatID string) []ThreatQuestionLink {
	th, ok := t.threats[threatID]
	if !ok {
		return nil
	}
	critical := make(map[string]bool, len(th.Critical))
	for _, q := range th.Critical {
		critical[q] = true
	}
	out := make([]ThreatQuestionLink, 0, len(th.Questions))
	for _, q := range th.Questions {
		out = append(out, ThreatQuestionLink{ThreatID: th.ID, QuestionID: q, IsCritical: critical[q]})
	}
	return out
}

// ControlLinks returns the threat's candidate controls in declaration order.
func (t *Taxonomy) ControlLinks(threatID string) []ThreatControlLink {
	th, ok := t.threats[threatID]
	if !ok {
		return nil
	}
	out := make([]ThreatControlLink, 0, len(th.Controls))
	for _, c := range th.Controls {
		out = append(out, ThreatControlLink{ThreatID: th.ID, ControlID: c})
	}
	return out
}

// CheckThreat reports whether every reference reachable from the threat
// resolves: linked questions and controls, the controls of linked
// questions, and the questions referenced by rules that apply to it.
func (t *Taxonomy) CheckThreat(id string) error {
	th, ok := t.threats[id]
	if !ok {
		return fmt.Errorf("%w: threat %q not in catalog", ErrDanglingReference, id)
	}
	linked := make(map[string]bool, len(th.Questions))
	for _, qid := range th.Questions {
		q, ok := t.questions[qid]
		if !ok {
			return fmt.Errorf("%w: threat %s links unknown question %q", ErrDanglingReference, id, qid)
		}
		linked[qid] = true
		for _, cid := range q.Controls {
			if _, ok := t.controls[cid]; !ok {
				return fmt.Errorf("%w: question %s maps to unknown control %q", ErrDanglingReference, qid, cid)
			}
		}
	}
	for _, qid := range th.Critical {
		if !linked[qid] {
			return fmt.Errorf("%w: threat %s marks unlinked question %q critical", ErrDanglingReference, id, qid)
		}
	}
	for _, cid := range th.Controls {
		if _, ok := t.controls[cid]; !ok {
			return fmt.Errorf("%w: threat %s links unknown control %q", ErrDanglingReference, id, cid)
		}
	}
	if iq := t.doc.Likelihood.IncidentQuestion; iq != "" {
		if _, ok := t.questions[iq]; !ok {
			return fmt.Errorf("%w: incident question %q", ErrDanglingReference, iq)
		}
	}
	check := func(kind string, c Condition) error {
		for _, qid := range c.Questions() {
			if _, ok := t.questions[qid]; !ok {
				return fmt.Errorf("%w: %s rule references unknown question %q", ErrDanglingReference, kind, qid)
			}
		}
		if c.Gap != "" && t.questions[c.Gap].Gap.IsZero() {
			return fmt.Errorf("%w: %s rule references question %q which has no gap rule", ErrDanglingReference, kind, c.Gap)
		}
		if c.Profile != "" && !types.KnownFlag(c.Profile) {
			return fmt.Errorf("%w: %s rule references unknown profile flag %q", ErrDanglingReference, kind, c.Profile)
		}
		if c.Tier != "" && !types.KnownTier(c.Tier) {
			return fmt.Errorf("%w: %s rule references unknown profile tier %q", ErrDanglingReference, kind, c.Tier)
		}
		return nil
	}
	for _, r := range t.doc.Likelihood.Rules {
		if r.Applies(id) {
			if err := check("likelihood", r.When); err != nil {
				return err
			}
		}
	}
	for _, r := range t.doc.Impact.Rules {
		if r.Applies(id) {
			if err := check("impact", r.When); err != nil {
				return err
			}
		}
	}
	if t.doc.Exposure != nil {
		for _, r := range t.doc.Exposure.Rules {
			if err := check("exposure", r.When); err != nil {
				return err
			}
		}
	}
	return nil
}

// Applies reports whether the rule targets the threat.
func (r Rule) Applies(threatID string) bool {
	if len(r.Threats) == 0 {
		return true
	}
	for _, id := range r.Threats {
		if id == threatID {
			return true
		}
	}
	return false
}
