// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package input decodes assessment requests read from stdin or files.
package input

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/bonial-oss/physec-risk/internal/types"
)

type Format int

const (
	// FormatEnvelope carries responses together with domain, profile and options.
	FormatEnvelope Format = iota
	// FormatBare is a plain question-id to answer map.
	FormatBare
)

func (f Format) String() string {
	if f == FormatEnvelope {
		return "envelope"
	}
	return "bare"
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Envelope is a complete assessment request.
type Envelope struct {
	AssessmentID string         `json:"assessmentId" validate:"max=64"`
	Domain       types.Domain   `json:"domain" validate:"omitempty,max=64"`
	Profile      *types.Profile `json:"profile"`
	Responses    map[string]any `json:"responses" validate:"required"`
	UseAI        bool           `json:"useAI"`
}

type ParseResult struct {
	Format   Format
	Envelope *Envelope
}

// Parse detects the input shape and decodes it. A bare map becomes an
// envelope with only Responses set.
func Parse(data []byte) (*ParseResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("unrecognized input format: expected a JSON object")
	}

	// Probe for the envelope's responses object.
	var probe struct {
		Responses json.RawMessage `json:"responses"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}

	if r := bytes.TrimSpace(probe.Responses); len(r) > 0 && r[0] == '{' {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parsing assessment envelope: %w", err)
		}
		if err := validate.Struct(env); err != nil {
			return nil, fmt.Errorf("validating assessment envelope: %w", err)
		}
		return &ParseResult{Format: FormatEnvelope, Envelope: &env}, nil
	}

	var responses map[string]any
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("parsing response map: %w", err)
	}
	return &ParseResult{Format: FormatBare, Envelope: &Envelope{Responses: responses}}, nil
}

// ParseProfile decodes and validates a standalone profile document.
func ParseProfile(data []byte) (*types.Profile, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var p types.Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("validating profile: %w", err)
	}
	return &p, nil
}
