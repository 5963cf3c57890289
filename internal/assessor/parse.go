// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package assessor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/bonial-oss/physec-risk/internal/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Assessment is a validated, clamped assessor response.
type Assessment struct {
	Factors   types.FactorScores
	Rationale string
}

type payload struct {
	Likelihood    *float64 `json:"likelihood" validate:"required"`
	Vulnerability *float64 `json:"vulnerability" validate:"required"`
	Impact        *float64 `json:"impact" validate:"required"`
	Exposure      *float64 `json:"exposure"`
	Rationale     string   `json:"rationale" validate:"max=4000"`
}

// Parse decodes a raw response for the given scale. Any missing field or
// value outside the scale fails with ErrInvalidResponse; nothing is
// defaulted. In-range fractions are rounded.
func Parse(raw []byte, scale types.Scale) (*Assessment, error) {
	body := stripFences(raw)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: decoding json: %v", ErrInvalidResponse, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	lo, hi := float64(scale.Min), float64(scale.Max)
	l, err := factor("likelihood", *p.Likelihood, lo, hi)
	if err != nil {
		return nil, err
	}
	v, err := factor("vulnerability", *p.Vulnerability, lo, hi)
	if err != nil {
		return nil, err
	}
	i, err := factor("impact", *p.Impact, lo, hi)
	if err != nil {
		return nil, err
	}

	a := &Assessment{
		Factors: types.FactorScores{
			Likelihood:    scale.Clamp(int(math.Round(l))),
			Vulnerability: scale.Clamp(int(math.Round(v))),
			Impact:        scale.Clamp(int(math.Round(i))),
		},
		Rationale: p.Rationale,
	}

	if scale.Exposure {
		if p.Exposure == nil {
			return nil, fmt.Errorf("%w: exposure is required", ErrInvalidResponse)
		}
		e, err := factor("exposure", *p.Exposure, scale.ExposureMin, scale.ExposureMax)
		if err != nil {
			return nil, err
		}
		e = scale.ClampExposure(math.Round(e*100) / 100)
		a.Factors.Exposure = &e
	}
	return a, nil
}

func factor(name string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidResponse, name, v, lo, hi)
	}
	return v, nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(body, []byte("```")) {
		return body
	}
	body = bytes.TrimPrefix(body, []byte("```"))
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("json"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}
