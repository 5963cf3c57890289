// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package assessor is the boundary to an external AI assessor. Responses are
// untrusted: they are parsed into a strict schema, range checked and clamped
// before the orchestrator composes a score from them.
package assessor

import (
	"context"
	"errors"

	"github.com/bonial-oss/physec-risk/internal/scoring"
)

var (
	// ErrInvalidResponse wraps every parse or validation failure.
	ErrInvalidResponse = errors.New("invalid assessor response")
	// ErrDisabled is returned when no assessor is configured.
	ErrDisabled = errors.New("ai assessor disabled")
)

// Assessor scores one threat from its evidence and returns the raw payload.
type Assessor interface {
	Assess(ctx context.Context, threatID string, ev scoring.Evidence) ([]byte, error)
}

// Func adapts a function to the Assessor interface.
type Func func(ctx context.Context, threatID string, ev scoring.Evidence) ([]byte, error)

func (f Func) Assess(ctx context.Context, threatID string, ev scoring.Evidence) ([]byte, error) {
	return f(ctx, threatID, ev)
}
