// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package sink persists scored threats. The scoring engine never writes
// anywhere itself; callers hand finished scores to a Sink.
package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bonial-oss/physec-risk/internal/types"
)

// Sink stores one scored threat and returns its id.
type Sink interface {
	Save(ctx context.Context, assessmentID string, s types.ThreatScore) (string, error)
}

// SaveAll saves scores in order and returns their ids. It stops at the first
// failure and returns the ids saved so far.
func SaveAll(ctx context.Context, s Sink, assessmentID string, scores []types.ThreatScore) ([]string, error) {
	ids := make([]string, 0, len(scores))
	for _, score := range scores {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := s.Save(ctx, assessmentID, score)
		if err != nil {
			return ids, fmt.Errorf("saving scenario %s: %w", score.ThreatID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Record is a saved score as held by Memory.
type Record struct {
	ID           string
	AssessmentID string
	Score        types.ThreatScore
}

// Memory is an in-process Sink, safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(ctx context.Context, assessmentID string, s types.ThreatScore) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.records = append(m.records, Record{ID: id, AssessmentID: assessmentID, Score: s})
	m.mu.Unlock()
	return id, nil
}

// Records returns the saved records of one assessment, or all of them when
// assessmentID is empty.
func (m *Memory) Records(assessmentID string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if assessmentID == "" || r.AssessmentID == assessmentID {
			out = append(out, r)
		}
	}
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
