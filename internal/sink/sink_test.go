// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/physec-risk/internal/types"
)

func scores(ids ...string) []types.ThreatScore {
	out := make([]types.ThreatScore, len(ids))
	for i, id := range ids {
		out[i] = types.ThreatScore{ThreatID: id, RiskLevel: types.RiskLow, Success: true}
	}
	return out
}

func TestMemory_SaveAll(t *testing.T) {
	m := NewMemory()
	ids, err := SaveAll(context.Background(), m, "a-1", scores("theft", "arson"))
	require.NoError(t, err)
	require.Len(t, ids, 2)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, ids[0], ids[1])

	_, err = SaveAll(context.Background(), m, "a-2", scores("vandalism"))
	require.NoError(t, err)

	recs := m.Records("a-1")
	require.Len(t, recs, 2)
	assert.Equal(t, "theft", recs[0].Score.ThreatID)
	assert.Equal(t, ids[0], recs[0].ID)
	assert.Len(t, m.Records(""), 3)
	assert.Equal(t, 3, m.Len())
}

func TestMemory_ConcurrentSaves(t *testing.T) {
	m := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Save(context.Background(), "a", types.ThreatScore{ThreatID: "t"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Len())
}

type failing struct{ after int }

func (f *failing) Save(_ context.Context, _ string, _ types.ThreatScore) (string, error) {
	if f.after == 0 {
		return "", errors.New("disk full")
	}
	f.after--
	return "ok", nil
}

func TestSaveAll_StopsAtFirstError(t *testing.T) {
	ids, err := SaveAll(context.Background(), &failing{after: 1}, "a", scores("t1", "t2", "t3"))
	assert.ErrorContains(t, err, "saving scenario t2")
	assert.Equal(t, []string{"ok"}, ids)
}

func TestSaveAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ids, err := SaveAll(ctx, NewMemory(), "a", scores("t1"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ids)
}

func TestToRow(t *testing.T) {
	e := 2.5
	row, err := toRow("a-1", types.ThreatScore{
		ThreatID:              "kidnapping",
		ThreatName:            "Kidnapping",
		Likelihood:            7,
		Vulnerability:         6,
		Impact:                10,
		Exposure:              &e,
		InherentRisk:          1050,
		NormalizedRisk:        21,
		RiskLevel:             types.RiskLow,
		Method:                types.MethodAI,
		ContributingFactors:   []string{"Predictable commute"},
		RecommendedControlIDs: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, "a-1", row.AssessmentID)
	assert.Equal(t, "low", row.RiskLevel)
	assert.Equal(t, "ai", row.Method)
	assert.Equal(t, `["Predictable commute"]`, row.ContributingFactors)
	assert.Equal(t, `[]`, row.RecommendedControls)
	assert.Equal(t, 2.5, *row.Exposure)
	assert.Equal(t, "risk_scenarios", RiskScenario{}.TableName())
	_, err = uuid.Parse(row.ID)
	assert.NoError(t, err)
}
