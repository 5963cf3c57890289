// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package input

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/physec-risk/internal/types"
)

func TestDetect_Envelope(t *testing.T) {
	data := []byte(`{
		"assessmentId": "a-42",
		"domain": "manufacturing",
		"useAI": true,
		"profile": {"hasIntellectualProperty": true, "annualValue": "over $500M", "cfatsTier": 2},
		"responses": {
			"production_1": "no",
			"ip_3": 2,
			"incident_1": ["theft", "espionage"]
		}
	}`)

	result, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, FormatEnvelope, result.Format)
	env := result.Envelope
	require.NotNil(t, env)
	assert.Equal(t, "a-42", env.AssessmentID)
	assert.Equal(t, types.DomainManufacturing, env.Domain)
	assert.True(t, env.UseAI)
	require.NotNil(t, env.Profile)
	assert.True(t, env.Profile.HasIntellectualProperty)
	assert.Equal(t, 2, env.Profile.CFATSTier)
	assert.Len(t, env.Responses, 3)
	assert.Equal(t, 2.0, env.Responses["ip_3"])
}

func TestDetect_BareMap(t *testing.T) {
	data := []byte(`{"access_1": "yes", "access_2": "no", "cctv_1": 4}`)

	result, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, FormatBare, result.Format)
	assert.Equal(t, "bare", result.Format.String())
	require.NotNil(t, result.Envelope)
	assert.Empty(t, result.Envelope.Domain)
	assert.Nil(t, result.Envelope.Profile)
	assert.Equal(t, "no", result.Envelope.Responses["access_2"])
}

func TestDetect_ResponsesNotAnObject(t *testing.T) {
	// A question literally named "responses" keeps the map bare.
	result, err := Parse([]byte(`{"responses": "yes", "q1": "no"}`))
	require.NoError(t, err)
	assert.Equal(t, FormatBare, result.Format)
	assert.Equal(t, "yes", result.Envelope.Responses["responses"])
}

func TestDetect_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ``},
		{"array", `[{"q1": "no"}]`},
		{"truncated", `{"q1": "no"`},
		{"bad profile tier", `{"profile": {"cfatsTier": 9}, "responses": {}}`},
		{"negative employees", `{"profile": {"employeeCount": -3}, "responses": {}}`},
		{"long assessment id", `{"assessmentId": "` + strings.Repeat("a", 65) + `", "responses": {}}`},
		{"wrong type", `{"useAI": "yes", "responses": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseProfile(t *testing.T) {
	p, err := ParseProfile([]byte(`{"netWorth": "$250M", "publicProfile": "high", "familyMembers": 2}`))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Tier(types.TierNetWorth))
	assert.True(t, p.Flag(types.FlagHasFamily))

	_, err = ParseProfile([]byte(`{"netWorth": "$250M", "favouriteColour": "blue"}`))
	assert.Error(t, err)
	_, err = ParseProfile([]byte(`{"cfatsTier": 5}`))
	assert.Error(t, err)
}
