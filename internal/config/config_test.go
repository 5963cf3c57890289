// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"PHYSEC_AI_PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
	"PHYSEC_AI_TIMEOUT_MS", "PHYSEC_AI_DELAY_MS", "PHYSEC_DB_DSN",
	"PHYSEC_CACHE_DIR", "PHYSEC_LOG_LEVEL", "PHYSEC_LOG_JSON",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.AI.Delay)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.False(t, cfg.AI.IsEnabled())
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHYSEC_AI_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("PHYSEC_AI_TIMEOUT_MS", "1500")
	t.Setenv("PHYSEC_AI_DELAY_MS", "0")
	t.Setenv("PHYSEC_DB_DSN", "postgres://localhost/physec")
	t.Setenv("PHYSEC_LOG_JSON", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.AI.IsEnabled())
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, 1500*time.Millisecond, cfg.AI.Timeout)
	assert.Zero(t, cfg.AI.Delay)
	assert.Equal(t, "postgres://localhost/physec", cfg.DBDSN)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PHYSEC_AI_TIMEOUT_MS", "soon"},
		{"PHYSEC_AI_DELAY_MS", "-5"},
		{"PHYSEC_LOG_JSON", "maybe"},
		{"PHYSEC_AI_PROVIDER", "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAIConfig_IsEnabled(t *testing.T) {
	assert.False(t, AIConfig{Provider: ProviderOpenAI}.IsEnabled())
	assert.False(t, AIConfig{APIKey: "k"}.IsEnabled())
	assert.True(t, AIConfig{Provider: ProviderOpenAI, APIKey: "k"}.IsEnabled())
}
