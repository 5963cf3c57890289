// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package config reads runtime settings from the environment and an
// optional .env file. Command-line flags override these values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"

	defaultModel     = "gpt-4o-mini"
	defaultTimeoutMS = 30000
	defaultDelayMS   = 500
)

// AIConfig holds the assessor settings.
type AIConfig struct {
	Provider string
	APIKey   string `json:"-"`
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Delay    time.Duration
}

// IsEnabled reports whether an assessor can be constructed.
func (c AIConfig) IsEnabled() bool {
	return c.Provider == ProviderOpenAI && c.APIKey != ""
}

type Config struct {
	AI       AIConfig
	DBDSN    string `json:"-"`
	CacheDir string
	LogLevel string
	LogJSON  bool
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	timeout, err := intEnv("PHYSEC_AI_TIMEOUT_MS", defaultTimeoutMS)
	if err != nil {
		return nil, err
	}
	delay, err := intEnv("PHYSEC_AI_DELAY_MS", defaultDelayMS)
	if err != nil {
		return nil, err
	}
	logJSON, err := boolEnv("PHYSEC_LOG_JSON")
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(os.Getenv("PHYSEC_AI_PROVIDER"))
	if provider != "" && provider != ProviderOpenAI {
		return nil, fmt.Errorf("unsupported PHYSEC_AI_PROVIDER %q", provider)
	}

	return &Config{
		AI: AIConfig{
			Provider: provider,
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Model:    getEnvOrDefault("OPENAI_MODEL", defaultModel),
			BaseURL:  os.Getenv("OPENAI_BASE_URL"),
			Timeout:  time.Duration(timeout) * time.Millisecond,
			Delay:    time.Duration(delay) * time.Millisecond,
		},
		DBDSN:    os.Getenv("PHYSEC_DB_DSN"),
		CacheDir: os.Getenv("PHYSEC_CACHE_DIR"),
		LogLevel: getEnvOrDefault("PHYSEC_LOG_LEVEL", "info"),
		LogJSON:  logJSON,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func boolEnv(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
