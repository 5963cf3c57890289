// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package assessor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/bonial-oss/physec-risk/internal/scoring"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI assessor. APIKey is never logged.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAI is an Assessor backed by the chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI returns ErrDisabled when no API key is set.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
		logger.Debug("no model configured, using default", "model", model)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger.Info("initializing openai assessor", "model", model)
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

// Model returns the configured model name.
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Assess(ctx context.Context, threatID string, ev scoring.Evidence) ([]byte, error) {
	o.logger.Debug("requesting ai assessment", "threat_id", threatID, "model", o.model)

	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(ev)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", ErrInvalidResponse)
	}
	o.logger.Debug("received ai assessment", "threat_id", threatID, "finish_reason", resp.Choices[0].FinishReason)
	return []byte(resp.Choices[0].Message.Content), nil
}
