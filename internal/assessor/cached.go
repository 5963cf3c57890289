// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package assessor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/bonial-oss/physec-risk/internal/cache"
	"github.com/bonial-oss/physec-risk/internal/scoring"
)

// Cached serves repeated prompts from a file cache. Only responses that
// parse are stored.
type Cached struct {
	next   Assessor
	cache  *cache.Cache
	model  string
	logger *slog.Logger
}

// NewCached wraps next. model is part of the cache key.
func NewCached(next Assessor, c *cache.Cache, model string, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cached{next: next, cache: c, model: model, logger: logger}
}

// Key returns the cache key for a model and evidence pair.
func Key(model string, ev scoring.Evidence) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(SystemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(BuildPrompt(ev)))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) Assess(ctx context.Context, threatID string, ev scoring.Evidence) ([]byte, error) {
	key := Key(c.model, ev)

	data, err := c.cache.Load(key)
	switch {
	case err == nil:
		c.logger.Debug("ai assessment served from cache", "threat_id", threatID)
		return data, nil
	case !errors.Is(err, cache.ErrMiss):
		c.logger.Warn("reading ai cache", "threat_id", threatID, "error", err)
	}

	raw, err := c.next.Assess(ctx, threatID, ev)
	if err != nil {
		return nil, err
	}
	if _, perr := Parse(raw, ev.Scale); perr != nil {
		return raw, nil
	}
	if err := c.cache.Store(key, raw, c.model); err != nil {
		c.logger.Warn("writing ai cache", "threat_id", threatID, "error", err)
	}
	return raw, nil
}
