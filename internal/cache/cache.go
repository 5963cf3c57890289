// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package cache is a small file-backed cache with a per-entry TTL. It keeps
// assessor responses between runs.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const defaultTTL = 24 * time.Hour

// ErrMiss is returned by Load when an entry is absent or stale.
var ErrMiss = errors.New("cache miss")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Metadata is stored next to every entry.
type Metadata struct {
	StoredAt string `json:"stored_at"`
	Source   string `json:"source,omitempty"`
}

type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// New returns a cache rooted at dir with the default TTL.
func New(dir string) *Cache {
	return NewWithTTL(dir, defaultTTL)
}

// NewWithTTL returns a cache rooted at dir. A non-positive ttl means the
// default.
func NewWithTTL(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}
}

// IsFresh reports whether the entry exists and is younger than the TTL.
func (c *Cache) IsFresh(key string) bool {
	meta, err := c.loadMetadata(key)
	if err != nil {
		return false
	}
	storedAt, err := time.Parse(time.RFC3339, meta.StoredAt)
	if err != nil {
		return false
	}
	return c.now().Sub(storedAt) < c.ttl
}

// Store writes the entry and its metadata.
func (c *Cache) Store(key string, data []byte, source string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	if err := os.WriteFile(c.dataPath(key), data, 0o644); err != nil {
		return fmt.Errorf("writing cache data: %w", err)
	}
	meta := Metadata{StoredAt: c.now().UTC().Format(time.RFC3339), Source: source}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := os.WriteFile(c.metaPath(key), metaBytes, 0o644); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	return nil
}

// Load returns a fresh entry, or ErrMiss.
func (c *Cache) Load(key string) ([]byte, error) {
	if !keyPattern.MatchString(key) || !c.IsFresh(key) {
		return nil, ErrMiss
	}
	data, err := os.ReadFile(c.dataPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("reading cache data: %w", err)
	}
	return data, nil
}

func (c *Cache) dataPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *Cache) metaPath(key string) string {
	return filepath.Join(c.dir, key+".meta.json")
}

func (c *Cache) loadMetadata(key string) (*Metadata, error) {
	data, err := os.ReadFile(c.metaPath(key))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
