// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package taxonomy

import (
	"sync"

	"github.com/bonial-oss/physec-risk/internal/types"
)

// Registry caches loaded taxonomies. Taxonomies are immutable after load, so
// a Registry is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	loaded map[types.Domain]*Taxonomy
}

// NewRegistry returns an empty registry backed by the embedded catalogs.
func NewRegistry() *Registry {
	return &Registry{loaded: make(map[types.Domain]*Taxonomy)}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Get returns the taxonomy for domain, loading it on first use.
func (r *Registry) Get(domain types.Domain) (*Taxonomy, error) {
	r.mu.RLock()
	t, ok := r.loaded[domain]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	t, err := Load(domain)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loaded[domain]; ok {
		return existing, nil
	}
	r.loaded[domain] = t
	return t, nil
}

// Register installs a taxonomy, replacing any loaded one for its domain.
func (r *Registry) Register(t *Taxonomy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded[t.Domain()] = t
}
