// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"sync"
)

// ErrNoState indicates no persisted experiment state exists yet.
var ErrNoState = errors.New("no persisted experiment state")

// PersistencePort is the durability capability injected into the engine.
//
// Description:
//
//	Implementations back the experiment state with a durable key-value
//	store (see storage/badger for the production adapter). Unit tests
//	substitute MemoryPort. Writes are best-effort from the engine's
//	point of view: a failed Save is logged and swallowed, never
//	surfaced to callers.
//
// Thread Safety: Implementations must be safe for concurrent use.
type PersistencePort interface {
	// Load returns the last persisted snapshot, or ErrNoState when
	// nothing has been saved yet.
	Load(ctx context.Context) ([]byte, error)

	// Save durably replaces the snapshot.
	Save(ctx context.Context, data []byte) error
}

// -----------------------------------------------------------------------------
// In-Memory Port
// -----------------------------------------------------------------------------

// MemoryPort is an in-memory PersistencePort for tests and ephemeral use.
//
// Thread Safety: Safe for concurrent use.
type MemoryPort struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryPort creates an empty in-memory port.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{}
}

// Load implements PersistencePort.
func (p *MemoryPort) Load(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, ErrNoState
	}
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out, nil
}

// Save implements PersistencePort.
func (p *MemoryPort) Save(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = make([]byte, len(data))
	copy(p.data, data)
	return nil
}

var _ PersistencePort = (*MemoryPort)(nil)
