// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/uplift/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig(), "test-experiment")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(InMemoryConfig(), "")
	assert.Error(t, err)

	_, err = Open(Config{}, "exp")
	assert.Error(t, err, "persistent mode requires a path")
}

func TestStore_LoadAbsent(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, engine.ErrNoState)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	want := []byte(`{"enabled":[],"autoOptimize":true,"winner":null,"sessions":{}}`)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Save replaces, never appends.
	next := []byte(`{"enabled":["a"]}`)
	require.NoError(t, s.Save(ctx, next))

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	s, err := Open(cfg, "exp")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, []byte("snapshot")))
	require.NoError(t, s.Close())

	s, err = Open(cfg, "exp")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), got)
}

func TestStore_ExperimentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.SyncWrites = false

	a, err := Open(cfg, "exp-a")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	require.NoError(t, a.Save(ctx, []byte("a-state")))

	// Same database file, different experiment id.
	b := &Store{db: a.db, key: []byte(stateKeyPrefix + "exp-b")}
	_, err = b.Load(ctx)
	assert.ErrorIs(t, err, engine.ErrNoState)
}

func TestStore_BacksEngine(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	catalog, err := engine.NewCatalog([]engine.Variant{{ID: "a"}, {ID: "b"}})
	require.NoError(t, err)

	e, err := engine.New(catalog, s)
	require.NoError(t, err)
	e.Init(ctx)

	id, err := e.Assign(ctx, "session-1")
	require.NoError(t, err)

	// A second engine over the same store sees the persisted counters.
	e2, err := engine.New(catalog, s)
	require.NoError(t, err)
	e2.Init(ctx)

	assert.Equal(t, uint64(1), e2.GetStats()[id].Impressions)
}
