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
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T, ids ...string) *Catalog {
	t.Helper()
	variants := make([]Variant, len(ids))
	for i, id := range ids {
		variants[i] = Variant{ID: id}
	}
	c, err := NewCatalog(variants)
	require.NoError(t, err)
	return c
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failPort rejects every write and reports absent state.
type failPort struct{ saves int }

func (p *failPort) Load(context.Context) ([]byte, error) { return nil, ErrNoState }
func (p *failPort) Save(context.Context, []byte) error {
	p.saves++
	return errors.New("disk on fire")
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog(t, "a", "b", "c")
	port := NewMemoryPort()

	s := NewStore(catalog, port, quietLogger(), true)
	s.RecordImpression(ctx, "a")
	s.RecordImpression(ctx, "a")
	s.RecordClick(ctx, "a")
	s.RecordDetailOpen(ctx, "b")
	s.RecordSessionEnd(ctx, "a", 80, 120)
	require.NoError(t, s.Disable(ctx, "c"))
	s.SetWinner(ctx, "a")
	s.SetAutoOptimize(ctx, false)

	// A fresh store over the same port must see identical state.
	reloaded := NewStore(catalog, port, quietLogger(), true)
	reloaded.Load(ctx)

	assert.Equal(t, s.GetAll(), reloaded.GetAll())
	assert.Equal(t, s.Pool(), reloaded.Pool())
	assert.False(t, reloaded.IsAutoOptimize())

	winner, ok := reloaded.Winner()
	require.True(t, ok)
	assert.Equal(t, "a", winner)
}

func TestStore_LoadAbsentStateKeepsDefaults(t *testing.T) {
	catalog := testCatalog(t, "a", "b")
	s := NewStore(catalog, NewMemoryPort(), quietLogger(), true)
	s.Load(context.Background())

	assert.True(t, s.IsAutoOptimize())
	assert.Equal(t, []string{"a", "b"}, s.Pool())
	assert.Zero(t, s.TotalImpressions())
}

func TestStore_LoadCorruptStateFallsBack(t *testing.T) {
	ctx := context.Background()
	catalog := testCatalog(t, "a", "b")
	port := NewMemoryPort()
	require.NoError(t, port.Save(ctx, []byte("{not json")))

	s := NewStore(catalog, port, quietLogger(), true)
	s.Load(ctx)

	assert.Equal(t, []string{"a", "b"}, s.Pool())
	assert.Zero(t, s.TotalImpressions())
	_, ok := s.Winner()
	assert.False(t, ok)
}

func TestStore_LoadSanitizesAgainstCatalog(t *testing.T) {
	ctx := context.Background()
	port := NewMemoryPort()

	// Persist with a wider catalog, then reload against a narrower one.
	wide := NewStore(testCatalog(t, "a", "b", "gone"), port, quietLogger(), true)
	wide.RecordImpression(ctx, "gone")
	wide.RecordImpression(ctx, "a")
	wide.SetEnabled(ctx, []string{"a", "gone"})
	wide.SetWinner(ctx, "gone")

	s := NewStore(testCatalog(t, "a", "b"), port, quietLogger(), true)
	s.Load(ctx)

	assert.Equal(t, []string{"a"}, s.Pool())
	assert.Equal(t, uint64(1), s.TotalImpressions())
	_, ok := s.Winner()
	assert.False(t, ok, "winner outside the catalog must be cleared")
}

func TestStore_WriteFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	port := &failPort{}
	s := NewStore(testCatalog(t, "a"), port, quietLogger(), true)

	// None of these may panic or surface the write error.
	s.RecordImpression(ctx, "a")
	s.RecordClick(ctx, "a")
	s.Reset(ctx)

	assert.Equal(t, 3, port.saves)
	assert.Zero(t, s.TotalImpressions(), "reset applies in memory despite failed writes")
}

func TestStore_SessionEndClampsScrollDepth(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testCatalog(t, "a"), NewMemoryPort(), quietLogger(), true)

	s.RecordSessionEnd(ctx, "a", 250, 60)
	assert.Equal(t, uint64(100), s.Get("a").TotalScrollDepth)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testCatalog(t, "a", "b"), NewMemoryPort(), quietLogger(), true)

	s.RecordImpression(ctx, "a")
	s.RecordClick(ctx, "a")
	s.SetWinner(ctx, "a")
	require.NoError(t, s.Disable(ctx, "b"))

	s.Reset(ctx)

	assert.Zero(t, s.TotalImpressions())
	_, ok := s.Winner()
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, s.Pool(), "reset keeps the enabled set")
}

func TestStore_PoolOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("empty enabled set means full catalog", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a", "b", "c"), NewMemoryPort(), quietLogger(), true)
		assert.Equal(t, []string{"a", "b", "c"}, s.Pool())
		assert.Empty(t, s.EnabledIDs())
	})

	t.Run("set enabled drops unknown ids silently", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a", "b"), NewMemoryPort(), quietLogger(), true)
		s.SetEnabled(ctx, []string{"b", "nope", "also-nope"})
		assert.Equal(t, []string{"b"}, s.Pool())
	})

	t.Run("disable materializes the full set first", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a", "b", "c"), NewMemoryPort(), quietLogger(), true)
		require.NoError(t, s.Disable(ctx, "b"))
		assert.Equal(t, []string{"a", "c"}, s.Pool())
		assert.Equal(t, []string{"a", "c"}, s.EnabledIDs())
	})

	t.Run("enable and disable reject unknown ids", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a"), NewMemoryPort(), quietLogger(), true)
		assert.ErrorIs(t, s.Enable(ctx, "nope"), ErrUnknownVariant)
		assert.ErrorIs(t, s.Disable(ctx, "nope"), ErrUnknownVariant)
	})

	t.Run("pool change clears the winner", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a", "b", "c"), NewMemoryPort(), quietLogger(), true)
		s.SetWinner(ctx, "b")

		s.SetEnabled(ctx, []string{"a"})
		_, ok := s.Winner()
		assert.False(t, ok)
	})

	t.Run("no-op pool change keeps the winner", func(t *testing.T) {
		s := NewStore(testCatalog(t, "a", "b"), NewMemoryPort(), quietLogger(), true)
		s.SetWinner(ctx, "a")

		// Re-declaring the same effective pool is not a change.
		s.SetEnabled(ctx, []string{"a", "b"})
		require.NoError(t, s.Enable(ctx, "b"))

		winner, ok := s.Winner()
		require.True(t, ok)
		assert.Equal(t, "a", winner)
	})
}

func TestState_EncodeDecodeRoundTrip(t *testing.T) {
	st := newExperimentState(true)
	st.enabled["b"] = struct{}{}
	st.enabled["a"] = struct{}{}
	st.winner = "a"
	st.statsFor("a").Impressions = 7
	st.statsFor("a").Clicks = 3
	st.statsFor("b").DetailOpens = 2

	data, err := st.encode()
	require.NoError(t, err)

	got, err := decodeExperimentState(data)
	require.NoError(t, err)

	assert.Equal(t, st.enabled, got.enabled)
	assert.Equal(t, st.winner, got.winner)
	assert.Equal(t, st.autoOptimize, got.autoOptimize)
	assert.Equal(t, st.sessions, got.sessions)
}

func TestState_EncodeOmitsAbsentWinner(t *testing.T) {
	st := newExperimentState(false)
	data, err := st.encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"winner":null`)
}
