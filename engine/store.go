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
	"log/slog"
	"sync"
)

// -----------------------------------------------------------------------------
// Statistics Store
// -----------------------------------------------------------------------------

// Store owns the durable experiment state: per-variant counters, the
// enabled pool, the auto-optimize flag, and the declared winner.
//
// Description:
//
//	Every mutating call rewrites the full state through the injected
//	PersistencePort. Writes are best-effort: a failed write is logged,
//	counted, and swallowed, and the next mutation retries implicitly by
//	rewriting the whole snapshot. Analytics data here is inherently
//	approximate, so durability failures must never break allocation.
//
//	Callers are responsible for not double-counting: one impression per
//	session, one session-end per session.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	port    PersistencePort
	catalog *Catalog
	logger  *slog.Logger
	state   *experimentState
}

// NewStore creates a store with fresh default state. Call Load to pick
// up a previously persisted snapshot.
func NewStore(catalog *Catalog, port PersistencePort, logger *slog.Logger, autoOptimize bool) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		port:    port,
		catalog: catalog,
		logger:  logger,
		state:   newExperimentState(autoOptimize),
	}
}

// Load replaces in-memory state with the persisted snapshot, if any.
//
// Description:
//
//	Absent state keeps the fresh defaults. A corrupt snapshot is
//	treated as absent: the store logs the problem, keeps defaults, and
//	re-persists lazily on the next mutation. Loaded state is sanitized
//	against the catalog: unknown enabled ids are dropped silently and a
//	winner outside the enabled pool is cleared.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.port.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoState) {
			s.logger.Warn("experiment state load failed, starting fresh", "error", err)
		}
		return
	}

	st, err := decodeExperimentState(data)
	if err != nil {
		s.logger.Warn("experiment state corrupt, starting fresh", "error", err)
		return
	}

	st.sanitize(s.catalog)
	s.state = st
}

// -----------------------------------------------------------------------------
// Counter Operations
// -----------------------------------------------------------------------------

// RecordImpression adds one impression for the variant.
func (s *Store) RecordImpression(ctx context.Context, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.statsFor(variantID).Impressions++
	engagementEventsTotal.WithLabelValues("impression").Inc()
	s.persistLocked(ctx)
}

// recordAssignment adds the impression and session-count increments a
// fresh assignment produces, in one persisted write.
func (s *Store) recordAssignment(ctx context.Context, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.statsFor(variantID)
	st.Impressions++
	st.SessionCount++
	engagementEventsTotal.WithLabelValues("impression").Inc()
	s.persistLocked(ctx)
}

// RecordClick adds one primary-action click for the variant.
func (s *Store) RecordClick(ctx context.Context, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.statsFor(variantID).Clicks++
	engagementEventsTotal.WithLabelValues("click").Inc()
	s.persistLocked(ctx)
}

// RecordDetailOpen adds one detail-view open for the variant.
func (s *Store) RecordDetailOpen(ctx context.Context, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.statsFor(variantID).DetailOpens++
	engagementEventsTotal.WithLabelValues("detail_open").Inc()
	s.persistLocked(ctx)
}

// RecordSessionEnd folds a finished session's scroll depth and duration
// into the variant's totals.
//
// Inputs:
//   - scrollDepthPct: Final scroll depth, clamped to [0, 100].
//   - durationSec: Session duration in seconds.
func (s *Store) RecordSessionEnd(ctx context.Context, variantID string, scrollDepthPct, durationSec uint64) {
	if scrollDepthPct > 100 {
		scrollDepthPct = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state.statsFor(variantID)
	st.TotalScrollDepth += scrollDepthPct
	st.TotalDuration += durationSec
	engagementEventsTotal.WithLabelValues("session_end").Inc()
	s.persistLocked(ctx)
}

// Reset zeroes all counters, clears the winner, and persists.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.sessions = make(map[string]*VariantStats)
	s.state.winner = ""
	s.persistLocked(ctx)
}

// Get returns a copy of the variant's counters (zeroed if never touched).
func (s *Store) Get(variantID string) VariantStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.state.sessions[variantID]; ok {
		return *st
	}
	return VariantStats{}
}

// GetAll returns a consistent snapshot of every catalog variant's
// counters, including zeroed entries for untouched variants.
func (s *Store) GetAll() map[string]VariantStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]VariantStats, s.catalog.Len())
	for _, id := range s.catalog.IDs() {
		if st, ok := s.state.sessions[id]; ok {
			out[id] = *st
		} else {
			out[id] = VariantStats{}
		}
	}
	return out
}

// TotalImpressions sums impressions across all variants.
func (s *Store) TotalImpressions() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, st := range s.state.sessions {
		total += st.Impressions
	}
	return total
}

// -----------------------------------------------------------------------------
// Pool Operations
// -----------------------------------------------------------------------------

// Pool returns the enabled variant ids in catalog order. An empty
// enabled set resolves to the full catalog.
func (s *Store) Pool() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.pool(s.catalog)
}

// EnabledIDs returns the raw enabled set (empty means all enabled).
func (s *Store) EnabledIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.state.enabled))
	for _, id := range s.catalog.IDs() {
		if _, ok := s.state.enabled[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// SetEnabled replaces the enabled set. Ids not present in the catalog
// are dropped silently, matching the load-time rule. If the resolved
// pool changes, the winner is cleared, forcing re-exploration.
func (s *Store) SetEnabled(ctx context.Context, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.pool(s.catalog)

	enabled := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if s.catalog.Contains(id) {
			enabled[id] = struct{}{}
		}
	}
	s.state.enabled = enabled

	s.clearWinnerOnPoolChange(before)
	s.persistLocked(ctx)
}

// Enable adds a variant to the enabled set.
//
// Outputs:
//   - error: ErrUnknownVariant if the id is not in the catalog.
func (s *Store) Enable(ctx context.Context, variantID string) error {
	if !s.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.pool(s.catalog)
	s.state.enabled[variantID] = struct{}{}
	s.clearWinnerOnPoolChange(before)
	s.persistLocked(ctx)
	return nil
}

// Disable removes a variant from the enabled set.
//
// Description:
//
//	When the enabled set is empty (meaning "all enabled"), it is first
//	materialized to the full catalog so removing one id does not flip
//	the semantics back to all-enabled.
//
// Outputs:
//   - error: ErrUnknownVariant if the id is not in the catalog.
func (s *Store) Disable(ctx context.Context, variantID string) error {
	if !s.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.pool(s.catalog)
	if len(s.state.enabled) == 0 {
		for _, id := range s.catalog.IDs() {
			s.state.enabled[id] = struct{}{}
		}
	}
	delete(s.state.enabled, variantID)
	s.clearWinnerOnPoolChange(before)
	s.persistLocked(ctx)
	return nil
}

// clearWinnerOnPoolChange clears the winner if the resolved pool no
// longer matches the given previous pool. Caller holds the lock.
func (s *Store) clearWinnerOnPoolChange(before []string) {
	if s.state.winner == "" {
		return
	}
	after := s.state.pool(s.catalog)
	if len(before) != len(after) {
		s.state.winner = ""
		return
	}
	for i := range before {
		if before[i] != after[i] {
			s.state.winner = ""
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Winner and Auto-Optimize
// -----------------------------------------------------------------------------

// Winner returns the declared winner, if any.
func (s *Store) Winner() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.winner, s.state.winner != ""
}

// SetWinner declares a winner and persists.
func (s *Store) SetWinner(ctx context.Context, variantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.winner = variantID
	s.persistLocked(ctx)
}

// ClearWinner removes the declared winner and persists.
func (s *Store) ClearWinner(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.winner = ""
	s.persistLocked(ctx)
}

// IsAutoOptimize reports whether adaptive allocation is on.
func (s *Store) IsAutoOptimize() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.autoOptimize
}

// SetAutoOptimize toggles adaptive allocation and persists.
func (s *Store) SetAutoOptimize(ctx context.Context, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.autoOptimize = on
	s.persistLocked(ctx)
}

// -----------------------------------------------------------------------------
// Persistence
// -----------------------------------------------------------------------------

// persistLocked writes the current state through the port. Failures are
// logged and swallowed; the next mutation rewrites the full snapshot, so
// a lost write heals itself. Caller holds the lock.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := s.state.encode()
	if err != nil {
		persistenceFailuresTotal.Inc()
		s.logger.Warn("experiment state encode failed", "error", err)
		return
	}
	if err := s.port.Save(ctx, data); err != nil {
		persistenceFailuresTotal.Inc()
		s.logger.Warn("experiment state write failed", "error", err)
	}
}
