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
	"encoding/json"
	"fmt"
	"sort"
)

// -----------------------------------------------------------------------------
// Experiment State
// -----------------------------------------------------------------------------

// experimentState is the process-wide state of one experiment. It is the
// unit of persistence: every mutating operation rewrites it through the
// PersistencePort.
type experimentState struct {
	// enabled is the set of enabled variant ids. Empty means every
	// catalog variant is enabled.
	enabled map[string]struct{}

	// autoOptimize enables Thompson Sampling and winner declaration.
	autoOptimize bool

	// winner is the declared winner id, or "" when none is declared.
	winner string

	// sessions holds per-variant counters, created lazily with zeroed
	// counters on first touch.
	sessions map[string]*VariantStats
}

func newExperimentState(autoOptimize bool) *experimentState {
	return &experimentState{
		enabled:      make(map[string]struct{}),
		autoOptimize: autoOptimize,
		sessions:     make(map[string]*VariantStats),
	}
}

// statsFor returns the counters for a variant, creating a zeroed entry
// on first access.
func (st *experimentState) statsFor(id string) *VariantStats {
	s, ok := st.sessions[id]
	if !ok {
		s = &VariantStats{}
		st.sessions[id] = s
	}
	return s
}

// pool resolves the enabled pool against the catalog, in catalog order.
// An empty enabled set means the full catalog.
func (st *experimentState) pool(catalog *Catalog) []string {
	all := catalog.IDs()
	if len(st.enabled) == 0 {
		return all
	}
	pool := make([]string, 0, len(st.enabled))
	for _, id := range all {
		if _, ok := st.enabled[id]; ok {
			pool = append(pool, id)
		}
	}
	return pool
}

// sanitize enforces the lifecycle invariants after a load: enabled ids
// must exist in the catalog (unknown ids dropped silently), session
// entries for unknown variants are discarded, and a winner that is no
// longer in the enabled pool is cleared.
func (st *experimentState) sanitize(catalog *Catalog) {
	for id := range st.enabled {
		if !catalog.Contains(id) {
			delete(st.enabled, id)
		}
	}
	for id := range st.sessions {
		if !catalog.Contains(id) {
			delete(st.sessions, id)
		}
	}
	if st.winner != "" && !st.winnerEnabled(catalog) {
		st.winner = ""
	}
}

func (st *experimentState) winnerEnabled(catalog *Catalog) bool {
	if !catalog.Contains(st.winner) {
		return false
	}
	if len(st.enabled) == 0 {
		return true
	}
	_, ok := st.enabled[st.winner]
	return ok
}

// -----------------------------------------------------------------------------
// Persistence Schema
// -----------------------------------------------------------------------------

// persistedState is the durable JSON schema. Field names are part of the
// on-disk contract and must not change.
type persistedState struct {
	Enabled      []string                 `json:"enabled"`
	AutoOptimize bool                     `json:"autoOptimize"`
	Winner       *string                  `json:"winner"`
	Sessions     map[string]*VariantStats `json:"sessions"`
}

// encode serializes the state. Enabled ids are sorted so the output is
// byte-stable for identical states.
func (st *experimentState) encode() ([]byte, error) {
	out := persistedState{
		Enabled:      make([]string, 0, len(st.enabled)),
		AutoOptimize: st.autoOptimize,
		Sessions:     st.sessions,
	}
	for id := range st.enabled {
		out.Enabled = append(out.Enabled, id)
	}
	sort.Strings(out.Enabled)
	if st.winner != "" {
		w := st.winner
		out.Winner = &w
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode experiment state: %w", err)
	}
	return data, nil
}

// decodeExperimentState parses a persisted snapshot. A malformed
// snapshot is an error; callers treat it as absent state.
func decodeExperimentState(data []byte) (*experimentState, error) {
	var in persistedState
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode experiment state: %w", err)
	}

	st := newExperimentState(in.AutoOptimize)
	for _, id := range in.Enabled {
		st.enabled[id] = struct{}{}
	}
	if in.Winner != nil {
		st.winner = *in.Winner
	}
	for id, s := range in.Sessions {
		if s != nil {
			st.sessions[id] = s
		}
	}
	return st, nil
}
