// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements a device-local multi-armed-bandit allocator
// for UI design variants.
//
// Each new browsing session is assigned to one variant from a fixed
// catalog. Engagement outcomes (clicks, detail opens, scroll depth,
// session duration) accumulate in per-variant counters, and Thompson
// Sampling progressively shifts traffic toward better-performing
// variants. Once a variant's Monte Carlo win probability crosses the
// confidence threshold, it is declared the winner and allocation becomes
// a constant-time lookup.
//
// The engine holds no ambient globals: an Engine instance owns its
// ExperimentState, receives randomness through sampling.Source and
// durability through PersistencePort, and multiple isolated engines can
// coexist in one process. The host application forwards discrete
// engagement events; the engine never touches the UI layer.
//
// Statistics are best-effort by design. Persistence failures are logged
// and swallowed, and lost updates under concurrent writers on the same
// device are accepted: the data shapes approximate traffic allocation,
// not financial or safety-critical outcomes.
package engine
