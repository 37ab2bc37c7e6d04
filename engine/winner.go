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
	"github.com/AleutianAI/uplift/engine/sampling"
)

// -----------------------------------------------------------------------------
// Winner Evaluator
// -----------------------------------------------------------------------------

// Evaluator estimates win probabilities by Monte Carlo simulation and
// decides when a variant has won the experiment.
//
// Description:
//
//	Each trial draws one Beta(successes+1, failures+1) sample per pool
//	variant and credits the variant with the maximal draw; a variant's
//	win probability is its win count divided by the trial count. This
//	is a dedicated estimation pass with its own draws, deliberately
//	separate from the single draws used for live allocation, so the
//	evaluation does not disturb allocation randomness.
//
// Thread Safety: NOT safe for concurrent use (shares the engine's
// sampler). The engine serializes evaluations and passes a consistent
// statistics snapshot for the whole run.
type Evaluator struct {
	sampler        *sampling.Sampler
	trials         int
	threshold      float64
	minImpressions uint64
}

// NewEvaluator creates an evaluator.
//
// Inputs:
//   - sampler: Beta sampler. Must not be nil.
//   - trials: Monte Carlo trials per evaluation (DefaultTrials).
//   - threshold: Win probability required to declare a winner (0.95).
//   - minImpressions: Impressions a variant needs before it can win (100).
func NewEvaluator(sampler *sampling.Sampler, trials int, threshold float64, minImpressions uint64) *Evaluator {
	return &Evaluator{
		sampler:        sampler,
		trials:         trials,
		threshold:      threshold,
		minImpressions: minImpressions,
	}
}

// WinProbabilities estimates each pool variant's probability of having
// the truly highest success rate, given the observed counters.
//
// Inputs:
//   - pool: Enabled variant ids in catalog order. Tie-break within a
//     trial is first-encountered-wins, in this order.
//   - stats: Consistent counter snapshot, keyed by variant id.
//
// Outputs:
//   - map[string]float64: Win probability per pool variant. Sums to 1
//     within floating tolerance. Empty map for an empty pool.
//   - error: Sampler failure (indicates a defective random source).
func (e *Evaluator) WinProbabilities(pool []string, stats map[string]VariantStats) (map[string]float64, error) {
	probs := make(map[string]float64, len(pool))
	if len(pool) == 0 {
		return probs, nil
	}

	wins := make(map[string]int, len(pool))
	for trial := 0; trial < e.trials; trial++ {
		best := ""
		bestDraw := -1.0
		for _, id := range pool {
			st := stats[id]
			draw, err := e.sampler.Beta(float64(st.Successes()+1), float64(st.Failures()+1))
			if err != nil {
				return nil, err
			}
			// First maximal draw wins; exact float ties keep the
			// earlier variant.
			if draw > bestDraw {
				best = id
				bestDraw = draw
			}
		}
		wins[best]++
	}

	for _, id := range pool {
		probs[id] = float64(wins[id]) / float64(e.trials)
	}
	return probs, nil
}

// Winner runs one evaluation and reports a declarable winner, if any.
//
// Description:
//
//	A pool of fewer than two variants cannot have a winner in the
//	competitive sense. A variant is declarable when its win probability
//	meets the threshold and it has accumulated enough impressions for
//	the estimate to mean something.
//
// Outputs:
//   - string: The winning variant id ("" when none).
//   - bool: Whether a winner was found.
//   - error: Sampler failure.
func (e *Evaluator) Winner(pool []string, stats map[string]VariantStats) (string, bool, error) {
	if len(pool) < 2 {
		return "", false, nil
	}

	probs, err := e.WinProbabilities(pool, stats)
	if err != nil {
		return "", false, err
	}

	for _, id := range pool {
		if probs[id] >= e.threshold && stats[id].Impressions >= e.minImpressions {
			return id, true, nil
		}
	}
	return "", false, nil
}
