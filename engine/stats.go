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

// -----------------------------------------------------------------------------
// Variant Statistics
// -----------------------------------------------------------------------------

// VariantStats holds the durable per-variant counters.
//
// Counters are monotonically non-decreasing except on explicit reset.
// clicks <= impressions is deliberately NOT enforced: a session can
// click the primary action more than once.
type VariantStats struct {
	// Impressions counts sessions assigned to this variant.
	Impressions uint64 `json:"impressions"`

	// Clicks counts primary-action clicks.
	Clicks uint64 `json:"clicks"`

	// DetailOpens counts detail-view opens.
	DetailOpens uint64 `json:"detailOpens"`

	// TotalScrollDepth sums per-session scroll depth percentages (0-100).
	TotalScrollDepth uint64 `json:"totalScrollDepth"`

	// TotalDuration sums per-session durations in seconds.
	TotalDuration uint64 `json:"totalDuration"`

	// SessionCount counts sessions, incremented at assignment time.
	SessionCount uint64 `json:"sessionCount"`
}

// Successes returns the Bernoulli success count used by the bandit:
// clicks plus detail opens, capped at impressions so the implied failure
// count never goes negative.
func (s VariantStats) Successes() uint64 {
	succ := s.Clicks + s.DetailOpens
	if succ > s.Impressions {
		return s.Impressions
	}
	return succ
}

// Failures returns impressions minus Successes.
func (s VariantStats) Failures() uint64 {
	return s.Impressions - s.Successes()
}

// -----------------------------------------------------------------------------
// Engagement Score
// -----------------------------------------------------------------------------

// Composite score weights. The score is a monitoring/export metric only;
// allocation relies purely on clicks+detailOpens as Bernoulli successes.
const (
	weightCTR        = 0.4
	weightDetailRate = 0.3
	weightScroll     = 0.15
	weightDuration   = 0.15

	// durationCapSeconds caps average session duration so one idle tab
	// cannot dominate the composite.
	durationCapSeconds = 300.0
)

// EngagementScore converts raw counters into a composite score in [0, 1].
//
// Description:
//
//	score = 0.4*ctr + 0.3*detailRate + 0.15*avgScroll + 0.15*avgDuration,
//	where avgScroll is the mean scroll depth normalized to [0,1] and
//	avgDuration is the mean session duration capped at 300 seconds and
//	normalized to [0,1]. Returns 0 when the variant has no impressions.
//
// Inputs:
//   - s: The variant's counters.
//
// Outputs:
//   - float64: Composite engagement score.
func EngagementScore(s VariantStats) float64 {
	if s.Impressions == 0 {
		return 0
	}

	ctr := float64(s.Clicks) / float64(s.Impressions)
	detailRate := float64(s.DetailOpens) / float64(s.Impressions)

	var avgScroll, avgDuration float64
	if s.SessionCount > 0 {
		avgScroll = float64(s.TotalScrollDepth) / float64(s.SessionCount) / 100.0
		avgDuration = float64(s.TotalDuration) / float64(s.SessionCount)
		if avgDuration > durationCapSeconds {
			avgDuration = durationCapSeconds
		}
		avgDuration /= durationCapSeconds
	}

	return weightCTR*ctr + weightDetailRate*detailRate +
		weightScroll*avgScroll + weightDuration*avgDuration
}
