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
	"fmt"
	"math"
	"strconv"
)

// -----------------------------------------------------------------------------
// Export Report
// -----------------------------------------------------------------------------

// ReportRow is one variant's line in the tabular export. Field order is
// part of the export contract and mirrors Fields().
type ReportRow struct {
	// ID is the variant id.
	ID string `json:"id"`

	// Enabled reports pool membership.
	Enabled bool `json:"enabled"`

	// Impressions, Clicks and DetailOpens are the raw counters.
	Impressions uint64 `json:"impressions"`
	Clicks      uint64 `json:"clicks"`
	DetailOpens uint64 `json:"detailOpens"`

	// CTR is the click-through rate formatted with two decimal places,
	// "0.00%" when the variant has no impressions.
	CTR string `json:"ctr"`

	// AvgScrollDepthPct is the rounded mean scroll depth percentage.
	AvgScrollDepthPct int64 `json:"avgScrollDepthPct"`

	// AvgDurationSec is the rounded mean session duration in seconds.
	AvgDurationSec int64 `json:"avgDurationSec"`

	// WinProbability is formatted with one decimal place. Variants
	// outside the current pool report "0.0%".
	WinProbability string `json:"winProbability"`

	// Score is the composite engagement score (monitoring only).
	Score float64 `json:"score"`

	// Winner reports whether this variant is the declared winner.
	Winner bool `json:"winner"`
}

// ReportHeaders returns the column names in export order.
func ReportHeaders() []string {
	return []string{
		"id", "enabled", "impressions", "clicks", "detail_opens",
		"ctr", "avg_scroll_pct", "avg_duration_sec", "win_probability",
		"score", "winner",
	}
}

// Fields renders the row as strings in export order.
func (r ReportRow) Fields() []string {
	return []string{
		r.ID,
		strconv.FormatBool(r.Enabled),
		strconv.FormatUint(r.Impressions, 10),
		strconv.FormatUint(r.Clicks, 10),
		strconv.FormatUint(r.DetailOpens, 10),
		r.CTR,
		strconv.FormatInt(r.AvgScrollDepthPct, 10),
		strconv.FormatInt(r.AvgDurationSec, 10),
		r.WinProbability,
		fmt.Sprintf("%.3f", r.Score),
		strconv.FormatBool(r.Winner),
	}
}

// ExportTable serializes current statistics and win probabilities into
// one row per catalog variant (not just pool members), in catalog order.
//
// Outputs:
//   - []ReportRow: Exactly one row per catalog variant.
//   - error: Sampler failure during the win probability estimation.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) ExportTable() ([]ReportRow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool := e.store.Pool()
	stats := e.store.GetAll()
	winner, _ := e.store.Winner()

	probs, err := e.evaluator.WinProbabilities(pool, stats)
	if err != nil {
		return nil, err
	}

	inPool := make(map[string]bool, len(pool))
	for _, id := range pool {
		inPool[id] = true
	}

	rows := make([]ReportRow, 0, e.catalog.Len())
	for _, id := range e.catalog.IDs() {
		st := stats[id]
		rows = append(rows, ReportRow{
			ID:                id,
			Enabled:           inPool[id],
			Impressions:       st.Impressions,
			Clicks:            st.Clicks,
			DetailOpens:       st.DetailOpens,
			CTR:               formatCTR(st),
			AvgScrollDepthPct: roundedAverage(st.TotalScrollDepth, st.SessionCount),
			AvgDurationSec:    roundedAverage(st.TotalDuration, st.SessionCount),
			WinProbability:    fmt.Sprintf("%.1f%%", probs[id]*100),
			Score:             EngagementScore(st),
			Winner:            id == winner,
		})
	}
	return rows, nil
}

func formatCTR(st VariantStats) string {
	if st.Impressions == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(st.Clicks)/float64(st.Impressions)*100)
}

func roundedAverage(total, count uint64) int64 {
	if count == 0 {
		return 0
	}
	return int64(math.Round(float64(total) / float64(count)))
}
