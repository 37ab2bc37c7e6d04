// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"encoding/json"

	"github.com/AleutianAI/uplift/engine"
)

// ServiceVersion is the experiment API version.
const ServiceVersion = "0.1.0"

// AssignRequest asks for (or re-reads) a session's variant.
type AssignRequest struct {
	// SessionID is the caller-provided stable session identifier.
	SessionID string `json:"session_id" binding:"required,notblank"`
}

// AssignResponse carries the assigned variant.
type AssignResponse struct {
	SessionID string          `json:"session_id"`
	VariantID string          `json:"variant_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventRequest reports a click or detail-open for a variant.
type EventRequest struct {
	VariantID string `json:"variant_id" binding:"required,notblank"`
}

// SessionEndRequest reports a finished session's engagement outcome.
//
// Exactly one of SessionID and VariantID must be set: session-keyed
// reports resolve through the engine's assignment cache, variant-keyed
// reports record directly.
type SessionEndRequest struct {
	SessionID      string `json:"session_id"`
	VariantID      string `json:"variant_id"`
	ScrollDepthPct uint64 `json:"scroll_depth_pct" binding:"lte=100"`
	DurationSec    uint64 `json:"duration_sec"`
}

// PreviewRequest pins a session to a variant for inspection.
type PreviewRequest struct {
	SessionID string `json:"session_id" binding:"required,notblank"`
	VariantID string `json:"variant_id" binding:"required,notblank"`
}

// EnabledRequest replaces the enabled variant pool.
type EnabledRequest struct {
	// IDs is the new enabled set. Empty enables every variant.
	IDs []string `json:"ids"`
}

// AutoOptimizeRequest toggles adaptive allocation.
type AutoOptimizeRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// StatsResponse is the per-variant counter snapshot.
type StatsResponse struct {
	Stats map[string]engine.VariantStats `json:"stats"`
}

// WinnerResponse reports the declared winner, if any.
type WinnerResponse struct {
	Winner   string `json:"winner,omitempty"`
	Declared bool   `json:"declared"`
}

// WinProbabilitiesResponse carries the Monte Carlo estimates.
type WinProbabilitiesResponse struct {
	Probabilities map[string]float64 `json:"probabilities"`
}

// ExportResponse is the tabular experiment report.
type ExportResponse struct {
	Headers []string           `json:"headers"`
	Rows    []engine.ReportRow `json:"rows"`
}

// StatusResponse reports the experiment configuration state.
type StatusResponse struct {
	Version      string   `json:"version"`
	Variants     int      `json:"variants"`
	Pool         []string `json:"pool"`
	AutoOptimize bool     `json:"auto_optimize"`
	Winner       string   `json:"winner,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`
}
