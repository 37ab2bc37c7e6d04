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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/uplift/engine"
)

// Handlers contains the HTTP handlers for the experiment API.
type Handlers struct {
	eng    *engine.Engine
	logger *slog.Logger
}

// NewHandlers creates handlers for the given engine.
func NewHandlers(eng *engine.Engine, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{eng: eng, logger: logger}
}

// HandleAssign handles POST /v1/experiment/assign.
//
// Description:
//
//	Returns the session's variant, allocating one on first call.
//	Repeated calls with the same session id are idempotent.
//
// Response:
//
//	200 OK: AssignResponse
//	400 Bad Request: Validation error
//	500 Internal Server Error: Empty pool or sampler failure
func (h *Handlers) HandleAssign(c *gin.Context) {
	logger := h.requestLogger(c, "HandleAssign")

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	variantID, err := h.eng.Assign(c.Request.Context(), req.SessionID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "ASSIGN_FAILED"
		if errors.Is(err, engine.ErrEmptySessionID) {
			status = http.StatusBadRequest
			code = "INVALID_SESSION"
		}
		logger.Error("Assignment failed", "error", err)
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}

	resp := AssignResponse{SessionID: req.SessionID, VariantID: variantID}
	if v, ok := h.eng.Catalog().Get(variantID); ok {
		resp.Payload = v.Payload
	}
	c.JSON(http.StatusOK, resp)
}

// HandleGetAssignment handles GET /v1/experiment/assignment/:session_id.
//
// Response:
//
//	200 OK: AssignResponse
//	404 Not Found: Session has no assignment
func (h *Handlers) HandleGetAssignment(c *gin.Context) {
	sessionID := c.Param("session_id")

	variantID, ok := h.eng.GetCurrent(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "No assignment for session",
			Code:  "NO_ASSIGNMENT",
		})
		return
	}

	resp := AssignResponse{SessionID: sessionID, VariantID: variantID}
	if v, ok := h.eng.Catalog().Get(variantID); ok {
		resp.Payload = v.Payload
	}
	c.JSON(http.StatusOK, resp)
}

// HandleClick handles POST /v1/experiment/events/click.
func (h *Handlers) HandleClick(c *gin.Context) {
	h.handleVariantEvent(c, "HandleClick", h.eng.RecordClick)
}

// HandleDetailOpen handles POST /v1/experiment/events/detail-open.
func (h *Handlers) HandleDetailOpen(c *gin.Context) {
	h.handleVariantEvent(c, "HandleDetailOpen", h.eng.RecordDetailOpen)
}

// handleVariantEvent binds an EventRequest and forwards it to the given
// engine recorder. Click and detail-open only differ in the recorder.
func (h *Handlers) handleVariantEvent(c *gin.Context, name string, record func(ctx context.Context, variantID string) error) {
	logger := h.requestLogger(c, name)

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := record(c.Request.Context(), req.VariantID); err != nil {
		if errors.Is(err, engine.ErrUnknownVariant) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Unknown variant",
				Code:  "UNKNOWN_VARIANT",
			})
			return
		}
		logger.Error("Event recording failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EVENT_FAILED"})
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleSessionEnd handles POST /v1/experiment/events/session-end.
//
// Description:
//
//	Accepts either a session-keyed report (resolved through the
//	assignment cache, then released) or a variant-keyed report.
//
// Response:
//
//	204 No Content: Recorded (or no-op for an unknown session)
//	400 Bad Request: Validation error
//	404 Not Found: Unknown variant id
func (h *Handlers) HandleSessionEnd(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSessionEnd")

	var req SessionEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	switch {
	case req.SessionID != "":
		h.eng.EndSession(c.Request.Context(), req.SessionID, req.ScrollDepthPct, req.DurationSec)
	case req.VariantID != "":
		if err := h.eng.RecordSessionEnd(c.Request.Context(), req.VariantID, req.ScrollDepthPct, req.DurationSec); err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Unknown variant",
				Code:  "UNKNOWN_VARIANT",
			})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "session_id or variant_id is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	c.Status(http.StatusNoContent)
}

// HandlePreview handles POST /v1/experiment/preview.
//
// Pins a session to a specific variant without touching statistics.
func (h *Handlers) HandlePreview(c *gin.Context) {
	logger := h.requestLogger(c, "HandlePreview")

	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.eng.Preview(req.SessionID, req.VariantID); err != nil {
		if errors.Is(err, engine.ErrUnknownVariant) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Unknown variant",
				Code:  "UNKNOWN_VARIANT",
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_REQUEST"})
		return
	}

	logger.Info("Preview pinned", "session_id", req.SessionID, "variant_id", req.VariantID)
	c.Status(http.StatusNoContent)
}

// HandleStats handles GET /v1/experiment/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{Stats: h.eng.GetStats()})
}

// HandleExport handles GET /v1/experiment/export.
func (h *Handlers) HandleExport(c *gin.Context) {
	logger := h.requestLogger(c, "HandleExport")

	rows, err := h.eng.ExportTable()
	if err != nil {
		logger.Error("Export failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "EXPORT_FAILED"})
		return
	}

	c.JSON(http.StatusOK, ExportResponse{Headers: engine.ReportHeaders(), Rows: rows})
}

// HandleWinProbabilities handles GET /v1/experiment/win-probabilities.
func (h *Handlers) HandleWinProbabilities(c *gin.Context) {
	logger := h.requestLogger(c, "HandleWinProbabilities")

	probs, err := h.eng.GetWinProbabilities()
	if err != nil {
		logger.Error("Estimation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "ESTIMATION_FAILED"})
		return
	}

	c.JSON(http.StatusOK, WinProbabilitiesResponse{Probabilities: probs})
}

// HandleGetWinner handles GET /v1/experiment/winner.
func (h *Handlers) HandleGetWinner(c *gin.Context) {
	winner, declared := h.eng.GetWinner()
	c.JSON(http.StatusOK, WinnerResponse{Winner: winner, Declared: declared})
}

// HandleClearWinner handles DELETE /v1/experiment/winner.
func (h *Handlers) HandleClearWinner(c *gin.Context) {
	logger := h.requestLogger(c, "HandleClearWinner")

	h.eng.ClearWinner(c.Request.Context())
	logger.Info("Winner cleared")
	c.Status(http.StatusNoContent)
}

// HandleSetEnabled handles PUT /v1/experiment/enabled.
//
// Replaces the enabled pool wholesale. Unknown ids are dropped silently,
// matching the persistence load rule.
func (h *Handlers) HandleSetEnabled(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSetEnabled")

	var req EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.eng.SetEnabled(c.Request.Context(), req.IDs)
	logger.Info("Enabled pool replaced", "requested", len(req.IDs))
	c.Status(http.StatusNoContent)
}

// HandleEnableVariant handles POST /v1/experiment/variants/:id/enable.
func (h *Handlers) HandleEnableVariant(c *gin.Context) {
	h.handlePoolChange(c, "HandleEnableVariant", h.eng.EnableVariant)
}

// HandleDisableVariant handles POST /v1/experiment/variants/:id/disable.
func (h *Handlers) HandleDisableVariant(c *gin.Context) {
	h.handlePoolChange(c, "HandleDisableVariant", h.eng.DisableVariant)
}

func (h *Handlers) handlePoolChange(c *gin.Context, name string, change func(ctx context.Context, variantID string) error) {
	logger := h.requestLogger(c, name)
	variantID := c.Param("id")

	if err := change(c.Request.Context(), variantID); err != nil {
		if errors.Is(err, engine.ErrUnknownVariant) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: "Unknown variant",
				Code:  "UNKNOWN_VARIANT",
			})
			return
		}
		logger.Error("Pool change failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "POOL_CHANGE_FAILED"})
		return
	}

	logger.Info("Pool changed", "variant_id", variantID)
	c.Status(http.StatusNoContent)
}

// HandleGetAutoOptimize handles GET /v1/experiment/auto-optimize.
func (h *Handlers) HandleGetAutoOptimize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.eng.IsAutoOptimize()})
}

// HandleSetAutoOptimize handles PUT /v1/experiment/auto-optimize.
func (h *Handlers) HandleSetAutoOptimize(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSetAutoOptimize")

	var req AutoOptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.eng.SetAutoOptimize(c.Request.Context(), *req.Enabled)
	logger.Info("Auto-optimize updated", "enabled", *req.Enabled)
	c.Status(http.StatusNoContent)
}

// HandleReset handles POST /v1/experiment/reset.
//
// Zeroes every counter and clears the winner. There is no undo.
func (h *Handlers) HandleReset(c *gin.Context) {
	logger := h.requestLogger(c, "HandleReset")

	h.eng.ResetStats(c.Request.Context())
	logger.Info("Experiment statistics reset")
	c.Status(http.StatusNoContent)
}

// HandleStatus handles GET /v1/experiment/status.
func (h *Handlers) HandleStatus(c *gin.Context) {
	winner, _ := h.eng.GetWinner()
	c.JSON(http.StatusOK, StatusResponse{
		Version:      ServiceVersion,
		Variants:     h.eng.Catalog().Len(),
		Pool:         h.eng.Store().Pool(),
		AutoOptimize: h.eng.IsAutoOptimize(),
		Winner:       winner,
	})
}

// HandleHealth handles GET /v1/experiment/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ServiceVersion})
}

// requestLogger returns a logger scoped to this request, propagating or
// minting the X-Request-ID header.
func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return h.logger.With("request_id", requestID, "handler", handler)
}
