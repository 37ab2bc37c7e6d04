// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the experiment engine over HTTP for hosts that
// embed the allocator out of process (a local UI shell, a test harness,
// or the simulator).
package api

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/uplift/engine"
)

var registerValidationsOnce sync.Once

// registerValidations installs custom binding validators.
func registerValidations() {
	registerValidationsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			// notblank rejects whitespace-only strings that pass "required".
			_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
				return strings.TrimSpace(fl.Field().String()) != ""
			})
		}
	})
}

// NewRouter builds the HTTP router for the experiment service.
//
// Description:
//
//	Wires the full surface: assignment, engagement events, statistics,
//	pool administration, and the Prometheus scrape endpoint. Tracing
//	spans are attached per request via otelgin and join the engine's
//	own spans through context propagation.
//
// Inputs:
//   - eng: The experiment engine. Must not be nil.
//   - logger: Request logging. Nil falls back to slog.Default().
//
// Outputs:
//   - *gin.Engine: The configured router, ready for Run or httptest.
func NewRouter(eng *engine.Engine, logger *slog.Logger) *gin.Engine {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("uplift-experiment"))

	handlers := NewHandlers(eng, logger)
	RegisterRoutes(router.Group("/v1"), handlers)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// RegisterRoutes registers all experiment routes with the router group.
//
// Endpoints:
//
//	POST   /v1/experiment/assign - Assign (or re-read) a session's variant
//	GET    /v1/experiment/assignment/:session_id - Read a cached assignment
//	POST   /v1/experiment/preview - Pin a session to a variant
//
//	POST   /v1/experiment/events/click - Record a primary-action click
//	POST   /v1/experiment/events/detail-open - Record a detail-view open
//	POST   /v1/experiment/events/session-end - Record session engagement
//
//	GET    /v1/experiment/stats - Raw counter snapshot
//	GET    /v1/experiment/export - Tabular report with win probabilities
//	GET    /v1/experiment/win-probabilities - Monte Carlo estimates
//	GET    /v1/experiment/status - Configuration overview
//	GET    /v1/experiment/health - Health check
//
//	GET    /v1/experiment/winner - Declared winner, if any
//	DELETE /v1/experiment/winner - Clear the winner
//	PUT    /v1/experiment/enabled - Replace the enabled pool
//	POST   /v1/experiment/variants/:id/enable - Enable one variant
//	POST   /v1/experiment/variants/:id/disable - Disable one variant
//	GET    /v1/experiment/auto-optimize - Adaptive allocation flag
//	PUT    /v1/experiment/auto-optimize - Toggle adaptive allocation
//	POST   /v1/experiment/reset - Zero all counters and clear the winner
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	experiment := rg.Group("/experiment")
	{
		// Allocation
		experiment.POST("/assign", handlers.HandleAssign)
		experiment.GET("/assignment/:session_id", handlers.HandleGetAssignment)
		experiment.POST("/preview", handlers.HandlePreview)

		// Engagement events
		events := experiment.Group("/events")
		{
			events.POST("/click", handlers.HandleClick)
			events.POST("/detail-open", handlers.HandleDetailOpen)
			events.POST("/session-end", handlers.HandleSessionEnd)
		}

		// Reporting
		experiment.GET("/stats", handlers.HandleStats)
		experiment.GET("/export", handlers.HandleExport)
		experiment.GET("/win-probabilities", handlers.HandleWinProbabilities)
		experiment.GET("/status", handlers.HandleStatus)
		experiment.GET("/health", handlers.HandleHealth)

		// Administration
		experiment.GET("/winner", handlers.HandleGetWinner)
		experiment.DELETE("/winner", handlers.HandleClearWinner)
		experiment.PUT("/enabled", handlers.HandleSetEnabled)
		experiment.POST("/variants/:id/enable", handlers.HandleEnableVariant)
		experiment.POST("/variants/:id/disable", handlers.HandleDisableVariant)
		experiment.GET("/auto-optimize", handlers.HandleGetAutoOptimize)
		experiment.PUT("/auto-optimize", handlers.HandleSetAutoOptimize)
		experiment.POST("/reset", handlers.HandleReset)
	}
}
