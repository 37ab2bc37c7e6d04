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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

var (
	assignmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplift_assignments_total",
		Help: "Total session assignments by variant and allocation mode",
	}, []string{"variant", "mode"})

	engagementEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplift_engagement_events_total",
		Help: "Total engagement events by type",
	}, []string{"type"})

	persistenceFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_persistence_failures_total",
		Help: "Total swallowed experiment state write failures",
	})

	winnerEvaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplift_winner_evaluations_total",
		Help: "Total Monte Carlo winner evaluations",
	})

	winnerEvaluationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uplift_winner_evaluation_seconds",
		Help:    "Duration of Monte Carlo winner evaluations",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)

// -----------------------------------------------------------------------------
// Tracer
// -----------------------------------------------------------------------------

var engineTracer = otel.Tracer("uplift.engine")

// Allocation modes recorded on spans and metrics.
const (
	modeWinner    = "winner"
	modeSingleton = "singleton"
	modeExploit   = "exploit"
	modeExplore   = "explore"
)
