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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/uplift/engine/sampling"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyPool indicates allocation was attempted with no enabled
	// variants. This is a configuration bug upstream and fatal by
	// design: the engine never silently defaults to an arbitrary
	// variant.
	ErrEmptyPool = errors.New("allocation pool is empty")

	// ErrEmptySessionID indicates a blank session id.
	ErrEmptySessionID = errors.New("session id must not be empty")

	// ErrNilPersistence indicates a nil persistence port.
	ErrNilPersistence = errors.New("persistence port must not be nil")

	// ErrNilCatalog indicates a nil catalog.
	ErrNilCatalog = errors.New("catalog must not be nil")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Defaults for the allocation and convergence parameters.
const (
	// DefaultMinSamples is the impression count every pool variant needs
	// before Thompson Sampling replaces uniform exploration.
	DefaultMinSamples = 10

	// DefaultEvalInterval is the number of new impressions between
	// winner evaluations once the experiment is mature.
	DefaultEvalInterval = 20

	// DefaultEvalMinImpressions gates winner evaluation (and winner
	// declaration per variant) on a minimum impression volume.
	DefaultEvalMinImpressions = 100

	// DefaultWinnerThreshold is the win probability that declares a
	// winner.
	DefaultWinnerThreshold = 0.95

	// DefaultTrials is the Monte Carlo trial count per evaluation.
	DefaultTrials = 1000
)

// Config holds the tunable engine parameters. Construct with
// DefaultConfig and adjust via Options.
type Config struct {
	// MinSamples per pool variant before exploitation starts.
	MinSamples uint64

	// EvalInterval is the number of new impressions between winner
	// evaluations. Counted on a monotonic counter rather than the
	// total-impressions modulus the original frontend used, so
	// concurrent increments cannot skip a check entirely.
	EvalInterval uint64

	// EvalMinImpressions gates evaluation on total impressions and
	// winner declaration on per-variant impressions.
	EvalMinImpressions uint64

	// WinnerThreshold is the declaring win probability.
	WinnerThreshold float64

	// Trials is the Monte Carlo trial count.
	Trials int

	// AutoOptimize is the initial adaptive-allocation flag for fresh
	// state. Persisted state overrides it on load.
	AutoOptimize bool

	// Source provides randomness. Defaults to a time-seeded LCG.
	Source sampling.Source

	// Logger for engine events.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		MinSamples:         DefaultMinSamples,
		EvalInterval:       DefaultEvalInterval,
		EvalMinImpressions: DefaultEvalMinImpressions,
		WinnerThreshold:    DefaultWinnerThreshold,
		Trials:             DefaultTrials,
		AutoOptimize:       true,
	}
}

// Option configures the engine.
type Option func(*Config)

// WithMinSamples sets the per-variant exploration floor.
func WithMinSamples(n uint64) Option {
	return func(c *Config) {
		if n > 0 {
			c.MinSamples = n
		}
	}
}

// WithEvalInterval sets the impressions between winner evaluations.
func WithEvalInterval(n uint64) Option {
	return func(c *Config) {
		if n > 0 {
			c.EvalInterval = n
		}
	}
}

// WithEvalMinImpressions sets the evaluation/declaration volume gate.
func WithEvalMinImpressions(n uint64) Option {
	return func(c *Config) {
		c.EvalMinImpressions = n
	}
}

// WithWinnerThreshold sets the declaring win probability.
func WithWinnerThreshold(p float64) Option {
	return func(c *Config) {
		if p > 0 && p <= 1 {
			c.WinnerThreshold = p
		}
	}
}

// WithTrials sets the Monte Carlo trial count.
func WithTrials(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Trials = n
		}
	}
}

// WithAutoOptimize sets the initial adaptive-allocation flag.
func WithAutoOptimize(on bool) Option {
	return func(c *Config) {
		c.AutoOptimize = on
	}
}

// WithSource injects a random source (seeded in tests).
func WithSource(src sampling.Source) Option {
	return func(c *Config) {
		if src != nil {
			c.Source = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// -----------------------------------------------------------------------------
// Engine
// -----------------------------------------------------------------------------

// Engine allocates sessions to variants and manages the experiment
// lifecycle.
//
// Description:
//
//	One Engine instance owns one experiment: a catalog, its durable
//	statistics, and an ephemeral session-assignment cache. Allocation
//	follows three phases: uniform exploration until every pool variant
//	has MinSamples impressions, Thompson Sampling exploitation, and a
//	constant-time winner lookup once the evaluator declares one.
//
// Thread Safety: Safe for concurrent use. A single mutex serializes
// allocation and evaluation so each evaluation sees one consistent
// statistics snapshot.
type Engine struct {
	mu        sync.Mutex
	catalog   *Catalog
	store     *Store
	sampler   *sampling.Sampler
	src       sampling.Source
	evaluator *Evaluator
	config    *Config
	logger    *slog.Logger

	// assignments caches sessionID -> variantID for live sessions.
	// Never persisted; a session keeps its variant for its lifetime.
	assignments map[string]string

	// previews marks sessions pinned via Preview. Their session-end
	// events are dropped so overrides never skew the averages.
	previews map[string]struct{}

	// sinceEval counts impressions since the last winner evaluation.
	sinceEval uint64
}

// New creates an engine for the given catalog and persistence port.
//
// Outputs:
//   - *Engine: The engine. Call Init to load persisted state.
//   - error: ErrNilCatalog or ErrNilPersistence (configuration errors,
//     fatal at initialization).
func New(catalog *Catalog, port PersistencePort, opts ...Option) (*Engine, error) {
	if catalog == nil {
		return nil, ErrNilCatalog
	}
	if port == nil {
		return nil, ErrNilPersistence
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if config.Source == nil {
		config.Source = sampling.NewTimeSeededSource()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	sampler := sampling.NewSampler(config.Source)
	return &Engine{
		catalog:     catalog,
		store:       NewStore(catalog, port, config.Logger, config.AutoOptimize),
		sampler:     sampler,
		src:         config.Source,
		evaluator:   NewEvaluator(sampler, config.Trials, config.WinnerThreshold, config.EvalMinImpressions),
		config:      config,
		logger:      config.Logger,
		assignments: make(map[string]string),
		previews:    make(map[string]struct{}),
	}, nil
}

// Init loads persisted state. Absent or corrupt state falls back to
// defaults; Init never fails for persistence reasons.
func (e *Engine) Init(ctx context.Context) {
	e.store.Load(ctx)

	winner, _ := e.store.Winner()
	e.logger.Info("experiment engine initialized",
		"variants", e.catalog.Len(),
		"pool_size", len(e.store.Pool()),
		"auto_optimize", e.store.IsAutoOptimize(),
		"winner", winner,
		"total_impressions", e.store.TotalImpressions(),
	)
}

// Catalog returns the immutable variant catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Store exposes the statistics store for event forwarding.
func (e *Engine) Store() *Store {
	return e.store
}

// -----------------------------------------------------------------------------
// Allocation
// -----------------------------------------------------------------------------

// Assign returns the variant for a session, allocating one on first call.
//
// Description:
//
//	Repeated calls with the same session id return the cached choice.
//	A fresh session is assigned the declared winner if one is in the
//	pool; otherwise, once every pool variant has MinSamples impressions
//	and auto-optimize is on, one Beta(successes+1, failures+1) draw per
//	variant picks the argmax (first maximal draw in catalog order wins
//	on exact ties). Before that, the pool is sampled uniformly. The
//	chosen variant's impression and session counters are incremented
//	and persisted.
//
// Inputs:
//   - ctx: Context for persistence and tracing.
//   - sessionID: Stable id for the browsing session. Must not be empty.
//
// Outputs:
//   - string: The assigned variant id.
//   - error: ErrEmptySessionID, ErrEmptyPool, or a sampler failure.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) Assign(ctx context.Context, sessionID string) (string, error) {
	ctx, span := engineTracer.Start(ctx, "engine.Assign",
		trace.WithAttributes(attribute.String("session_id", sessionID)),
	)
	defer span.End()

	if sessionID == "" {
		span.SetStatus(codes.Error, "empty session id")
		return "", ErrEmptySessionID
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.assignments[sessionID]; ok {
		span.SetAttributes(attribute.String("variant_id", id), attribute.Bool("cached", true))
		return id, nil
	}

	pool := e.store.Pool()
	if len(pool) == 0 {
		span.SetStatus(codes.Error, "empty pool")
		return "", ErrEmptyPool
	}

	id, mode, err := e.chooseLocked(pool)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	e.assignments[sessionID] = id
	e.store.recordAssignment(ctx, id)
	assignmentsTotal.WithLabelValues(id, mode).Inc()
	e.sinceEval++

	span.SetAttributes(
		attribute.String("variant_id", id),
		attribute.String("mode", mode),
	)

	e.maybeEvaluateLocked(ctx)
	return id, nil
}

// chooseLocked picks a variant from a non-empty pool. Caller holds the
// engine lock.
func (e *Engine) chooseLocked(pool []string) (string, string, error) {
	if winner, ok := e.store.Winner(); ok {
		for _, id := range pool {
			if id == winner {
				return winner, modeWinner, nil
			}
		}
	}

	if len(pool) == 1 {
		return pool[0], modeSingleton, nil
	}

	if e.store.IsAutoOptimize() && e.poolMature(pool) {
		id, err := e.thompson(pool)
		if err != nil {
			return "", "", err
		}
		return id, modeExploit, nil
	}

	return pool[sampling.Intn(e.src, len(pool))], modeExplore, nil
}

// poolMature reports whether every pool variant has reached MinSamples
// impressions.
func (e *Engine) poolMature(pool []string) bool {
	for _, id := range pool {
		if e.store.Get(id).Impressions < e.config.MinSamples {
			return false
		}
	}
	return true
}

// thompson draws one Beta posterior sample per pool variant and returns
// the id of the first maximal draw.
func (e *Engine) thompson(pool []string) (string, error) {
	best := ""
	bestDraw := -1.0
	for _, id := range pool {
		st := e.store.Get(id)
		draw, err := e.sampler.Beta(float64(st.Successes()+1), float64(st.Failures()+1))
		if err != nil {
			return "", err
		}
		if draw > bestDraw {
			best = id
			bestDraw = draw
		}
	}
	return best, nil
}

// GetCurrent returns the cached assignment for a session, if any. It
// never allocates.
func (e *Engine) GetCurrent(sessionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.assignments[sessionID]
	return id, ok
}

// Preview forces a session's assignment to the given variant without
// touching statistics. Used for administrative inspection.
//
// Outputs:
//   - error: ErrUnknownVariant or ErrEmptySessionID.
func (e *Engine) Preview(sessionID, variantID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if !e.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.assignments[sessionID] = variantID
	e.previews[sessionID] = struct{}{}
	return nil
}

// EndSession records a session's final engagement outcome and releases
// its cached assignment.
//
// Description:
//
//	Convenience wrapper over Store.RecordSessionEnd for hosts that key
//	events by session rather than by variant. A session the engine
//	never assigned is a no-op, as is one pinned via Preview: overrides
//	have no matching session count, so folding their scroll and
//	duration into the totals would skew the averages.
func (e *Engine) EndSession(ctx context.Context, sessionID string, scrollDepthPct, durationSec uint64) {
	e.mu.Lock()
	id, ok := e.assignments[sessionID]
	_, previewed := e.previews[sessionID]
	delete(e.assignments, sessionID)
	delete(e.previews, sessionID)
	e.mu.Unlock()

	if !ok || previewed {
		return
	}
	e.store.RecordSessionEnd(ctx, id, scrollDepthPct, durationSec)
}

// -----------------------------------------------------------------------------
// Engagement Events
// -----------------------------------------------------------------------------

// EventRecorder is the narrow surface a host wires its UI events into.
// The host owns event detection (what counts as a click, when a session
// ends); the engine only aggregates.
type EventRecorder interface {
	RecordClick(ctx context.Context, variantID string) error
	RecordDetailOpen(ctx context.Context, variantID string) error
	RecordSessionEnd(ctx context.Context, variantID string, scrollDepthPct, durationSec uint64) error
}

var _ EventRecorder = (*Engine)(nil)

// RecordClick forwards a primary-action click.
func (e *Engine) RecordClick(ctx context.Context, variantID string) error {
	if !e.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}
	e.store.RecordClick(ctx, variantID)
	return nil
}

// RecordDetailOpen forwards a detail-view open.
func (e *Engine) RecordDetailOpen(ctx context.Context, variantID string) error {
	if !e.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}
	e.store.RecordDetailOpen(ctx, variantID)
	return nil
}

// RecordSessionEnd forwards a session-end outcome keyed by variant.
func (e *Engine) RecordSessionEnd(ctx context.Context, variantID string, scrollDepthPct, durationSec uint64) error {
	if !e.catalog.Contains(variantID) {
		return ErrUnknownVariant
	}
	e.store.RecordSessionEnd(ctx, variantID, scrollDepthPct, durationSec)
	return nil
}

// -----------------------------------------------------------------------------
// Administration
// -----------------------------------------------------------------------------

// GetStats returns a snapshot of every catalog variant's counters.
func (e *Engine) GetStats() map[string]VariantStats {
	return e.store.GetAll()
}

// SetEnabled replaces the enabled pool (unknown ids dropped silently).
func (e *Engine) SetEnabled(ctx context.Context, ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.SetEnabled(ctx, ids)
}

// EnableVariant adds a variant to the enabled pool.
func (e *Engine) EnableVariant(ctx context.Context, variantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Enable(ctx, variantID)
}

// DisableVariant removes a variant from the enabled pool.
func (e *Engine) DisableVariant(ctx context.Context, variantID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Disable(ctx, variantID)
}

// ResetStats zeroes all counters and clears the winner. Session
// assignments already handed out are kept: live sessions keep their
// variant for their lifetime.
func (e *Engine) ResetStats(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Reset(ctx)
	e.sinceEval = 0
}

// IsAutoOptimize reports the adaptive-allocation flag.
func (e *Engine) IsAutoOptimize() bool {
	return e.store.IsAutoOptimize()
}

// SetAutoOptimize toggles adaptive allocation.
func (e *Engine) SetAutoOptimize(ctx context.Context, on bool) {
	e.store.SetAutoOptimize(ctx, on)
}

// GetWinner returns the declared winner, if any.
func (e *Engine) GetWinner() (string, bool) {
	return e.store.Winner()
}

// ClearWinner removes the declared winner, re-opening the experiment.
func (e *Engine) ClearWinner(ctx context.Context) {
	e.store.ClearWinner(ctx)
}

// GetWinProbabilities runs a dedicated Monte Carlo estimation over the
// current pool.
func (e *Engine) GetWinProbabilities() (map[string]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.evaluator.WinProbabilities(e.store.Pool(), e.store.GetAll())
}

// -----------------------------------------------------------------------------
// Winner Evaluation
// -----------------------------------------------------------------------------

// maybeEvaluateLocked runs a winner evaluation when the experiment is
// due for one. Caller holds the engine lock, so the evaluation observes
// a single consistent statistics snapshot.
//
// The trigger is a monotonic new-impressions counter instead of the
// original total%20 check, which could skip evaluations entirely when
// concurrent writers raced past a multiple of 20.
func (e *Engine) maybeEvaluateLocked(ctx context.Context) {
	if e.sinceEval < e.config.EvalInterval {
		return
	}
	if !e.store.IsAutoOptimize() {
		return
	}
	if _, declared := e.store.Winner(); declared {
		return
	}
	if e.store.TotalImpressions() < e.config.EvalMinImpressions {
		return
	}

	e.sinceEval = 0
	e.checkForWinnerLocked(ctx)
}

// checkForWinnerLocked evaluates win probabilities and declares a winner
// when one clears the threshold. Declaration is monotonic: subsequent
// unlucky outcomes never undo it; only a pool change or reset clears it.
func (e *Engine) checkForWinnerLocked(ctx context.Context) {
	_, span := engineTracer.Start(ctx, "engine.checkForWinner")
	defer span.End()

	start := time.Now()
	winnerEvaluationsTotal.Inc()

	pool := e.store.Pool()
	stats := e.store.GetAll()

	id, found, err := e.evaluator.Winner(pool, stats)
	winnerEvaluationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("winner evaluation failed", "error", err)
		return
	}
	if !found {
		return
	}

	e.store.SetWinner(ctx, id)
	span.SetAttributes(attribute.String("winner", id))
	e.logger.Info("experiment winner declared",
		"variant_id", id,
		"impressions", stats[id].Impressions,
	)
}
