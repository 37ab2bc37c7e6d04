// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry trace stack for uplift.
//
// Metrics are handled separately: the engine registers Prometheus
// collectors with the default registry, and the HTTP layer serves them
// via promhttp. This package only owns span export.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrNilContext indicates Init was called with a nil context.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter indicates an unrecognized exporter name.
	ErrUnknownExporter = errors.New("unknown trace exporter")
)

// Config controls trace export behavior.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string `json:"service_name"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `json:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `json:"environment"`

	// Exporter selects the trace exporter: "stdout" or "none".
	Exporter string `json:"exporter"`

	// Writer receives exported spans for the stdout exporter. Defaults
	// to os.Stderr so spans do not interleave with CLI output.
	Writer io.Writer `json:"-"`
}

// DefaultConfig returns defaults for local development.
//
// Environment variables override where applicable:
//   - UPLIFT_ENV: environment name
//   - OTEL_TRACES_EXPORTER: trace exporter type
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("UPLIFT_ENV", "development"),
		Exporter:       getEnvOr("OTEL_TRACES_EXPORTER", "none"),
	}
}

// Init installs the global TracerProvider.
//
// Description:
//
//	After Init returns, otel.Tracer() produces recording tracers
//	wherever the engine or the HTTP layer starts spans. With Exporter
//	"none" the default no-op provider stays installed, which keeps the
//	span call sites free of conditionals.
//
// Outputs:
//   - shutdown: Flushes and stops the provider. Must be called on exit.
//   - error: Unknown exporter name or exporter construction failure.
//
// Thread Safety: Call once at application startup.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	if cfg.Exporter == "none" || cfg.Exporter == "" {
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// getEnvOr returns the environment variable value or the fallback.
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
