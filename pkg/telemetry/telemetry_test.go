// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	_, err := Init(nil, DefaultConfig("test"))
	if err == nil {
		t.Fatal("expected error for nil context")
	}
}

func TestInit_NoneExporter(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.Exporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.Exporter = "carrier-pigeon"

	_, err := Init(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestInit_StdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig("test-service")
	cfg.Exporter = "stdout"
	cfg.Writer = &buf

	ctx := context.Background()
	shutdown, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	_, span := otel.Tracer("test").Start(ctx, "test.span")
	span.End()

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}

	if !strings.Contains(buf.String(), "test.span") {
		t.Error("exported spans should include the span name")
	}
}
