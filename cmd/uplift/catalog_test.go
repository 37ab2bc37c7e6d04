// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AleutianAI/uplift/engine"
)

// =============================================================================
// CATALOG LOADING TESTS
// =============================================================================

func writeCatalogFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "variants.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	path := writeCatalogFile(t, `{
		"variants": [
			{"id": "cards", "payload": {"layout": "cards"}},
			{"id": "list"}
		]
	}`)

	catalog, err := loadCatalog(path)
	if err != nil {
		t.Fatalf("loadCatalog: %v", err)
	}
	if catalog.Len() != 2 {
		t.Errorf("catalog.Len() = %d, want 2", catalog.Len())
	}
	if !catalog.Contains("cards") || !catalog.Contains("list") {
		t.Errorf("catalog missing expected variants: %v", catalog.IDs())
	}
}

func TestLoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{
			name: "empty path",
			path: "",
		},
		{
			name: "missing file",
			path: filepath.Join(t.TempDir(), "absent.json"),
		},
		{
			name: "malformed json",
			path: writeCatalogFile(t, `{"variants": [`),
		},
		{
			name: "duplicate ids",
			path: writeCatalogFile(t, `{"variants": [{"id": "a"}, {"id": "a"}]}`),
		},
		{
			name: "no variants",
			path: writeCatalogFile(t, `{"variants": []}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadCatalog(tt.path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	catalog, err := defaultCatalog(3)
	if err != nil {
		t.Fatalf("defaultCatalog: %v", err)
	}
	want := []string{"variant-a", "variant-b", "variant-c"}
	got := catalog.IDs()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// =============================================================================
// SIMULATOR CONFIG TESTS
// =============================================================================

func TestParseCTRs(t *testing.T) {
	catalog, err := defaultCatalog(3)
	if err != nil {
		t.Fatalf("defaultCatalog: %v", err)
	}

	t.Run("empty spec defaults all variants", func(t *testing.T) {
		ctrs, err := parseCTRs("", catalog)
		if err != nil {
			t.Fatalf("parseCTRs: %v", err)
		}
		for _, id := range catalog.IDs() {
			if ctrs[id] != 0.05 {
				t.Errorf("ctrs[%q] = %v, want 0.05", id, ctrs[id])
			}
		}
	})

	t.Run("partial spec fills remainder with default", func(t *testing.T) {
		ctrs, err := parseCTRs("0.10, 0.02", catalog)
		if err != nil {
			t.Fatalf("parseCTRs: %v", err)
		}
		if ctrs["variant-a"] != 0.10 {
			t.Errorf("variant-a = %v, want 0.10", ctrs["variant-a"])
		}
		if ctrs["variant-b"] != 0.02 {
			t.Errorf("variant-b = %v, want 0.02", ctrs["variant-b"])
		}
		if ctrs["variant-c"] != 0.05 {
			t.Errorf("variant-c = %v, want default 0.05", ctrs["variant-c"])
		}
	})

	t.Run("too many entries", func(t *testing.T) {
		if _, err := parseCTRs("0.1,0.1,0.1,0.1", catalog); err == nil {
			t.Error("expected error for extra entries")
		}
	})

	t.Run("non-numeric entry", func(t *testing.T) {
		if _, err := parseCTRs("0.1,high", catalog); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("out of range", func(t *testing.T) {
		if _, err := parseCTRs("1.5", catalog); err == nil {
			t.Error("expected range error")
		}
	})
}

// =============================================================================
// REPORT RENDERING TESTS
// =============================================================================

func TestRenderReport_Plain(t *testing.T) {
	rows := []engine.ReportRow{
		{
			ID: "cards", Enabled: true, Impressions: 120, Clicks: 15,
			CTR: "12.50%", WinProbability: "81.3%", Winner: true,
		},
		{
			ID: "list", Enabled: true, Impressions: 118, Clicks: 4,
			CTR: "3.39%", WinProbability: "18.7%",
		},
	}

	out := renderReport(rows, false)

	if strings.Contains(out, "\033[") {
		t.Error("plain output must not contain escape codes")
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id") {
		t.Errorf("header line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "cards") || !strings.Contains(lines[1], "12.50%") {
		t.Errorf("winner row = %q", lines[1])
	}

	// Columns are padded to a shared width, so every line matches.
	if len(lines[1]) != len(lines[0]) || len(lines[2]) != len(lines[0]) {
		t.Errorf("line widths differ: %d, %d, %d",
			len(lines[0]), len(lines[1]), len(lines[2]))
	}
}

func TestRenderReport_Empty(t *testing.T) {
	out := renderReport(nil, false)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1 {
		t.Errorf("got %d lines, want header only", len(lines))
	}
}

// =============================================================================
// PATH EXPANSION TESTS
// =============================================================================

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	got := expandHome("~/.uplift/db")
	want := filepath.Join(home, ".uplift/db")
	if got != want {
		t.Errorf("expandHome(~/.uplift/db) = %q, want %q", got, want)
	}

	if got := expandHome("/var/lib/uplift"); got != "/var/lib/uplift" {
		t.Errorf("absolute path changed: %q", got)
	}
}
