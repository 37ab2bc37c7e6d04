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
	"encoding/json"
	"fmt"
	"os"

	"github.com/AleutianAI/uplift/engine"
)

// catalogFile is the on-disk catalog format.
//
// Example:
//
//	{
//	  "variants": [
//	    {"id": "cards", "payload": {"layout": "cards"}},
//	    {"id": "list",  "payload": {"layout": "list"}}
//	  ]
//	}
type catalogFile struct {
	Variants []engine.Variant `json:"variants"`
}

// loadCatalog reads and validates the variant catalog. Any problem here
// is a configuration error and fatal to the command.
func loadCatalog(path string) (*engine.Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("--catalog is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	catalog, err := engine.NewCatalog(file.Variants)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return catalog, nil
}

// defaultCatalog builds an n-variant catalog for the simulator.
func defaultCatalog(n int) (*engine.Catalog, error) {
	variants := make([]engine.Variant, n)
	for i := range variants {
		variants[i] = engine.Variant{ID: fmt.Sprintf("variant-%c", 'a'+i)}
	}
	return engine.NewCatalog(variants)
}
