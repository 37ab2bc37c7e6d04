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
	"encoding/json"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyCatalog indicates the catalog holds no variants.
	ErrEmptyCatalog = errors.New("variant catalog is empty")

	// ErrDuplicateVariant indicates two catalog entries share an id.
	ErrDuplicateVariant = errors.New("duplicate variant id")

	// ErrInvalidVariantID indicates a blank variant id.
	ErrInvalidVariantID = errors.New("variant id must not be empty")

	// ErrUnknownVariant indicates an id not present in the catalog.
	ErrUnknownVariant = errors.New("unknown variant id")
)

// -----------------------------------------------------------------------------
// Variant
// -----------------------------------------------------------------------------

// Variant is an immutable catalog entry.
//
// The engine never inspects Payload; it is an opaque descriptor the host
// UI layer resolves into an actual design.
type Variant struct {
	// ID uniquely identifies the variant within the catalog.
	ID string `json:"id"`

	// Payload is the opaque design descriptor.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

// Catalog is the ordered, immutable set of variants for one experiment.
//
// Description:
//
//	The catalog is loaded once at startup and never mutated for the
//	process lifetime; changing it requires a fresh deployment, not a
//	runtime API. Iteration order (and therefore allocation tie-break
//	order) is the order variants were declared in.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type Catalog struct {
	variants []Variant
	index    map[string]int
}

// NewCatalog validates the descriptor list and builds a catalog.
//
// Inputs:
//   - variants: Ordered variant descriptors. Must be non-empty with
//     unique, non-blank ids.
//
// Outputs:
//   - *Catalog: The catalog. Nil on error.
//   - error: ErrEmptyCatalog, ErrInvalidVariantID, or ErrDuplicateVariant.
//     These are configuration errors and fatal at initialization.
func NewCatalog(variants []Variant) (*Catalog, error) {
	if len(variants) == 0 {
		return nil, ErrEmptyCatalog
	}

	index := make(map[string]int, len(variants))
	owned := make([]Variant, len(variants))
	for i, v := range variants {
		if v.ID == "" {
			return nil, fmt.Errorf("%w: position %d", ErrInvalidVariantID, i)
		}
		if _, dup := index[v.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateVariant, v.ID)
		}
		index[v.ID] = i
		owned[i] = v
	}

	return &Catalog{variants: owned, index: index}, nil
}

// Len returns the number of catalog variants.
func (c *Catalog) Len() int {
	return len(c.variants)
}

// Contains reports whether the id names a catalog variant.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Get returns the variant for the given id.
func (c *Catalog) Get(id string) (Variant, bool) {
	i, ok := c.index[id]
	if !ok {
		return Variant{}, false
	}
	return c.variants[i], true
}

// IDs returns variant ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.variants))
	for i, v := range c.variants {
		ids[i] = v.ID
	}
	return ids
}

// Variants returns a copy of the catalog entries in declaration order.
func (c *Catalog) Variants() []Variant {
	out := make([]Variant, len(c.variants))
	copy(out, c.variants)
	return out
}
