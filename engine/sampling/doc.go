// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sampling provides the random primitives behind Thompson Sampling.
//
// It exposes a seedable uniform Source and a Sampler that draws from
// Gamma and Beta distributions. The allocation engine injects a Source so
// tests can seed it and replay allocation decisions deterministically.
//
// The Gamma sampler uses the Marsaglia-Tsang method, with the standard
// boosting transform for shape < 1. Beta draws are composed from two
// Gamma draws.
package sampling
