// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sampling

import (
	"math"
	"time"
)

// -----------------------------------------------------------------------------
// Source Interface
// -----------------------------------------------------------------------------

// Source produces uniform random doubles in [0, 1).
//
// Description:
//
//	Source is the single randomness capability consumed by the sampler
//	and the allocation engine. Injecting it (instead of reaching for a
//	global generator) lets tests seed the stream and assert exact
//	allocation behavior.
//
// Thread Safety: Implementations are NOT required to be safe for
// concurrent use. The engine serializes all access.
type Source interface {
	// Uniform returns the next value in [0, 1).
	Uniform() float64
}

// -----------------------------------------------------------------------------
// LCG Source
// -----------------------------------------------------------------------------

// LCGSource is a seedable linear congruential generator.
//
// Description:
//
//	Uses the PCG multiplier/increment pair over a 64-bit state. This is
//	not a cryptographic generator; it only shapes approximate traffic
//	allocation, where speed and reproducibility matter more than
//	statistical perfection.
type LCGSource struct {
	state uint64
}

// NewLCGSource creates a source seeded with the given value.
//
// Inputs:
//   - seed: Initial generator state. The same seed replays the same stream.
//
// Outputs:
//   - *LCGSource: The new source. Never nil.
func NewLCGSource(seed uint64) *LCGSource {
	return &LCGSource{state: seed}
}

// NewTimeSeededSource creates a source seeded from the wall clock.
func NewTimeSeededSource() *LCGSource {
	return NewLCGSource(uint64(time.Now().UnixNano()))
}

// Uniform returns the next value in [0, 1).
func (s *LCGSource) Uniform() float64 {
	s.state = s.state*6364136223846793005 + 1442695040888963407
	return float64(s.state%1000000000) / 1000000000.0
}

// -----------------------------------------------------------------------------
// Derived Draws
// -----------------------------------------------------------------------------

// Normal draws a standard normal via the Box-Muller transform.
//
// Inputs:
//   - src: Uniform source. Must not be nil.
//
// Outputs:
//   - float64: A draw from Normal(0, 1). Always finite.
func Normal(src Source) float64 {
	// 1-u keeps the argument of Log strictly positive.
	u1 := 1.0 - src.Uniform()
	u2 := src.Uniform()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// Intn draws a uniform integer in [0, n).
//
// Inputs:
//   - src: Uniform source. Must not be nil.
//   - n: Exclusive upper bound. Must be > 0.
//
// Outputs:
//   - int: A uniform index. Clamped to n-1 at the (unreachable) boundary.
func Intn(src Source, n int) int {
	idx := int(src.Uniform() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}
