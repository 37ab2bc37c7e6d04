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
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidShape indicates a non-positive distribution parameter.
	ErrInvalidShape = errors.New("distribution parameter must be positive")

	// ErrSamplerStalled indicates the rejection loop exceeded its retry
	// budget. This signals a defective Source, not normal operation.
	ErrSamplerStalled = errors.New("gamma sampler exceeded retry budget")
)

// maxGammaRetries bounds the Marsaglia-Tsang rejection loop. The loop
// accepts with probability > 0.95 per iteration for any valid shape, so
// hitting this budget means the uniform source is broken.
const maxGammaRetries = 10000

// -----------------------------------------------------------------------------
// Sampler
// -----------------------------------------------------------------------------

// Sampler draws from Gamma and Beta distributions.
//
// Thread Safety: NOT safe for concurrent use. The owning engine
// serializes all draws.
type Sampler struct {
	src Source
}

// NewSampler creates a sampler backed by the given uniform source.
//
// Inputs:
//   - src: Uniform source. Must not be nil.
//
// Outputs:
//   - *Sampler: The new sampler. Never nil.
func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// Gamma draws from Gamma(shape, 1) using the Marsaglia-Tsang method.
//
// Description:
//
//	For shape >= 1 the method sets d = shape - 1/3, c = 1/sqrt(9d),
//	draws x ~ Normal(0,1) until v = (1+cx)^3 > 0, and accepts d*v via
//	the squeeze test u < 1 - 0.0331*x^4 or the exact log test
//	log(u) < 0.5*x^2 + d*(1 - v + log v).
//
//	For shape < 1 it applies the boosting transform
//	Gamma(shape) = Gamma(shape+1) * U^(1/shape), which preserves the
//	distribution while keeping the core method in its valid range.
//
// Inputs:
//   - shape: Distribution shape. Must be > 0.
//
// Outputs:
//   - float64: A finite positive draw.
//   - error: ErrInvalidShape for shape <= 0 (or NaN), ErrSamplerStalled
//     if the rejection loop exceeds its budget.
func (s *Sampler) Gamma(shape float64) (float64, error) {
	if shape <= 0 || math.IsNaN(shape) {
		return 0, fmt.Errorf("%w: shape=%v", ErrInvalidShape, shape)
	}

	if shape < 1 {
		boosted, err := s.Gamma(shape + 1)
		if err != nil {
			return 0, err
		}
		u := s.src.Uniform()
		if u <= 0 {
			u = math.SmallestNonzeroFloat64
		}
		// For tiny shapes U^(1/shape) underflows to 0; clamp like the
		// core path so the draw stays positive.
		return positive(boosted * math.Pow(u, 1.0/shape)), nil
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9.0*d)

	for i := 0; i < maxGammaRetries; i++ {
		var x, v float64
		for j := 0; j < maxGammaRetries; j++ {
			x = Normal(s.src)
			v = 1.0 + c*x
			if v > 0 {
				break
			}
		}
		if v <= 0 {
			return 0, ErrSamplerStalled
		}

		v = v * v * v
		u := s.src.Uniform()
		x2 := x * x

		// Squeeze test: cheap acceptance covering the vast majority of draws.
		if u < 1.0-0.0331*x2*x2 {
			return positive(d * v), nil
		}
		// Exact log test.
		if math.Log(u) < 0.5*x2+d*(1.0-v+math.Log(v)) {
			return positive(d * v), nil
		}
	}

	return 0, ErrSamplerStalled
}

// Beta draws from Beta(alpha, beta) as Ga/(Ga+Gb).
//
// Description:
//
//	Callers in the allocation path always pass successes+1, failures+1
//	(Laplace smoothing), so parameters are structurally >= 1 there. The
//	validity check still guards direct callers.
//
// Inputs:
//   - alpha: Pseudo-count of successes. Must be > 0.
//   - beta: Pseudo-count of failures. Must be > 0.
//
// Outputs:
//   - float64: A draw strictly inside (0, 1). Never NaN for valid inputs.
//   - error: ErrInvalidShape for non-positive parameters.
func (s *Sampler) Beta(alpha, beta float64) (float64, error) {
	if alpha <= 0 || beta <= 0 || math.IsNaN(alpha) || math.IsNaN(beta) {
		return 0, fmt.Errorf("%w: alpha=%v beta=%v", ErrInvalidShape, alpha, beta)
	}

	x, err := s.Gamma(alpha)
	if err != nil {
		return 0, err
	}
	y, err := s.Gamma(beta)
	if err != nil {
		return 0, err
	}

	return openUnit(x / (x + y)), nil
}

// positive clamps underflowed draws back into the open positive range.
func positive(v float64) float64 {
	if v <= 0 {
		return math.SmallestNonzeroFloat64
	}
	return v
}

// openUnit clamps a ratio into the open interval (0, 1).
//
// Extreme parameter ratios can underflow the Gamma composition to an
// exact 0 or 1; the Beta contract promises the open interval.
func openUnit(v float64) float64 {
	if v <= 0 {
		return math.SmallestNonzeroFloat64
	}
	if v >= 1 {
		return math.Nextafter(1, 0)
	}
	return v
}
