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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGamma_PositiveFinite(t *testing.T) {
	src := NewLCGSource(42)
	sampler := NewSampler(src)

	// Sweep random shapes across both the boosted (<1) and core (>=1) paths.
	for i := 0; i < 1000; i++ {
		shape := src.Uniform()*10 + 0.001
		v, err := sampler.Gamma(shape)
		require.NoError(t, err, "shape=%v", shape)
		require.False(t, math.IsNaN(v), "NaN for shape=%v", shape)
		require.False(t, math.IsInf(v, 0), "Inf for shape=%v", shape)
		require.Greater(t, v, 0.0, "non-positive draw for shape=%v", shape)
	}
}

func TestGamma_InvalidShape(t *testing.T) {
	sampler := NewSampler(NewLCGSource(1))

	for _, shape := range []float64{0, -1, -0.5, math.NaN()} {
		_, err := sampler.Gamma(shape)
		assert.ErrorIs(t, err, ErrInvalidShape, "shape=%v", shape)
	}
}

func TestGamma_ShapeBelowOneUsesBoost(t *testing.T) {
	sampler := NewSampler(NewLCGSource(7))

	// The boosted path multiplies by U^(1/shape); with tiny shapes the
	// result must still be positive and finite.
	for i := 0; i < 200; i++ {
		v, err := sampler.Gamma(0.01)
		require.NoError(t, err)
		require.Greater(t, v, 0.0)
		require.False(t, math.IsInf(v, 0))
	}
}

func TestGamma_TinyShapeStaysPositive(t *testing.T) {
	sampler := NewSampler(NewLCGSource(42))

	// At shape=0.001 the boost factor U^(1/shape) underflows to an exact
	// float64 zero on most draws; the clamp must keep every draw strictly
	// positive.
	for i := 0; i < 2000; i++ {
		v, err := sampler.Gamma(0.001)
		require.NoError(t, err)
		require.Greater(t, v, 0.0, "draw %d underflowed to zero", i)
		require.False(t, math.IsNaN(v))
		require.False(t, math.IsInf(v, 0))
	}
}

func TestGamma_MeanTracksShape(t *testing.T) {
	sampler := NewSampler(NewLCGSource(99))

	// Gamma(k, 1) has mean k. Loose tolerance: this is a sanity check on
	// the method, not a goodness-of-fit test.
	const n = 20000
	var sum float64
	for i := 0; i < n; i++ {
		v, err := sampler.Gamma(4.0)
		require.NoError(t, err)
		sum += v
	}
	assert.InDelta(t, 4.0, sum/n, 0.15)
}

func TestBeta_OpenUnitInterval(t *testing.T) {
	src := NewLCGSource(1234)
	sampler := NewSampler(src)

	for i := 0; i < 1000; i++ {
		alpha := src.Uniform()*50 + 0.01
		beta := src.Uniform()*50 + 0.01
		v, err := sampler.Beta(alpha, beta)
		require.NoError(t, err, "alpha=%v beta=%v", alpha, beta)
		require.Greater(t, v, 0.0)
		require.Less(t, v, 1.0)
		require.False(t, math.IsNaN(v))
	}
}

func TestBeta_InvalidParameters(t *testing.T) {
	sampler := NewSampler(NewLCGSource(1))

	cases := []struct{ alpha, beta float64 }{
		{0, 1}, {1, 0}, {-1, 1}, {1, -1}, {math.NaN(), 1},
	}
	for _, tc := range cases {
		_, err := sampler.Beta(tc.alpha, tc.beta)
		assert.ErrorIs(t, err, ErrInvalidShape, "alpha=%v beta=%v", tc.alpha, tc.beta)
	}
}

func TestBeta_SkewFollowsCounts(t *testing.T) {
	sampler := NewSampler(NewLCGSource(555))

	// Beta(51, 11) concentrates well above Beta(11, 51).
	const n = 2000
	var high, low float64
	for i := 0; i < n; i++ {
		h, err := sampler.Beta(51, 11)
		require.NoError(t, err)
		l, err := sampler.Beta(11, 51)
		require.NoError(t, err)
		high += h
		low += l
	}
	assert.Greater(t, high/n, 0.75)
	assert.Less(t, low/n, 0.25)
}

func TestLCGSource_Deterministic(t *testing.T) {
	a := NewLCGSource(2024)
	b := NewLCGSource(2024)

	for i := 0; i < 100; i++ {
		require.Equal(t, a.Uniform(), b.Uniform(), "streams diverged at draw %d", i)
	}
}

func TestNormal_Finite(t *testing.T) {
	src := NewLCGSource(3)
	for i := 0; i < 1000; i++ {
		v := Normal(src)
		require.False(t, math.IsNaN(v))
		require.False(t, math.IsInf(v, 0))
	}
}

func TestIntn_Bounds(t *testing.T) {
	src := NewLCGSource(17)
	for i := 0; i < 1000; i++ {
		idx := Intn(src, 4)
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 4)
	}
}
