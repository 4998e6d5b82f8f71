package los

import (
	"context"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

type testRaster struct {
	scaleX  int
	scaleY  int
	samples [][]float64
}

func (t *testRaster) Samples(ctx context.Context, coords []Coord) ([]float64, error) {
	samples := make([]float64, len(coords))
	for i, coord := range coords {
		samples[i] = t.samples[coord.Y/t.scaleY][coord.X/t.scaleX]
	}
	return samples, nil
}

func (t *testRaster) Scale() (int, int) {
	return t.scaleX, t.scaleY
}

func TestInterpolateBilinear(t *testing.T) {
	simpleRaster := &testRaster{
		scaleX: 10,
		scaleY: 10,
		samples: [][]float64{
			{0, 1, 2},
			{2, 3, 4},
			{4, 5, 6},
		},
	}
	actual, err := InterpolateBilinear(t.Context(), simpleRaster, [][]float64{
		{0, 0},
		{10, 0},
		{0, 10},
		{10, 10},
		{5, 5},
		{5, 0},
		{0, 5},
		{10, 5},
		{5, 10},
	})
	assert.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 1.5, 0.5, 1, 2, 2.5}, actual)
}

func TestBracket(t *testing.T) {
	axis := []float64{0, 1, 3, 7}
	for _, tc := range []struct {
		name            string
		v               float64
		expectedI0      int
		expectedI1      int
		expectedT       float64
		expectedClamped bool
	}{
		{name: "first", v: 0, expectedI0: 0, expectedI1: 0},
		{name: "last", v: 7, expectedI0: 3, expectedI1: 3},
		{name: "on_axis", v: 3, expectedI0: 2, expectedI1: 2},
		{name: "first_cell", v: 0.25, expectedI0: 0, expectedI1: 1, expectedT: 0.25},
		{name: "middle_cell", v: 2, expectedI0: 1, expectedI1: 2, expectedT: 0.5},
		{name: "last_cell", v: 6, expectedI0: 2, expectedI1: 3, expectedT: 0.75},
		{name: "below", v: -1, expectedI0: 0, expectedI1: 0, expectedClamped: true},
		{name: "above", v: 8, expectedI0: 3, expectedI1: 3, expectedClamped: true},
		{name: "nan", v: math.NaN(), expectedI0: 0, expectedI1: 0, expectedClamped: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			i0, i1, tt, clamped := bracket(axis, tc.v)
			assert.Equal(t, tc.expectedI0, i0)
			assert.Equal(t, tc.expectedI1, i1)
			assert.Equal(t, tc.expectedT, tt)
			assert.Equal(t, tc.expectedClamped, clamped)
		})
	}
}

func TestBracketSingleValue(t *testing.T) {
	for _, v := range []float64{-1, 5, 6} {
		i0, i1, tt, clamped := bracket([]float64{5}, v)
		assert.Equal(t, 0, i0)
		assert.Equal(t, 0, i1)
		assert.Equal(t, 0.0, tt)
		assert.Equal(t, v != 5, clamped)
	}
}

func TestInterpolateBilinearCorners(t *testing.T) {
	for _, tc := range []struct {
		t, u     float64
		expected float64
	}{
		{t: 0, u: 0, expected: 1},
		{t: 0, u: 1, expected: 2},
		{t: 1, u: 0, expected: 3},
		{t: 1, u: 1, expected: 4},
		{t: 0.5, u: 0, expected: 2},
		{t: 0, u: 0.5, expected: 1.5},
		{t: 0.5, u: 0.5, expected: 2.5},
	} {
		assert.Equal(t, tc.expected, interpolateBilinear(1, 2, 3, 4, tc.t, tc.u))
	}
}
