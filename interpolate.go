package los

import (
	"context"
	"slices"
)

// InterpolateBilinear returns the bilinearly interpolated values of raster at
// coords, where each coord is an (x, y) pair in raster's coordinate system.
func InterpolateBilinear(ctx context.Context, raster Raster, coords [][]float64) ([]float64, error) {
	scaleX, scaleY := raster.Scale()
	rasterCoords := make([]Coord, 4*len(coords))
	for i, coord := range coords {
		x0 := scaleX * (int(coord[0]) / scaleX)
		y0 := scaleY * (int(coord[1]) / scaleY)
		x1 := x0 + scaleX
		y1 := y0 + scaleY
		rasterCoords[4*i+0] = Coord{X: x0, Y: y0}
		rasterCoords[4*i+1] = Coord{X: x1, Y: y0}
		rasterCoords[4*i+2] = Coord{X: x0, Y: y1}
		rasterCoords[4*i+3] = Coord{X: x1, Y: y1}
	}
	samples, err := raster.Samples(ctx, rasterCoords)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(coords))
	for i, coord := range coords {
		dx := (coord[0] - float64(rasterCoords[4*i].X)) / float64(scaleX)
		dy := (coord[1] - float64(rasterCoords[4*i].Y)) / float64(scaleY)
		result[i] = interpolateBilinear(samples[4*i+0], samples[4*i+1], samples[4*i+2], samples[4*i+3], dy, dx)
	}
	return result, nil
}

// interpolateBilinear interpolates between the four corners of a cell. z00
// and z01 are the values on the first row, z10 and z11 on the second row. t is
// the fractional position between the rows and u between the columns, both in
// [0, 1].
func interpolateBilinear(z00, z01, z10, z11, t, u float64) float64 {
	z0 := (1-u)*z00 + u*z01
	z1 := (1-u)*z10 + u*z11
	return (1-t)*z0 + t*z1
}

// bracket returns the indexes i0 and i1 of the values in the strictly
// ascending axis that enclose v, and v's fractional position t between them.
// If v is exactly on an axis value then i0 == i1 and t is zero. Values outside
// the axis, including NaN, are clamped to the nearest end and clamped is true.
func bracket(axis []float64, v float64) (i0, i1 int, t float64, clamped bool) {
	last := len(axis) - 1
	switch {
	case !(v > axis[0]):
		return 0, 0, 0, v != axis[0]
	case v >= axis[last]:
		return last, last, 0, v != axis[last]
	}
	i1, found := slices.BinarySearch(axis, v)
	if found {
		return i1, i1, 0, false
	}
	i0 = i1 - 1
	t = (v - axis[i0]) / (axis[i1] - axis[i0])
	return i0, i1, t, false
}
