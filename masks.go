package los

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// A Mask selects cells of a TerrainGrid. Mask[i][j] corresponds to the grid's
// (Lats[i], Lons[j]). Masks are used to restrict the search for admissible
// sensor sites.
type Mask [][]bool

// Count returns the number of selected cells in m.
func (m Mask) Count() int {
	count := 0
	for _, row := range m {
		for _, selected := range row {
			if selected {
				count++
			}
		}
	}
	return count
}

// MaskLand returns a mask selecting the cells of grid that are above sea
// level.
func MaskLand(grid *TerrainGrid) Mask {
	return newMask(grid, func(i, j int, _ orb.Point) bool {
		return grid.Elevations[i][j] > 0
	})
}

// MaskWithinRadius returns a mask selecting the cells of grid whose
// great-circle distance from (lat, lon) is at most radiusM meters.
func MaskWithinRadius(grid *TerrainGrid, lat, lon, radiusM float64) Mask {
	center := orbPoint(lat, lon)
	return newMask(grid, func(_, _ int, point orb.Point) bool {
		return geo.DistanceHaversine(center, point) <= radiusM
	})
}

// MaskInside returns a mask selecting the cells of grid within bound.
func MaskInside(grid *TerrainGrid, bound orb.Bound) Mask {
	return newMask(grid, func(_, _ int, point orb.Point) bool {
		return bound.Contains(point)
	})
}

// MaskOutside returns a mask selecting the cells of grid that are not inside
// any of polygons, for example to exclude foreign territory.
func MaskOutside(grid *TerrainGrid, polygons orb.MultiPolygon) Mask {
	bounds := make([]orb.Bound, len(polygons))
	for i, polygon := range polygons {
		bounds[i] = polygon.Bound()
	}
	return newMask(grid, func(_, _ int, point orb.Point) bool {
		for i, polygon := range polygons {
			if bounds[i].Contains(point) && planar.PolygonContains(polygon, point) {
				return false
			}
		}
		return true
	})
}

// CombineMasks returns the logical AND of masks, which must all have the same
// shape.
func CombineMasks(masks ...Mask) (Mask, error) {
	if len(masks) == 0 {
		return nil, fmt.Errorf("%w: no masks", ErrShapeMismatch)
	}
	for i, mask := range masks[1:] {
		if !sameShape(masks[0], mask) {
			return nil, fmt.Errorf("%w: mask %d", ErrShapeMismatch, i+1)
		}
	}
	result := make(Mask, len(masks[0]))
	for i, row := range masks[0] {
		result[i] = make([]bool, len(row))
		for j := range row {
			selected := true
			for _, mask := range masks {
				if !mask[i][j] {
					selected = false
					break
				}
			}
			result[i][j] = selected
		}
	}
	return result, nil
}

func newMask(grid *TerrainGrid, f func(i, j int, point orb.Point) bool) Mask {
	mask := make(Mask, grid.Rows())
	for i, lat := range grid.Lats {
		mask[i] = make([]bool, grid.Cols())
		for j, lon := range grid.Lons {
			mask[i][j] = f(i, j, orbPoint(lat, lon))
		}
	}
	return mask
}

func sameShape(a, b [][]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}
