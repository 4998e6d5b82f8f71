package los

import (
	"fmt"
	"math"
)

// A TerrainGrid is a rectangular field of elevations, in meters above mean
// sea level, indexed by WGS84 latitude and longitude in decimal degrees.
// Elevations[i][j] is the elevation at (Lats[i], Lons[j]).
//
// A TerrainGrid must not be modified after it is passed to
// NewTerrainGrid.
type TerrainGrid struct {
	Lats       []float64
	Lons       []float64
	Elevations [][]float64
}

// NewTerrainGrid returns a new TerrainGrid after checking that lats and lons
// are each strictly monotonic, that elevations has shape (len(lats),
// len(lons)), and that all values are finite. The slices are not copied.
func NewTerrainGrid(lats, lons []float64, elevations [][]float64) (*TerrainGrid, error) {
	g := &TerrainGrid{
		Lats:       lats,
		Lons:       lons,
		Elevations: elevations,
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validate returns an error wrapping ErrInvalidTerrainGrid if g is nil or
// does not satisfy the conditions checked by NewTerrainGrid.
func (g *TerrainGrid) validate() error {
	if g == nil {
		return fmt.Errorf("%w: nil grid", ErrInvalidTerrainGrid)
	}
	if err := checkAxis("latitude", g.Lats); err != nil {
		return err
	}
	if err := checkAxis("longitude", g.Lons); err != nil {
		return err
	}
	if len(g.Elevations) != len(g.Lats) {
		return fmt.Errorf("%w: %d rows, expected %d", ErrInvalidTerrainGrid, len(g.Elevations), len(g.Lats))
	}
	for i, row := range g.Elevations {
		if len(row) != len(g.Lons) {
			return fmt.Errorf("%w: row %d has %d columns, expected %d", ErrInvalidTerrainGrid, i, len(row), len(g.Lons))
		}
		for j, elevation := range row {
			if !isFinite(elevation) {
				return fmt.Errorf("%w: elevation[%d][%d] is %v", ErrInvalidTerrainGrid, i, j, elevation)
			}
		}
	}
	return nil
}

// Rows returns the number of latitudes in g.
func (g *TerrainGrid) Rows() int {
	return len(g.Lats)
}

// Cols returns the number of longitudes in g.
func (g *TerrainGrid) Cols() int {
	return len(g.Lons)
}

// Extent returns the minimum and maximum latitude and longitude of g.
func (g *TerrainGrid) Extent() (minLat, minLon, maxLat, maxLon float64) {
	minLat, maxLat = axisExtent(g.Lats)
	minLon, maxLon = axisExtent(g.Lons)
	return
}

// Contains returns whether (lat, lon) is within g's extent.
func (g *TerrainGrid) Contains(lat, lon float64) bool {
	minLat, minLon, maxLat, maxLon := g.Extent()
	return minLat <= lat && lat <= maxLat && minLon <= lon && lon <= maxLon
}

// ElevationRange returns the lowest and highest elevations in g.
func (g *TerrainGrid) ElevationRange() (float64, float64) {
	lowest, highest := math.Inf(1), math.Inf(-1)
	for _, row := range g.Elevations {
		for _, elevation := range row {
			lowest = min(lowest, elevation)
			highest = max(highest, elevation)
		}
	}
	return lowest, highest
}

// checkAxis returns an error if axis is empty, contains a non-finite value,
// or is not strictly monotonic.
func checkAxis(name string, axis []float64) error {
	if len(axis) == 0 {
		return fmt.Errorf("%w: empty %s axis", ErrInvalidTerrainGrid, name)
	}
	for i, value := range axis {
		if !isFinite(value) {
			return fmt.Errorf("%w: %s[%d] is %v", ErrInvalidTerrainGrid, name, i, value)
		}
	}
	if len(axis) == 1 {
		return nil
	}
	ascending := axis[0] < axis[1]
	for i := 1; i < len(axis); i++ {
		if ascending && !(axis[i-1] < axis[i]) || !ascending && !(axis[i-1] > axis[i]) {
			return fmt.Errorf("%w: %s axis is not strictly monotonic at index %d", ErrInvalidTerrainGrid, name, i)
		}
	}
	return nil
}

func axisExtent(axis []float64) (float64, float64) {
	first, last := axis[0], axis[len(axis)-1]
	if first > last {
		return last, first
	}
	return first, last
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
