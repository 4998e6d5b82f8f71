package los

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var samplerClampedQueries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "los_sampler_clamped_queries_total",
	Help: "The total number of elevation queries clamped to the terrain grid extent",
})

// A Sampler returns the terrain elevation at arbitrary coordinates.
type Sampler interface {
	ElevationAt(lat, lon float64) float64
}

// An ElevationSampler interpolates a TerrainGrid bilinearly. It is safe for
// concurrent use.
//
// Queries outside the grid are clamped to the nearest edge of the grid rather
// than failing, so points just beyond the grid take the elevation of the
// grid's border. Sample reports when this happens.
type ElevationSampler struct {
	grid       *TerrainGrid
	lats       []float64 // Ascending.
	lons       []float64 // Ascending.
	reverseLat bool
	reverseLon bool
}

// NewElevationSampler returns a new ElevationSampler for grid, which must be
// valid as checked by NewTerrainGrid.
func NewElevationSampler(grid *TerrainGrid) *ElevationSampler {
	s := &ElevationSampler{
		grid: grid,
		lats: grid.Lats,
		lons: grid.Lons,
	}
	if len(s.lats) > 1 && s.lats[0] > s.lats[1] {
		s.lats = slices.Clone(s.lats)
		slices.Reverse(s.lats)
		s.reverseLat = true
	}
	if len(s.lons) > 1 && s.lons[0] > s.lons[1] {
		s.lons = slices.Clone(s.lons)
		slices.Reverse(s.lons)
		s.reverseLon = true
	}
	return s
}

// Grid returns s's grid.
func (s *ElevationSampler) Grid() *TerrainGrid {
	return s.grid
}

// ElevationAt returns the interpolated elevation at (lat, lon).
func (s *ElevationSampler) ElevationAt(lat, lon float64) float64 {
	elevation, _ := s.Sample(lat, lon)
	return elevation
}

// Sample returns the interpolated elevation at (lat, lon) and whether the
// query was clamped to the grid's extent.
func (s *ElevationSampler) Sample(lat, lon float64) (float64, bool) {
	i0, i1, t, latClamped := bracket(s.lats, lat)
	j0, j1, u, lonClamped := bracket(s.lons, lon)
	clamped := latClamped || lonClamped
	if clamped {
		samplerClampedQueries.Inc()
	}
	return interpolateBilinear(
		s.elevation(i0, j0),
		s.elevation(i0, j1),
		s.elevation(i1, j0),
		s.elevation(i1, j1),
		t, u,
	), clamped
}

// elevation returns the elevation at the ascending indexes i and j.
func (s *ElevationSampler) elevation(i, j int) float64 {
	if s.reverseLat {
		i = len(s.lats) - 1 - i
	}
	if s.reverseLon {
		j = len(s.lons) - 1 - j
	}
	return s.grid.Elevations[i][j]
}
