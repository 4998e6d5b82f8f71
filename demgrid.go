package los

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// A TerrainGridFromDEMOption sets an option on NewTerrainGridFromDEM.
type TerrainGridFromDEMOption func(*terrainGridFromDEMOptions)

type terrainGridFromDEMOptions struct {
	noDataElevationM float64
	logger           *slog.Logger
}

// WithNoDataElevation sets the elevation used where the DEM has no data. The
// default is zero, i.e. sea level.
func WithNoDataElevation(elevationM float64) TerrainGridFromDEMOption {
	return func(o *terrainGridFromDEMOptions) {
		o.noDataElevationM = elevationM
	}
}

// WithDEMLogger sets the logger.
func WithDEMLogger(logger *slog.Logger) TerrainGridFromDEMOption {
	return func(o *terrainGridFromDEMOptions) {
		o.logger = logger
	}
}

// NewTerrainGridFromDEM returns a new TerrainGrid with axes lats and lons
// whose elevations are sampled from dem, one row at a time.
func NewTerrainGridFromDEM(ctx context.Context, dem DEM, lats, lons []float64, options ...TerrainGridFromDEMOption) (*TerrainGrid, error) {
	o := &terrainGridFromDEMOptions{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(o)
	}
	if !isFinite(o.noDataElevationM) {
		return nil, fmt.Errorf("%w: no data elevation %v", ErrInvalidTerrainGrid, o.noDataElevationM)
	}
	if err := checkAxis("latitude", lats); err != nil {
		return nil, err
	}
	if err := checkAxis("longitude", lons); err != nil {
		return nil, err
	}

	coords := make([][]float64, len(lons))
	for j := range coords {
		coords[j] = make([]float64, 2)
	}
	elevations := make([][]float64, len(lats))
	noDataCells := 0
	for i, lat := range lats {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j, lon := range lons {
			coords[j][0], coords[j][1] = lon, lat
		}
		row, err := dem.Elevation4326(ctx, coords)
		if err != nil {
			return nil, err
		}
		if len(row) != len(lons) {
			return nil, fmt.Errorf("%w: DEM returned %d elevations, expected %d", ErrInvalidTerrainGrid, len(row), len(lons))
		}
		for j, elevation := range row {
			if math.IsNaN(elevation) || math.IsInf(elevation, 0) {
				row[j] = o.noDataElevationM
				noDataCells++
			}
		}
		elevations[i] = row
	}
	if noDataCells > 0 {
		o.logger.Warn("DEM has no data for some cells",
			"cells", noDataCells,
			"elevationM", o.noDataElevationM)
	}

	return NewTerrainGrid(lats, lons, elevations)
}

// AxisRange returns the values from start towards stop, inclusive, spaced by
// step. step may be negative to produce a descending axis. Values are
// computed by multiplication so that rounding errors do not accumulate.
func AxisRange(start, stop, step float64) ([]float64, error) {
	if !isFinite(start) || !isFinite(stop) || !isFinite(step) || step == 0 || (stop-start)/step < 0 {
		return nil, fmt.Errorf("%w: axis range %v to %v by %v", ErrInvalidTerrainGrid, start, stop, step)
	}
	n := int(math.Floor((stop-start)/step+1e-9)) + 1
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = start + float64(i)*step
	}
	return axis, nil
}
