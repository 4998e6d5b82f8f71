package los

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var (
	coverageCells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_coverage_cells_total",
		Help: "The total number of grid cells evaluated",
	})
	coverageVisibleCells = promauto.NewCounter(prometheus.CounterOpts{
		Name: "los_coverage_visible_cells_total",
		Help: "The total number of grid cells found visible",
	})
	coverageFlightLevelDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "los_coverage_flight_level_duration_seconds",
		Help:    "The time taken to compute the coverage map of one flight level",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

// A Sensor is a radar on the ground.
type Sensor struct {
	Lat        float64
	Lon        float64
	HeightAGLM float64 // Height above ground level, in meters.
}

func (s Sensor) validate() error {
	switch {
	case !isFinite(s.Lat) || !isFinite(s.Lon):
		return fmt.Errorf("%w: position (%v, %v)", ErrInvalidSensor, s.Lat, s.Lon)
	case !(s.HeightAGLM >= 0) || math.IsInf(s.HeightAGLM, 0):
		return fmt.Errorf("%w: height above ground %v", ErrInvalidSensor, s.HeightAGLM)
	default:
		return nil
	}
}

// A CoverageMap records which cells of a TerrainGrid are visible from a
// sensor at a flight level. Visible[i][j] corresponds to the grid's
// (Lats[i], Lons[j]).
type CoverageMap struct {
	FlightLevel FlightLevel
	AltitudeM   float64
	Visible     [][]bool
}

// VisibleCount returns the number of visible cells in m.
func (m *CoverageMap) VisibleCount() int {
	count := 0
	for _, row := range m.Visible {
		for _, visible := range row {
			if visible {
				count++
			}
		}
	}
	return count
}

// Cells returns the number of cells in m.
func (m *CoverageMap) Cells() int {
	if len(m.Visible) == 0 {
		return 0
	}
	return len(m.Visible) * len(m.Visible[0])
}

// Fraction returns the fraction of m's cells that are visible.
func (m *CoverageMap) Fraction() float64 {
	cells := m.Cells()
	if cells == 0 {
		return 0
	}
	return float64(m.VisibleCount()) / float64(cells)
}

// Restrict returns the number of cells selected by mask and the number of
// those that are visible.
func (m *CoverageMap) Restrict(mask Mask) (cells, visible int, err error) {
	if !sameShape(m.Visible, mask) {
		return 0, 0, fmt.Errorf("%w: coverage map and mask", ErrShapeMismatch)
	}
	for i, row := range mask {
		for j, selected := range row {
			if !selected {
				continue
			}
			cells++
			if m.Visible[i][j] {
				visible++
			}
		}
	}
	return cells, visible, nil
}

// CoverageMaps are coverage maps in the order their flight levels were
// requested.
type CoverageMaps []*CoverageMap

// Get returns the coverage map for fl.
func (ms CoverageMaps) Get(fl FlightLevel) (*CoverageMap, bool) {
	for _, m := range ms {
		if m.FlightLevel == fl {
			return m, true
		}
	}
	return nil, false
}

// FlightLevels returns the flight levels of ms, in order.
func (ms CoverageMaps) FlightLevels() []FlightLevel {
	flightLevels := make([]FlightLevel, len(ms))
	for i, m := range ms {
		flightLevels[i] = m.FlightLevel
	}
	return flightLevels
}

// A ProgressFunc is called after each flight level's coverage map is
// complete. completed counts from one to total.
type ProgressFunc func(m *CoverageMap, completed, total int)

// A Generator computes coverage maps over a TerrainGrid.
type Generator struct {
	sampler      *ElevationSampler
	samples      int
	marginM      float64
	earthRadiusM float64
	concurrency  int
	logger       *slog.Logger
	progressFunc ProgressFunc
}

// A GeneratorOption sets an option on a Generator.
type GeneratorOption func(*Generator)

// NewGenerator returns a new Generator for grid with the given options. grid
// is checked as by NewTerrainGrid.
func NewGenerator(grid *TerrainGrid, options ...GeneratorOption) (*Generator, error) {
	if err := grid.validate(); err != nil {
		return nil, err
	}
	g := &Generator{
		samples:     DefaultSamples,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(g)
	}
	switch {
	case g.samples < 1:
		return nil, fmt.Errorf("%w: %d samples", ErrInvalidSamples, g.samples)
	case !(g.marginM >= 0) || math.IsInf(g.marginM, 0):
		return nil, fmt.Errorf("%w: margin %v", ErrInvalidSamples, g.marginM)
	}
	g.concurrency = max(g.concurrency, 1)
	g.sampler = NewElevationSampler(grid)
	return g, nil
}

// WithSamples sets the number of terrain samples along each line of sight.
// More samples detect narrower obstacles at a proportional cost.
func WithSamples(samples int) GeneratorOption {
	return func(g *Generator) {
		g.samples = samples
	}
}

// WithMargin sets the clearance, in meters, that every line of sight must
// keep above the terrain.
func WithMargin(marginM float64) GeneratorOption {
	return func(g *Generator) {
		g.marginM = marginM
	}
}

// WithEarthRadius enables the Earth curvature correction with the given
// effective Earth radius in meters, e.g. StandardEffectiveEarthRadiusM.
func WithEarthRadius(earthRadiusM float64) GeneratorOption {
	return func(g *Generator) {
		g.earthRadiusM = earthRadiusM
	}
}

// WithConcurrency sets the maximum number of rows computed concurrently.
func WithConcurrency(concurrency int) GeneratorOption {
	return func(g *Generator) {
		g.concurrency = concurrency
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithProgressFunc sets a function called as each flight level completes.
func WithProgressFunc(progressFunc ProgressFunc) GeneratorOption {
	return func(g *Generator) {
		g.progressFunc = progressFunc
	}
}

// Sampler returns g's elevation sampler.
func (g *Generator) Sampler() *ElevationSampler {
	return g.sampler
}

// LineOfSight returns a LineOfSight configured like g.
func (g *Generator) LineOfSight() *LineOfSight {
	return NewLineOfSight(
		g.sampler,
		WithLineOfSightSamples(g.samples),
		WithLineOfSightMargin(g.marginM),
		WithLineOfSightEarthRadius(g.earthRadiusM),
	)
}

// SensorPosition returns the position of sensor, with its altitude above
// mean sea level.
func (g *Generator) SensorPosition(sensor Sensor) (Position, error) {
	if err := sensor.validate(); err != nil {
		return Position{}, err
	}
	groundM, clamped := g.sampler.Sample(sensor.Lat, sensor.Lon)
	if clamped {
		g.logger.Warn("sensor outside terrain grid, using nearest edge elevation",
			"lat", sensor.Lat,
			"lon", sensor.Lon,
			"groundM", groundM)
	}
	return Position{
		Lat:  sensor.Lat,
		Lon:  sensor.Lon,
		AltM: groundM + sensor.HeightAGLM,
	}, nil
}

// ComputeCoverageMap returns the coverage map of sensor at fl.
func (g *Generator) ComputeCoverageMap(ctx context.Context, sensor Sensor, fl FlightLevel) (*CoverageMap, error) {
	coverageMaps, err := g.ComputeAllCoverageMaps(ctx, sensor, []FlightLevel{fl})
	if err != nil {
		return nil, err
	}
	return coverageMaps[0], nil
}

// ComputeAllCoverageMaps returns the coverage maps of sensor at each of
// flightLevels, in the same order. If any flight level is invalid then no
// maps are computed. If ctx is canceled then ctx's error is returned and no
// maps.
func (g *Generator) ComputeAllCoverageMaps(ctx context.Context, sensor Sensor, flightLevels []FlightLevel) (CoverageMaps, error) {
	if err := ValidateFlightLevels(flightLevels); err != nil {
		return nil, err
	}
	sensorPosition, err := g.SensorPosition(sensor)
	if err != nil {
		return nil, err
	}

	grid := g.sampler.Grid()
	g.logger.Debug("computing coverage",
		"sensorLat", sensorPosition.Lat,
		"sensorLon", sensorPosition.Lon,
		"sensorAltM", sensorPosition.AltM,
		"flightLevels", len(flightLevels),
		"rows", grid.Rows(),
		"cols", grid.Cols(),
		"samples", g.samples,
		"elevationLookups", len(flightLevels)*grid.Rows()*grid.Cols()*g.samples)

	coverageMaps := make(CoverageMaps, 0, len(flightLevels))
	for i, fl := range flightLevels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		coverageMap, err := g.computeCoverageMap(ctx, sensorPosition, fl)
		if err != nil {
			return nil, err
		}
		duration := time.Since(start)
		coverageFlightLevelDuration.Observe(duration.Seconds())
		g.logger.Info("computed coverage map",
			"flightLevel", fl.String(),
			"altitudeM", coverageMap.AltitudeM,
			"visibleFraction", coverageMap.Fraction(),
			"duration", duration)
		coverageMaps = append(coverageMaps, coverageMap)
		if g.progressFunc != nil {
			g.progressFunc(coverageMap, i+1, len(flightLevels))
		}
	}
	return coverageMaps, nil
}

// computeCoverageMap computes a single coverage map, one row per task. Each
// task writes only its own row.
func (g *Generator) computeCoverageMap(ctx context.Context, sensor Position, fl FlightLevel) (*CoverageMap, error) {
	grid := g.sampler.Grid()
	lineOfSight := g.LineOfSight()
	coverageMap := &CoverageMap{
		FlightLevel: fl,
		AltitudeM:   fl.AltitudeM(),
		Visible:     make([][]bool, grid.Rows()),
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, lat := range grid.Lats {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := make([]bool, grid.Cols())
			visibleCells := 0
			for j, lon := range grid.Lons {
				target := Position{
					Lat:  lat,
					Lon:  lon,
					AltM: coverageMap.AltitudeM,
				}
				if lineOfSight.Visible(sensor, target) {
					row[j] = true
					visibleCells++
				}
			}
			coverageMap.Visible[i] = row
			coverageCells.Add(float64(len(row)))
			coverageVisibleCells.Add(float64(visibleCells))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return coverageMap, nil
}

// ComputeCoverageMap returns the coverage map of sensor at fl over grid.
func ComputeCoverageMap(ctx context.Context, sensor Sensor, fl FlightLevel, grid *TerrainGrid, options ...GeneratorOption) (*CoverageMap, error) {
	g, err := NewGenerator(grid, options...)
	if err != nil {
		return nil, err
	}
	return g.ComputeCoverageMap(ctx, sensor, fl)
}

// ComputeAllCoverageMaps returns the coverage maps of sensor at each of
// flightLevels over grid, in the order of flightLevels.
func ComputeAllCoverageMaps(ctx context.Context, sensor Sensor, flightLevels []FlightLevel, grid *TerrainGrid, options ...GeneratorOption) (CoverageMaps, error) {
	g, err := NewGenerator(grid, options...)
	if err != nil {
		return nil, err
	}
	return g.ComputeAllCoverageMaps(ctx, sensor, flightLevels)
}
