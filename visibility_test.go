package los_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/twpayne/go-los"
)

// newSpikeGrid returns a flat grid at sea level with a single 2000m spike at
// (0, 0.5).
func newSpikeGrid(t testing.TB) *los.TerrainGrid {
	t.Helper()
	return newTestGrid(t, newTestAxis(t, -0.25, 0.25, 0.0625), newTestAxis(t, 0, 1, 0.0625), func(lat, lon float64) float64 {
		if lat == 0 && lon == 0.5 {
			return 2000
		}
		return 0
	})
}

func TestIsVisible(t *testing.T) {
	flatSampler := los.NewElevationSampler(newTestGrid(t, newTestAxis(t, -1, 1, 0.5), newTestAxis(t, -1, 2, 0.5), flat(0)))
	spikeSampler := los.NewElevationSampler(newSpikeGrid(t))
	sensor := los.Position{Lat: 0, Lon: 0, AltM: 100}
	targetFL50 := los.Position{Lat: 0, Lon: 1, AltM: 1524}

	for _, tc := range []struct {
		name     string
		sampler  los.Sampler
		sensor   los.Position
		target   los.Position
		samples  int
		marginM  float64
		expected bool
	}{
		{
			name:     "flat",
			sampler:  flatSampler,
			sensor:   sensor,
			target:   targetFL50,
			samples:  400,
			expected: true,
		},
		{
			name:     "flat_one_sample",
			sampler:  flatSampler,
			sensor:   sensor,
			target:   targetFL50,
			samples:  1,
			expected: true,
		},
		{
			name:     "spike",
			sampler:  spikeSampler,
			sensor:   sensor,
			target:   targetFL50,
			samples:  400,
			expected: false,
		},
		{
			name:     "spike_missed_by_coarse_sampling",
			sampler:  spikeSampler,
			sensor:   sensor,
			target:   targetFL50,
			samples:  3,
			expected: true,
		},
		{
			name:     "spike_cleared_from_above",
			sampler:  spikeSampler,
			sensor:   los.Position{Lat: 0, Lon: 0, AltM: 3000},
			target:   targetFL50,
			samples:  400,
			expected: true,
		},
		{
			name:     "grazing_without_margin",
			sampler:  flatSampler,
			sensor:   los.Position{Lat: 0, Lon: 0, AltM: 30},
			target:   los.Position{Lat: 0, Lon: 1, AltM: 30},
			samples:  8,
			marginM:  0,
			expected: true,
		},
		{
			name:     "grazing_equal_margin",
			sampler:  flatSampler,
			sensor:   los.Position{Lat: 0, Lon: 0, AltM: 30},
			target:   los.Position{Lat: 0, Lon: 1, AltM: 30},
			samples:  8,
			marginM:  30,
			expected: true,
		},
		{
			name:     "grazing_larger_margin",
			sampler:  flatSampler,
			sensor:   los.Position{Lat: 0, Lon: 0, AltM: 30},
			target:   los.Position{Lat: 0, Lon: 1, AltM: 30},
			samples:  8,
			marginM:  50,
			expected: false,
		},
		{
			name:     "sensor_within_margin",
			sampler:  flatSampler,
			sensor:   los.Position{Lat: 0, Lon: 0, AltM: 10},
			target:   los.Position{Lat: 0, Lon: 1, AltM: 1000},
			samples:  8,
			marginM:  20,
			expected: true,
		},
		{
			name:     "target_below_terrain",
			sampler:  flatSampler,
			sensor:   sensor,
			target:   los.Position{Lat: 0, Lon: 1, AltM: -1},
			samples:  400,
			expected: false,
		},
		{
			name:     "zero_distance",
			sampler:  spikeSampler,
			sensor:   los.Position{Lat: 0, Lon: 0.5, AltM: 0},
			target:   los.Position{Lat: 0, Lon: 0.5, AltM: -500},
			samples:  400,
			expected: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := los.IsVisible(tc.sampler, tc.sensor, tc.target, tc.samples, tc.marginM)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestLineOfSightMarginMonotonic(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	grid := newTestGrid(t, newTestAxis(t, 0, 1, 0.0625), newTestAxis(t, 0, 1, 0.0625), func(float64, float64) float64 {
		return 1000 * r.Float64()
	})
	sampler := los.NewElevationSampler(grid)
	sensor := los.Position{Lat: 0.5, Lon: 0.5, AltM: 1100}
	margins := []float64{0, 10, 50, 100, 500}
	for _, lat := range grid.Lats {
		for _, lon := range grid.Lons {
			target := los.Position{Lat: lat, Lon: lon, AltM: 1500}
			previous := true
			for _, marginM := range margins {
				visible := los.IsVisible(sampler, sensor, target, 64, marginM)
				assert.False(t, visible && !previous)
				previous = visible
			}
		}
	}
}

func TestLineOfSightSampleConvergence(t *testing.T) {
	grid := newTestGrid(t, newTestAxis(t, -0.5, 0.5, 0.0625), newTestAxis(t, 0, 1, 0.015625), func(lat, lon float64) float64 {
		dLon := lon - 0.5
		return 500 * math.Exp(-(dLon*dLon+lat*lat)/(2*0.05*0.05))
	})
	sampler := los.NewElevationSampler(grid)
	sensor := los.Position{Lat: 0, Lon: 0, AltM: 100}
	for _, tc := range []struct {
		name     string
		target   los.Position
		expected bool
	}{
		{
			name:     "over_hill",
			target:   los.Position{Lat: 0, Lon: 1, AltM: los.FlightLevel(50).AltitudeM()},
			expected: true,
		},
		{
			name:     "behind_hill",
			target:   los.Position{Lat: 0, Lon: 1, AltM: los.FlightLevel(5).AltitudeM()},
			expected: false,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for _, samples := range []int{100, 400, 1600, 6400} {
				assert.Equal(t, tc.expected, los.IsVisible(sampler, sensor, tc.target, samples, 0))
			}
		})
	}
}

func TestLineOfSightEarthCurvature(t *testing.T) {
	sampler := los.NewElevationSampler(newTestGrid(t, newTestAxis(t, -1, 1, 0.5), newTestAxis(t, -1, 2, 0.5), flat(0)))
	sensor := los.Position{Lat: 0, Lon: 0, AltM: 10}
	target := los.Position{Lat: 0, Lon: 1, AltM: 10}

	planar := los.NewLineOfSight(sampler, los.WithLineOfSightSamples(8))
	assert.True(t, planar.Visible(sensor, target))

	curved := los.NewLineOfSight(sampler,
		los.WithLineOfSightSamples(8),
		los.WithLineOfSightEarthRadius(los.StandardEffectiveEarthRadiusM),
	)
	assert.False(t, curved.Visible(sensor, target))

	profile := curved.Profile(sensor, target)
	assert.False(t, profile.Visible)
	midpoint := profile.Samples[3]
	assert.Equal(t, 0.5, midpoint.Fraction)
	halfDistanceM := profile.DistanceM / 2
	expectedDropM := halfDistanceM * halfDistanceM / (2 * los.StandardEffectiveEarthRadiusM)
	assert.True(t, math.Abs(10-expectedDropM-midpoint.LineM) < 1e-6)
}

func TestLineOfSightProfile(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	grid := newTestGrid(t, newTestAxis(t, 0, 1, 0.0625), newTestAxis(t, 0, 1, 0.0625), func(float64, float64) float64 {
		return 1000 * r.Float64()
	})
	sampler := los.NewElevationSampler(grid)
	lineOfSight := los.NewLineOfSight(sampler, los.WithLineOfSightSamples(64), los.WithLineOfSightMargin(25))
	sensor := los.Position{Lat: 0.5, Lon: 0.5, AltM: 900}

	visibleCount := 0
	for _, lat := range grid.Lats {
		for _, lon := range grid.Lons {
			target := los.Position{Lat: lat, Lon: lon, AltM: 1200}
			profile := lineOfSight.Profile(sensor, target)
			visible := lineOfSight.Visible(sensor, target)
			assert.Equal(t, visible, profile.Visible)
			if visible {
				visibleCount++
			}
			if lat == sensor.Lat && lon == sensor.Lon {
				assert.Equal(t, 0, len(profile.Samples))
				assert.True(t, math.IsInf(profile.MinClearance(), 1))
				continue
			}

			assert.Equal(t, 64, len(profile.Samples))
			last := profile.Samples[len(profile.Samples)-1]
			assert.Equal(t, 1.0, last.Fraction)
			assert.Equal(t, lat, last.Lat)
			assert.Equal(t, lon, last.Lon)
			assert.Equal(t, 1200.0, last.LineM)
			assert.Equal(t, visible, profile.MinClearance() >= 0)
			for _, sample := range profile.Samples {
				assert.Equal(t, sample.Clearance < 0, sample.Blocked)
			}
		}
	}
	assert.NotZero(t, visibleCount)
}

func TestBearingDeg(t *testing.T) {
	for _, tc := range []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
	}{
		{name: "north", lat2: 1, expected: 0},
		{name: "east", lon2: 1, expected: 90},
		{name: "south", lat2: -1, expected: 180},
		{name: "west", lon2: -1, expected: 270},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual := los.BearingDeg(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
			assert.True(t, math.Abs(tc.expected-actual) < 1e-9)
		})
	}
}

func TestGroundDistanceM(t *testing.T) {
	// One degree of latitude on a sphere of radius 6378137m.
	assert.True(t, math.Abs(111319.49-los.GroundDistanceM(0, 0, 1, 0)) < 1)
	assert.Equal(t, 0.0, los.GroundDistanceM(45, 7, 45, 7))
}
