package los

import "math"

// DefaultSamples is the default number of terrain samples along each line of
// sight.
const DefaultSamples = 400

// A Position is a point in three dimensions. Lat and Lon are WGS84 decimal
// degrees and AltM is meters above mean sea level.
type Position struct {
	Lat  float64
	Lon  float64
	AltM float64
}

// A LineOfSight tests whether terrain intercepts straight lines between
// positions.
//
// The line between two positions is sampled at n evenly spaced fractions k/n,
// for k = 1..n, so the last sample is the target itself. The sensor end
// (k = 0) is not sampled, so a sensor whose height above ground is less than
// the margin can still see targets. At each sample the ground position is
// interpolated linearly in latitude and longitude and the line's altitude
// linearly between the two altitudes. A sample is blocked if
// the terrain elevation plus the margin is strictly greater than the line's
// altitude.
type LineOfSight struct {
	sampler      Sampler
	samples      int
	marginM      float64
	earthRadiusM float64
}

// A LineOfSightOption sets an option on a LineOfSight.
type LineOfSightOption func(*LineOfSight)

// NewLineOfSight returns a new LineOfSight that samples terrain from sampler.
func NewLineOfSight(sampler Sampler, options ...LineOfSightOption) *LineOfSight {
	l := &LineOfSight{
		sampler: sampler,
		samples: DefaultSamples,
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// WithLineOfSightSamples sets the number of samples along each line. Values
// less than one are treated as one.
func WithLineOfSightSamples(samples int) LineOfSightOption {
	return func(l *LineOfSight) {
		l.samples = max(samples, 1)
	}
}

// WithLineOfSightMargin sets the clearance, in meters, added to the terrain
// elevation at every sample.
func WithLineOfSightMargin(marginM float64) LineOfSightOption {
	return func(l *LineOfSight) {
		l.marginM = marginM
	}
}

// WithLineOfSightEarthRadius enables the Earth curvature correction using
// the given (effective) Earth radius in meters. Zero disables it.
func WithLineOfSightEarthRadius(earthRadiusM float64) LineOfSightOption {
	return func(l *LineOfSight) {
		l.earthRadiusM = earthRadiusM
	}
}

// IsVisible returns whether target is visible from sensor over the terrain in
// sampler, using samples samples and a clearance of marginM meters.
func IsVisible(sampler Sampler, sensor, target Position, samples int, marginM float64) bool {
	return NewLineOfSight(
		sampler,
		WithLineOfSightSamples(samples),
		WithLineOfSightMargin(marginM),
	).Visible(sensor, target)
}

// Visible returns whether target is visible from sensor. Positions at the
// same ground position are always visible.
func (l *LineOfSight) Visible(sensor, target Position) bool {
	distanceM := GroundDistanceM(sensor.Lat, sensor.Lon, target.Lat, target.Lon)
	if distanceM < minGroundDistanceM {
		return true
	}
	n := float64(l.samples)
	for k := 1; k <= l.samples; k++ {
		s := float64(k) / n
		terrainM := l.sampler.ElevationAt(lerp(sensor.Lat, target.Lat, s), lerp(sensor.Lon, target.Lon, s))
		if terrainM+l.marginM > l.lineAltitudeM(sensor, target, distanceM, s) {
			return false
		}
	}
	return true
}

// A ProfileSample is one sample along a line of sight.
type ProfileSample struct {
	Fraction  float64 // Fraction of the distance from the sensor.
	Lat       float64
	Lon       float64
	TerrainM  float64 // Terrain elevation.
	LineM     float64 // Altitude of the line of sight.
	Clearance float64 // LineM - TerrainM - margin.
	Blocked   bool
}

// A Profile is the terrain profile along a line of sight.
type Profile struct {
	DistanceM  float64
	BearingDeg float64
	Samples    []ProfileSample
	Visible    bool
}

// MinClearance returns the smallest clearance of any sample in p, or +Inf if p
// has no samples.
func (p *Profile) MinClearance() float64 {
	minClearance := math.Inf(1)
	for _, sample := range p.Samples {
		minClearance = min(minClearance, sample.Clearance)
	}
	return minClearance
}

// Profile returns every sample along the line from sensor to target. Unlike
// Visible it does not stop at the first blocked sample.
func (l *LineOfSight) Profile(sensor, target Position) *Profile {
	distanceM := GroundDistanceM(sensor.Lat, sensor.Lon, target.Lat, target.Lon)
	profile := &Profile{
		DistanceM: distanceM,
		Visible:   true,
	}
	if distanceM < minGroundDistanceM {
		return profile
	}
	profile.BearingDeg = BearingDeg(sensor.Lat, sensor.Lon, target.Lat, target.Lon)
	profile.Samples = make([]ProfileSample, 0, l.samples)
	n := float64(l.samples)
	for k := 1; k <= l.samples; k++ {
		s := float64(k) / n
		sample := ProfileSample{
			Fraction: s,
			Lat:      lerp(sensor.Lat, target.Lat, s),
			Lon:      lerp(sensor.Lon, target.Lon, s),
			LineM:    l.lineAltitudeM(sensor, target, distanceM, s),
		}
		sample.TerrainM = l.sampler.ElevationAt(sample.Lat, sample.Lon)
		sample.Clearance = sample.LineM - sample.TerrainM - l.marginM
		sample.Blocked = sample.TerrainM+l.marginM > sample.LineM
		if sample.Blocked {
			profile.Visible = false
		}
		profile.Samples = append(profile.Samples, sample)
	}
	return profile
}

// lineAltitudeM returns the altitude of the line of sight at fraction s.
func (l *LineOfSight) lineAltitudeM(sensor, target Position, distanceM, s float64) float64 {
	return lerp(sensor.AltM, target.AltM, s) - curvatureDropM(distanceM, s, l.earthRadiusM)
}
