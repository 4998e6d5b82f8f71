package los

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// minGroundDistanceM is the ground distance below which two positions are
// considered identical.
const minGroundDistanceM = 1e-3

// MeanEarthRadiusM is the mean radius of the Earth.
const MeanEarthRadiusM = 6371008.8

// StandardEffectiveEarthRadiusM is the effective Earth radius commonly used
// to approximate standard atmospheric refraction (the four-thirds Earth
// model).
const StandardEffectiveEarthRadiusM = 4.0 / 3.0 * MeanEarthRadiusM

func orbPoint(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// GroundDistanceM returns the great-circle distance between two points in
// meters.
func GroundDistanceM(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(orbPoint(lat1, lon1), orbPoint(lat2, lon2))
}

// BearingDeg returns the initial bearing from the first point to the second
// point in degrees clockwise from north, in [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	bearing := geo.Bearing(orbPoint(lat1, lon1), orbPoint(lat2, lon2))
	if bearing < 0 {
		bearing += 360
	}
	return bearing
}

// lerp linearly interpolates between a and b. It returns exactly a when s is
// 0 and exactly b when s is 1.
func lerp(a, b, s float64) float64 {
	return (1-s)*a + s*b
}

// curvatureDropM returns how far the surface of a sphere of radius
// earthRadiusM falls below the chord between two points distanceM apart, at
// fraction s along the chord. It is zero if earthRadiusM is zero.
func curvatureDropM(distanceM, s, earthRadiusM float64) float64 {
	if earthRadiusM <= 0 {
		return 0
	}
	x := s * distanceM
	return x * (distanceM - x) / (2 * earthRadiusM)
}
