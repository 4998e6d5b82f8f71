package los

import "errors"

var (
	// ErrInvalidTerrainGrid is returned when a terrain grid's axes are not
	// strictly monotonic, its elevations do not match the axes, or any value
	// is not finite.
	ErrInvalidTerrainGrid = errors.New("invalid terrain grid")

	// ErrInvalidFlightLevel is returned for flight levels that are not
	// positive and finite, and for duplicate flight levels.
	ErrInvalidFlightLevel = errors.New("invalid flight level")

	// ErrInvalidSensor is returned when a sensor's position is not finite or
	// its height above ground is negative.
	ErrInvalidSensor = errors.New("invalid sensor")

	// ErrInvalidSamples is returned for sample counts less than one and for
	// negative or non-finite margins.
	ErrInvalidSamples = errors.New("invalid sampling parameters")

	// ErrShapeMismatch is returned when combining masks of different shapes.
	ErrShapeMismatch = errors.New("shape mismatch")
)
