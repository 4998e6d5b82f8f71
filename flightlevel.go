package los

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	feetPerFlightLevel = 100
	metersPerFoot      = 0.3048
)

// A FlightLevel is an altitude in hundreds of feet, e.g. FL50 is 5000 feet.
type FlightLevel float64

// StandardFlightLevels are the flight levels evaluated by default.
var StandardFlightLevels = []FlightLevel{5, 10, 20, 50, 100, 200, 300, 400}

// AltitudeM returns the altitude of fl in meters. It does not check that fl
// is valid.
func (fl FlightLevel) AltitudeM() float64 {
	return float64(fl) * feetPerFlightLevel * metersPerFoot
}

// Valid returns whether fl is positive and finite.
func (fl FlightLevel) Valid() bool {
	return fl > 0 && isFinite(float64(fl))
}

func (fl FlightLevel) String() string {
	return "FL" + strconv.FormatFloat(float64(fl), 'f', -1, 64)
}

// AltitudeM returns the altitude of fl in meters, or an error wrapping
// ErrInvalidFlightLevel if fl is not positive and finite.
func AltitudeM(fl FlightLevel) (float64, error) {
	if !fl.Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFlightLevel, float64(fl))
	}
	return fl.AltitudeM(), nil
}

// ValidateFlightLevels returns an error describing every invalid or
// duplicate flight level in flightLevels, or nil if there are none.
func ValidateFlightLevels(flightLevels []FlightLevel) error {
	if len(flightLevels) == 0 {
		return fmt.Errorf("%w: no flight levels", ErrInvalidFlightLevel)
	}
	var errs []error
	seen := make(map[FlightLevel]struct{}, len(flightLevels))
	for _, fl := range flightLevels {
		if _, err := AltitudeM(fl); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := seen[fl]; ok {
			errs = append(errs, fmt.Errorf("%w: duplicate %s", ErrInvalidFlightLevel, fl))
			continue
		}
		seen[fl] = struct{}{}
	}
	return errors.Join(errs...)
}
