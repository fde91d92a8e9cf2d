// Package units provides shared constants and validation for speed units
package units

// Unit constants
const (
	MPS   = "mps"
	Knots = "knots"
	KMPH  = "kmph"
	KPH   = "kph"
)

// MetersPerSecondToKnots is the conversion factor for nautical speeds.
const MetersPerSecondToKnots = 1.9438444924406

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, Knots, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, knots, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target
// units. The store always holds speeds in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case Knots:
		return speedMPS * MetersPerSecondToKnots
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPS:
		return speedMPS
	default:
		return speedMPS
	}
}
