// Package units provides shared constants and validation for length units
package units

import "strings"

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, IN}

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
	return strings.Join(ValidUnits, ", ")
}

// ToMillimetres converts a length in the given units to millimetres.
// Calibration lengths are always stored in millimetres.
func ToMillimetres(length float64, unit string) float64 {
	switch unit {
	case CM:
		return length * 10
	case M:
		return length * 1000
	case IN:
		return length * 25.4
	case MM:
		return length // no conversion needed
	default:
		return length // default to mm if unknown unit
	}
}

// FromMillimetres converts a length in millimetres to the given units.
func FromMillimetres(lengthMM float64, unit string) float64 {
	switch unit {
	case CM:
		return lengthMM / 10
	case M:
		return lengthMM / 1000
	case IN:
		return lengthMM / 25.4
	default:
		return lengthMM
	}
}
