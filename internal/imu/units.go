package imu

// Acceleration unit constants accepted by the HTTP API's units parameter.
const (
	UnitG   = "g"
	UnitMPS = "mps2"
	UnitMG  = "mg"
)

// ValidUnits contains all valid acceleration unit values.
var ValidUnits = []string{UnitG, UnitMPS, UnitMG}

// IsValidUnit checks if the given unit is in the list of valid units.
func IsValidUnit(unit string) bool {
	for _, valid := range ValidUnits {
		if unit == valid {
			return true
		}
	}
	return false
}

// ValidUnitsString returns a comma-separated string of valid units for error
// messages.
func ValidUnitsString() string {
	return "g, mps2, mg"
}

// ConvertAccel converts an acceleration from g to the target units.
// Samples are carried internally in g.
func ConvertAccel(accelG float64, targetUnits string) float64 {
	switch targetUnits {
	case UnitMPS:
		return accelG * StandardGravity
	case UnitMG:
		return accelG * 1000
	case UnitG:
		return accelG
	default:
		return accelG
	}
}
