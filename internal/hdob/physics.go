package hdob

import "math"

// Standard atmosphere and unit constants.
const (
	Gravity      = 9.80665   // m/s^2
	GasConstDry  = 287.05    // J/(kg K)
	LapseRate    = 0.0065    // K/m
	SeaLevelHPa  = 1013.25   // ISA sea-level pressure
	SeaLevelTemp = 288.15    // ISA sea-level temperature, K
	CelsiusToK   = 273.15
	KnotsPerMS   = 1.9438444924406
)

// extrapolationFloorHPa is the static pressure at or above which XXXX carries
// an extrapolated surface pressure instead of a D-value.
const extrapolationFloorHPa = 550.0

// ISAHeight returns the height in metres of the given pressure level in the
// ICAO standard atmosphere, clamped at zero.
func ISAHeight(pressHPa float64) float64 {
	expo := GasConstDry * LapseRate / Gravity
	z := SeaLevelTemp / LapseRate * (1 - math.Pow(pressHPa/SeaLevelHPa, expo))
	return math.Max(0, z)
}

// DValue is the geopotential altitude minus the standard-atmosphere height
// of the static pressure, in metres.
func DValue(altM, pressHPa float64) float64 {
	return altM - ISAHeight(pressHPa)
}

// SurfacePressure reduces a flight-level pressure to sea level with the
// hypsometric equation, using the mean temperature of the layer below the
// aircraft. A nil temperature falls back to the ISA temperature at that
// pressure level. ok is false when the layer temperature is not physical.
func SurfacePressure(pressHPa, altM float64, tempC *float64) (p0 float64, ok bool) {
	var tz float64
	if tempC == nil {
		tz = SeaLevelTemp - LapseRate*ISAHeight(pressHPa)
	} else {
		tz = *tempC + CelsiusToK
	}
	tbar := tz + 0.5*LapseRate*altM
	if tbar <= 0 {
		return 0, false
	}
	return pressHPa * math.Exp(Gravity*altM/(GasConstDry*tbar)), true
}
