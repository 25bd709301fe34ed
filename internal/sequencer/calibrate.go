package sequencer

import "math"

// Hold calibration coefficients, fitted against observed hatch times.
const (
	holdSlope     = 1.046
	holdIntercept = 32.583
)

// CalibratedHold converts a species' base cycle count into the number of
// ticks the confirm-pulsing rotation must run. The halved flag (a
// hatch-speed ability in the party) halves the base count first, using
// integer division.
func CalibratedHold(baseCycles int, halved bool) int {
	factor := baseCycles
	if halved {
		factor /= 2
	}
	return int(math.Round(holdSlope*float64(factor) - holdIntercept))
}
