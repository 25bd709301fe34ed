package sequencer

// Rotation geometry: one full stick turn every RotationTicks, split into
// four equal quadrants. The confirm pulse fires on the first PulseWidth
// ticks of every PulsePeriod.
const (
	RotationTicks = 48
	quadrantTicks = RotationTicks / 4
	PulsePeriod   = 24
	PulseWidth    = 6
)

// Oscillator exit budgets.
const (
	// CircleTicks is how long the time-passing rotation runs.
	CircleTicks = 350

	// HoldMargin is added to the calibrated hold so the final confirm pulse
	// is never cut short.
	HoldMargin = 4200
)

// waveform is a per-tick source of report content. Tabulated sequences and
// procedural rotations both implement it.
type waveform interface {
	emit(r *Report) bool
	reset()
}

// rotation describes one procedural phase.
type rotation struct {
	order [4]Directive
	pulse bool
	// limit returns the tick count the phase must exceed before it exits.
	limit func(c Counters) int
}

var (
	// counter-clockwise, passes time only
	circleRotation = rotation{
		order: [4]Directive{LLeft, LDown, LRight, LUp},
		limit: func(Counters) int { return CircleTicks },
	}

	// clockwise, pulses confirm while passing time
	circleCWRotation = rotation{
		order: [4]Directive{LRight, LDown, LLeft, LUp},
		pulse: true,
		limit: func(c Counters) int { return c.CalibratedHold + HoldMargin },
	}
)

// oscillator evaluates a rotation from a tick counter.
type oscillator struct {
	rot      *rotation
	count    *int
	counters Counters
}

func (o oscillator) emit(r *Report) bool {
	*o.count++
	n := *o.count

	o.rot.order[quadrant(n)].Apply(r)
	if o.rot.pulse && n%PulsePeriod < PulseWidth {
		PressA.Apply(r)
	}
	return n > o.rot.limit(o.counters)
}

func (o oscillator) reset() {
	*o.count = 0
}

// quadrant returns which of the four rotation directions is active on tick n.
func quadrant(n int) int {
	return (n % RotationTicks) / quadrantTicks
}
