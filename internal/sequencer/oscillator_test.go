package sequencer

import "testing"

func directionOf(t *testing.T, r Report, order [4]Directive) int {
	t.Helper()
	for i, d := range order {
		want := Neutral()
		d.Apply(&want)
		if r.LX == want.LX && r.LY == want.LY {
			return i
		}
	}
	t.Fatalf("report %v matches no rotation direction", r)
	return -1
}

func TestOscillator_QuadrantsAreContiguousAndOrdered(t *testing.T) {
	for _, rot := range []*rotation{&circleRotation, &circleCWRotation} {
		count := 0
		o := oscillator{rot: rot, count: &count, counters: Counters{CalibratedHold: 1000}}

		dirs := make([]int, 0, 300)
		for n := 1; n <= 300; n++ {
			r := Neutral()
			o.emit(&r)
			dirs = append(dirs, directionOf(t, r, rot.order))
		}

		// dirs[i] belongs to tick i+1
		for i, d := range dirs {
			if want := ((i + 1) % RotationTicks) / quadrantTicks; d != want {
				t.Fatalf("tick %d: direction %d, want %d", i+1, d, want)
			}
		}

		// every full turn spends exactly 12 ticks per direction, in one run each
		for start := 0; start+RotationTicks <= len(dirs); start += 7 {
			window := dirs[start : start+RotationTicks]
			var seen [4]int
			runs := 1
			for i, d := range window {
				seen[d]++
				if i > 0 && d != window[i-1] {
					runs++
				}
			}
			for d, n := range seen {
				if n != quadrantTicks {
					t.Fatalf("window at %d: direction %d held %d ticks", start, d, n)
				}
			}
			if runs > 5 {
				t.Fatalf("window at %d: %d runs, directions not contiguous", start, runs)
			}
		}
	}
}

func TestOscillator_ConfirmPulse(t *testing.T) {
	count := 0
	o := oscillator{rot: &circleCWRotation, count: &count, counters: Counters{CalibratedHold: 1000}}
	for n := 1; n <= 200; n++ {
		r := Neutral()
		o.emit(&r)
		pressed := r.Buttons&ButtonA != 0
		if want := n%PulsePeriod < PulseWidth; pressed != want {
			t.Fatalf("tick %d: A pressed = %v, want %v", n, pressed, want)
		}
	}

	count = 0
	plain := oscillator{rot: &circleRotation, count: &count}
	for n := 1; n <= 48; n++ {
		r := Neutral()
		plain.emit(&r)
		if r.Buttons != 0 {
			t.Fatalf("tick %d: circle1 pressed buttons %v", n, r.Buttons)
		}
	}
}

func TestOscillator_ExitsAfterLimit(t *testing.T) {
	tests := []struct {
		name  string
		rot   *rotation
		c     Counters
		exits int
	}{
		{"circle1", &circleRotation, Counters{}, CircleTicks + 1},
		{"circle_cw", &circleCWRotation, Counters{CalibratedHold: 20}, 20 + HoldMargin + 1},
		{"circle_cw negative hold", &circleCWRotation, Counters{CalibratedHold: -6}, HoldMargin - 6 + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := 0
			o := oscillator{rot: tt.rot, count: &count, counters: tt.c}
			n := 0
			for {
				n++
				r := Neutral()
				if o.emit(&r) {
					break
				}
			}
			if n != tt.exits {
				t.Errorf("exited on tick %d, want %d", n, tt.exits)
			}
			o.reset()
			if count != 0 {
				t.Errorf("count after reset = %d", count)
			}
		})
	}
}
