package sequencer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStepper_TicksEqualSumOfHoldsPlusOne(t *testing.T) {
	tests := []struct {
		name string
		seq  Sequence
	}{
		{"single zero hold", Sequence{{Do: PressA}}},
		{"single long hold", Sequence{{Do: LLeft, Hold: 9}}},
		{"mixed", Sequence{{Do: PressB, Hold: 3}, {Do: Hang}, {Do: LUp, Hold: 5}}},
		{"all zero", Sequence{{Do: PressA}, {Do: PressB}, {Do: PressX}, {Do: PressY}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cur Cursor
			s := stepper{seq: tt.seq, cursor: &cur}

			n := 0
			for {
				n++
				r := Neutral()
				if s.emit(&r) {
					if !r.IsNeutral() {
						t.Errorf("final tick report = %v, want neutral", r)
					}
					break
				}
				if n > 1000 {
					t.Fatal("stepper never completed")
				}
			}
			if n != tt.seq.Ticks() {
				t.Errorf("completed after %d ticks, want %d", n, tt.seq.Ticks())
			}
			if cur != (Cursor{}) {
				t.Errorf("cursor after completion = %+v, want zero", cur)
			}
		})
	}
}

func TestStepper_EmitsEachStepForItsHold(t *testing.T) {
	seq := Sequence{{Do: PressA, Hold: 1}, {Do: PressB, Hold: 2}, {Do: Hang}}
	var cur Cursor
	s := stepper{seq: seq, cursor: &cur}

	var got []Buttons
	for {
		r := Neutral()
		done := s.emit(&r)
		got = append(got, r.Buttons)
		if done {
			break
		}
	}

	want := []Buttons{ButtonA, ButtonA, ButtonB, ButtonB, ButtonB, 0}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("buttons per tick (-want +got):\n%s", diff)
	}
}

func TestMapLibrary_Errors(t *testing.T) {
	lib := MapLibrary{"empty": Sequence{}, "ok": Sequence{{Do: Hang}}}

	if _, err := lib.Sequence("missing"); !errors.Is(err, ErrSequenceNotFound) {
		t.Errorf("missing: err = %v, want ErrSequenceNotFound", err)
	}
	if _, err := lib.Sequence("empty"); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("empty: err = %v, want ErrEmptySequence", err)
	}
	if _, err := lib.Sequence("ok"); err != nil {
		t.Errorf("ok: unexpected err %v", err)
	}
	if diff := cmp.Diff([]string{"empty", "ok"}, lib.Names()); diff != "" {
		t.Errorf("Names (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	lib := testLibrary()
	if err := Validate(lib); err != nil {
		t.Fatalf("complete library: %v", err)
	}

	delete(lib, SeqSleep)
	if err := Validate(lib); !errors.Is(err, ErrSequenceNotFound) {
		t.Errorf("missing sleep: err = %v, want ErrSequenceNotFound", err)
	}

	lib = testLibrary()
	lib[GrabSequence(4, true)] = Sequence{}
	if err := Validate(lib); !errors.Is(err, ErrEmptySequence) {
		t.Errorf("empty grab: err = %v, want ErrEmptySequence", err)
	}
}
