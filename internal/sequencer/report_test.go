package sequencer

import (
	"bytes"
	"testing"
)

func TestReset_AlwaysNeutral(t *testing.T) {
	dirty := []Report{
		{},
		{Buttons: ButtonA | ButtonHome, Hat: 2, LX: 0, LY: 255, RX: 7, RY: 9},
		{Buttons: 0xffff, Hat: 0xff, LX: 255, LY: 255, RX: 255, RY: 255},
	}
	for _, r := range dirty {
		r.Reset()
		if r.Buttons != 0 || r.LX != StickCenter || r.LY != StickCenter ||
			r.RX != StickCenter || r.RY != StickCenter || r.Hat != HatCenter {
			t.Errorf("Reset() = %v, want neutral", r)
		}
		if !r.IsNeutral() {
			t.Errorf("IsNeutral() = false after Reset")
		}
	}
}

func TestReport_MarshalBinaryLayout(t *testing.T) {
	r := Report{Buttons: ButtonA | ButtonHome, Hat: HatCenter, LX: 0, LY: 255, RX: 128, RY: 100}

	got, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	want := []byte{0x04, 0x10, 0x08, 0x00, 0xff, 0x80, 0x64, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("MarshalBinary = % x, want % x", got, want)
	}

	var back Report
	if err := back.UnmarshalBinary(got); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if back != r {
		t.Errorf("UnmarshalBinary = %v, want %v", back, r)
	}

	if app := r.AppendBinary([]byte{0xaa}); !bytes.Equal(app[1:], want) || app[0] != 0xaa {
		t.Errorf("AppendBinary = % x", app)
	}
}

func TestReport_UnmarshalBinaryRejectsShortInput(t *testing.T) {
	var r Report
	if err := r.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for 3-byte input")
	}
}
