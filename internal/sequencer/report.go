// Package sequencer turns a library of named controller sequences plus a few
// run counters into a tick-by-tick stream of pad reports.
//
// Everything in this package is pure: no I/O, no goroutines, no logging.
// A Machine is one run; independent runs use independent Machines.
package sequencer

import (
	"encoding/binary"
	"fmt"
)

// Buttons is the report's button bitmask.
type Buttons uint16

const (
	ButtonY       Buttons = 0x0001
	ButtonB       Buttons = 0x0002
	ButtonA       Buttons = 0x0004
	ButtonX       Buttons = 0x0008
	ButtonL       Buttons = 0x0010
	ButtonR       Buttons = 0x0020
	ButtonZL      Buttons = 0x0040
	ButtonZR      Buttons = 0x0080
	ButtonMinus   Buttons = 0x0100
	ButtonPlus    Buttons = 0x0200
	ButtonLClick  Buttons = 0x0400
	ButtonRClick  Buttons = 0x0800
	ButtonHome    Buttons = 0x1000
	ButtonCapture Buttons = 0x2000
)

// Stick axis values.
const (
	StickMin    uint8 = 0
	StickCenter uint8 = 128
	StickMax    uint8 = 255
)

// HatCenter is the directional pad's released position.
const HatCenter uint8 = 0x08

// ReportSize is the length of the encoded report on the wire.
const ReportSize = 8

// Report is one controller snapshot.
type Report struct {
	Buttons Buttons
	Hat     uint8
	LX      uint8
	LY      uint8
	RX      uint8
	RY      uint8
}

// Neutral returns the only legal neutral report: sticks centered, pad
// centered, no buttons.
func Neutral() Report {
	return Report{
		Hat: HatCenter,
		LX:  StickCenter,
		LY:  StickCenter,
		RX:  StickCenter,
		RY:  StickCenter,
	}
}

// Reset overwrites r with the neutral report.
func (r *Report) Reset() {
	*r = Neutral()
}

// IsNeutral reports whether r equals Neutral().
func (r Report) IsNeutral() bool {
	return r == Neutral()
}

// MarshalBinary encodes the report in the pad's 8-byte input layout:
//
//	0-1: buttons (LE)
//	2:   hat
//	3-6: LX, LY, RX, RY
//	7:   vendor byte (always 0)
func (r Report) MarshalBinary() ([]byte, error) {
	b := make([]byte, ReportSize)
	r.put(b)
	return b, nil
}

// AppendBinary appends the encoded report to b.
func (r Report) AppendBinary(b []byte) []byte {
	var buf [ReportSize]byte
	r.put(buf[:])
	return append(b, buf[:]...)
}

func (r Report) put(b []byte) {
	binary.LittleEndian.PutUint16(b[0:2], uint16(r.Buttons))
	b[2] = r.Hat
	b[3] = r.LX
	b[4] = r.LY
	b[5] = r.RX
	b[6] = r.RY
	b[7] = 0
}

// UnmarshalBinary decodes an 8-byte input report.
func (r *Report) UnmarshalBinary(b []byte) error {
	if len(b) != ReportSize {
		return fmt.Errorf("report: want %d bytes, got %d", ReportSize, len(b))
	}
	r.Buttons = Buttons(binary.LittleEndian.Uint16(b[0:2]))
	r.Hat = b[2]
	r.LX = b[3]
	r.LY = b[4]
	r.RX = b[5]
	r.RY = b[6]
	return nil
}

func (r Report) String() string {
	return fmt.Sprintf("buttons=%#04x hat=%d L=(%d,%d) R=(%d,%d)", uint16(r.Buttons), r.Hat, r.LX, r.LY, r.RX, r.RY)
}
