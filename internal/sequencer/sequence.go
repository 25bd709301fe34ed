package sequencer

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrSequenceNotFound is returned when a library has no sequence by that name.
	ErrSequenceNotFound = errors.New("sequence not found")

	// ErrEmptySequence is returned for a sequence with no steps.
	ErrEmptySequence = errors.New("sequence has no steps")
)

// Step holds one directive for Hold+1 machine ticks.
type Step struct {
	Do   Directive `yaml:"do" json:"do"`
	Hold int       `yaml:"hold" json:"hold"`
}

// Sequence is an ordered, immutable list of steps.
type Sequence []Step

// Ticks returns how many machine ticks the sequence takes from entry to
// completion.
func (s Sequence) Ticks() int {
	n := 0
	for _, st := range s {
		n += st.Hold + 1
	}
	return n
}

// Library resolves sequence names.
type Library interface {
	Sequence(name string) (Sequence, error)
}

// MapLibrary is a Library backed by a map.
type MapLibrary map[string]Sequence

// Sequence implements Library.
func (l MapLibrary) Sequence(name string) (Sequence, error) {
	seq, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSequenceNotFound, name)
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptySequence, name)
	}
	return seq, nil
}

// Names returns the sequence names in sorted order.
func (l MapLibrary) Names() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cursor is the stepper position inside the active sequence.
type Cursor struct {
	Index int
	Held  int
}

// stepper runs one tabulated sequence against a cursor.
type stepper struct {
	seq    Sequence
	cursor *Cursor
}

// emit applies exactly one step's directive and advances the cursor. It
// reports true once the cursor has moved past the last step; at that point
// the cursor is back at zero and r has been reset.
func (s stepper) emit(r *Report) bool {
	c := s.cursor
	step := s.seq[c.Index]
	step.Do.Apply(r)
	c.Held++

	if c.Held > step.Hold {
		c.Index++
		c.Held = 0
	}

	if c.Index > len(s.seq)-1 {
		*c = Cursor{}
		r.Reset()
		return true
	}
	return false
}

func (s stepper) reset() {
	*s.cursor = Cursor{}
}
