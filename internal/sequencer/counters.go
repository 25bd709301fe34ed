package sequencer

import (
	"errors"
	"fmt"
	"strings"
)

// Group selector range.
const (
	MinGroup = 1
	MaxGroup = 6
)

// ErrSelectorOutOfRange means the group selector left 1..6, which only a
// counter-update bug can cause.
var ErrSelectorOutOfRange = errors.New("group selector out of range")

// Counters are the run-wide progress counters.
type Counters struct {
	ContainersRemaining int  `json:"containers_remaining"`
	ItemsRemaining      int  `json:"items_remaining"`
	GroupSelector       int  `json:"group_selector"`
	NewRound            bool `json:"new_round"`
	CalibratedHold      int  `json:"calibrated_hold"`
}

// countInteraction is applied when a counting sequence completes.
func (c *Counters) countInteraction() {
	c.ItemsRemaining--
	c.GroupSelector++
	if c.GroupSelector > MaxGroup {
		c.GroupSelector = MinGroup
	}
}

func (c Counters) checkSelector() error {
	if c.GroupSelector < MinGroup || c.GroupSelector > MaxGroup {
		return fmt.Errorf("%w: %d", ErrSelectorOutOfRange, c.GroupSelector)
	}
	return nil
}

// Policy decides when the save phase runs.
type Policy uint8

const (
	// PersistNever never saves.
	PersistNever Policy = iota
	// PersistEveryContainer saves after each finished container.
	PersistEveryContainer
	// PersistAtEnd saves once, after the last container.
	PersistAtEnd
)

var policyNames = map[Policy]string{
	PersistNever:          "never",
	PersistEveryContainer: "every_container",
	PersistAtEnd:          "at_end",
}

func (p Policy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParsePolicy accepts the policy names used in configuration files.
func ParsePolicy(s string) (Policy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid persist policy %q (must be never, every_container, or at_end)", s)
}

// Timing is one species' entry in the timing constants table.
type Timing struct {
	BaseCycles int
	Halved     bool
}

// TimingTable resolves species timing constants.
type TimingTable interface {
	Timing(species int) (Timing, error)
}

// RunConfig seeds a Machine.
type RunConfig struct {
	Species         int
	Containers      int
	InitialItems    int
	SubsequentItems int
	Persist         Policy
}

// Validate checks the run configuration.
func (c RunConfig) Validate() error {
	if c.Containers < 1 {
		return errors.New("containers must be >= 1")
	}
	if c.InitialItems < 0 {
		return errors.New("initial items must be >= 0")
	}
	if c.SubsequentItems < 0 {
		return errors.New("subsequent items must be >= 0")
	}
	if _, ok := policyNames[c.Persist]; !ok {
		return fmt.Errorf("invalid persist policy %d", c.Persist)
	}
	return nil
}
