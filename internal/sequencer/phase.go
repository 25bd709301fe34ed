package sequencer

import "fmt"

// Phase is a point in the incubation procedure.
type Phase uint8

const (
	PhaseSyncController Phase = iota
	PhaseBreathe
	PhaseFlyToNursery
	PhaseInOutNursery
	PhaseGoToCircle1
	PhaseCircle1
	PhaseApproachNPC
	PhaseSpeak
	PhaseGoToCircle2
	PhaseGoToCircle3
	PhaseOpenBox
	PhaseSelectCol
	PhaseGrabEggs1Pre
	PhaseGrabEggs2Pre
	PhaseGrabEggs3Pre
	PhaseGrabEggs4Pre
	PhaseGrabEggs5Pre
	PhaseGrabEggs6Pre
	PhaseSelectCol2
	PhaseGrabEggs1Post
	PhaseGrabEggs2Post
	PhaseGrabEggs3Post
	PhaseGrabEggs4Post
	PhaseGrabEggs5Post
	PhaseGrabEggs6Post
	PhaseCloseBox
	PhaseCircleCW
	PhaseSave
	PhaseSleep
	PhaseDone

	phaseCount
)

var phaseNames = [phaseCount]string{
	PhaseSyncController: "sync_controller",
	PhaseBreathe:        "breathe",
	PhaseFlyToNursery:   "fly_to_nursery",
	PhaseInOutNursery:   "in_out_nursery",
	PhaseGoToCircle1:    "go_to_circle1",
	PhaseCircle1:        "circle1",
	PhaseApproachNPC:    "approach_npc",
	PhaseSpeak:          "speak",
	PhaseGoToCircle2:    "go_to_circle2",
	PhaseGoToCircle3:    "go_to_circle3",
	PhaseOpenBox:        "open_box",
	PhaseSelectCol:      "select_col",
	PhaseGrabEggs1Pre:   "grab_eggs1_pre",
	PhaseGrabEggs2Pre:   "grab_eggs2_pre",
	PhaseGrabEggs3Pre:   "grab_eggs3_pre",
	PhaseGrabEggs4Pre:   "grab_eggs4_pre",
	PhaseGrabEggs5Pre:   "grab_eggs5_pre",
	PhaseGrabEggs6Pre:   "grab_eggs6_pre",
	PhaseSelectCol2:     "select_col2",
	PhaseGrabEggs1Post:  "grab_eggs1_post",
	PhaseGrabEggs2Post:  "grab_eggs2_post",
	PhaseGrabEggs3Post:  "grab_eggs3_post",
	PhaseGrabEggs4Post:  "grab_eggs4_post",
	PhaseGrabEggs5Post:  "grab_eggs5_post",
	PhaseGrabEggs6Post:  "grab_eggs6_post",
	PhaseCloseBox:       "close_box",
	PhaseCircleCW:       "circle_cw",
	PhaseSave:           "save",
	PhaseSleep:          "sleep",
	PhaseDone:           "done",
}

func (p Phase) String() string {
	if p < phaseCount {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	v, err := ParsePhase(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParsePhase returns the phase with the given name.
func ParsePhase(name string) (Phase, error) {
	for p, n := range phaseNames {
		if n == name {
			return Phase(p), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

// Phases returns every phase in procedure order.
func Phases() []Phase {
	ps := make([]Phase, phaseCount)
	for i := range ps {
		ps[i] = Phase(i)
	}
	return ps
}
