package sequencer

import "fmt"

// Sequence names the phase table references.
const (
	SeqWakeUp       = "wake_up"
	SeqFlyToNursery = "fly_to_nursery"
	SeqInOutNursery = "in_out_nursery"
	SeqGoToCircle1  = "go_to_circle1"
	SeqApproach     = "approach"
	SeqSpeak        = "speak"
	SeqGoToCircle2  = "go_to_circle2"
	SeqGoToCircle3  = "go_to_circle3"
	SeqOpenBox      = "open_box"
	SeqSelectCol    = "select_col"
	SeqCloseBox     = "close_box"
	SeqSaveGame     = "save_game"
	SeqSleep        = "sleep"
)

// GrabSequence returns the name of the pre or post grab sequence for group g.
func GrabSequence(g int, post bool) string {
	if post {
		return fmt.Sprintf("grab_eggs%d_post", g)
	}
	return fmt.Sprintf("grab_eggs%d_pre", g)
}

// RequiredSequences lists every sequence name the phase table can step.
func RequiredSequences() []string {
	names := []string{
		SeqWakeUp, SeqFlyToNursery, SeqInOutNursery, SeqGoToCircle1,
		SeqApproach, SeqSpeak, SeqGoToCircle2, SeqGoToCircle3, SeqOpenBox,
		SeqSelectCol, SeqCloseBox, SeqSaveGame, SeqSleep,
	}
	for g := MinGroup; g <= MaxGroup; g++ {
		names = append(names, GrabSequence(g, false), GrabSequence(g, true))
	}
	return names
}

// Validate fails if lib lacks, or has an empty, sequence for any name the
// phase table references.
func Validate(lib Library) error {
	for _, name := range RequiredSequences() {
		if _, err := lib.Sequence(name); err != nil {
			return err
		}
	}
	return nil
}

// plan is what the current phase does on this tick.
type plan struct {
	// jump moves straight to next without emitting anything.
	jump bool
	next Phase

	seq      string
	counting bool

	rot  *rotation
	exit func(c *Counters, cfg RunConfig) Phase
}

type rule func(c *Counters, cfg RunConfig) (plan, error)

var (
	grabPre = [MaxGroup]Phase{
		PhaseGrabEggs1Pre, PhaseGrabEggs2Pre, PhaseGrabEggs3Pre,
		PhaseGrabEggs4Pre, PhaseGrabEggs5Pre, PhaseGrabEggs6Pre,
	}
	grabPost = [MaxGroup]Phase{
		PhaseGrabEggs1Post, PhaseGrabEggs2Post, PhaseGrabEggs3Post,
		PhaseGrabEggs4Post, PhaseGrabEggs5Post, PhaseGrabEggs6Post,
	}
)

// rules maps each scripted or procedural phase to its behaviour.
// sync_controller and done are handled by the Machine itself.
var rules = func() map[Phase]rule {
	r := map[Phase]rule{
		PhaseBreathe:      scripted(SeqWakeUp, PhaseFlyToNursery),
		PhaseFlyToNursery: flyToNursery,
		PhaseInOutNursery: scripted(SeqInOutNursery, PhaseGoToCircle1),
		PhaseGoToCircle1:  goToCircle1,
		PhaseCircle1:      procedural(&circleRotation, func(*Counters, RunConfig) Phase { return PhaseApproachNPC }),
		PhaseApproachNPC:  approachNPC,
		PhaseSpeak:        counting(SeqSpeak, PhaseGoToCircle2),
		PhaseGoToCircle2:  goToCircle2,
		PhaseGoToCircle3:  scripted(SeqGoToCircle3, PhaseOpenBox),
		PhaseOpenBox:      scripted(SeqOpenBox, PhaseSelectCol),
		PhaseSelectCol:    byGroup(SeqSelectCol, grabPre),
		PhaseSelectCol2:   byGroup(SeqSelectCol, grabPost),
		PhaseCloseBox:     counting(SeqCloseBox, PhaseCircleCW),
		PhaseCircleCW:     procedural(&circleCWRotation, afterHatch),
		PhaseSave:         save,
		PhaseSleep:        scripted(SeqSleep, PhaseDone),
	}
	for i := range grabPre {
		r[grabPre[i]] = scripted(GrabSequence(i+1, false), PhaseSelectCol2)
		r[grabPost[i]] = scripted(GrabSequence(i+1, true), PhaseCloseBox)
	}
	return r
}()

func scripted(seq string, next Phase) rule {
	return func(*Counters, RunConfig) (plan, error) {
		return plan{seq: seq, next: next}, nil
	}
}

func counting(seq string, next Phase) rule {
	return func(*Counters, RunConfig) (plan, error) {
		return plan{seq: seq, next: next, counting: true}, nil
	}
}

// byGroup steps seq and continues to the target picked by the group selector.
func byGroup(seq string, targets [MaxGroup]Phase) rule {
	return func(c *Counters, _ RunConfig) (plan, error) {
		if err := c.checkSelector(); err != nil {
			return plan{}, err
		}
		return plan{seq: seq, next: targets[c.GroupSelector-1]}, nil
	}
}

func procedural(rot *rotation, exit func(*Counters, RunConfig) Phase) rule {
	return func(*Counters, RunConfig) (plan, error) {
		return plan{rot: rot, exit: exit}, nil
	}
}

func jump(next Phase) plan {
	return plan{jump: true, next: next}
}

func flyToNursery(c *Counters, _ RunConfig) (plan, error) {
	switch {
	case c.GroupSelector > 1:
		return plan{seq: SeqFlyToNursery, next: PhaseGoToCircle3}, nil
	case c.NewRound:
		return plan{seq: SeqFlyToNursery, next: PhaseGoToCircle1}, nil
	default:
		return plan{seq: SeqFlyToNursery, next: PhaseInOutNursery}, nil
	}
}

func goToCircle1(c *Counters, _ RunConfig) (plan, error) {
	switch {
	case c.NewRound && c.ItemsRemaining > 0:
		return plan{seq: SeqGoToCircle1, next: PhaseApproachNPC}, nil
	case c.ItemsRemaining > 0:
		return plan{seq: SeqGoToCircle1, next: PhaseCircle1}, nil
	default:
		c.GroupSelector = MinGroup
		return jump(PhaseGoToCircle3), nil
	}
}

func approachNPC(c *Counters, _ RunConfig) (plan, error) {
	c.NewRound = false
	return plan{seq: SeqApproach, next: PhaseSpeak}, nil
}

func goToCircle2(c *Counters, _ RunConfig) (plan, error) {
	if c.ItemsRemaining >= 1 {
		return plan{seq: SeqGoToCircle2, next: PhaseCircle1}, nil
	}
	c.GroupSelector = MinGroup
	return jump(PhaseGoToCircle3), nil
}

func save(c *Counters, _ RunConfig) (plan, error) {
	if c.ContainersRemaining > 0 {
		c.NewRound = true
		return plan{seq: SeqSaveGame, next: PhaseFlyToNursery}, nil
	}
	return plan{seq: SeqSaveGame, next: PhaseSleep}, nil
}

// afterHatch runs when the confirm-pulsing rotation exits. The selector is
// back on the first group only after the container's last group was counted,
// so that is when the container is closed out.
func afterHatch(c *Counters, cfg RunConfig) Phase {
	if c.GroupSelector != MinGroup {
		return PhaseFlyToNursery
	}

	c.ItemsRemaining = cfg.SubsequentItems
	c.ContainersRemaining--

	switch {
	case cfg.Persist == PersistEveryContainer,
		cfg.Persist == PersistAtEnd && c.ContainersRemaining <= 0:
		return PhaseSave
	case c.ContainersRemaining > 0:
		c.NewRound = true
		return PhaseFlyToNursery
	default:
		return PhaseSleep
	}
}
