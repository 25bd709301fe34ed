package sequencer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLibrary has every required sequence as a single one-tick press.
func testLibrary() MapLibrary {
	lib := MapLibrary{}
	for _, name := range RequiredSequences() {
		lib[name] = Sequence{{Do: PressA}}
	}
	return lib
}

type fakeTimings map[int]Timing

func (f fakeTimings) Timing(species int) (Timing, error) {
	t, ok := f[species]
	if !ok {
		return Timing{}, errors.New("unknown species")
	}
	return t, nil
}

var testTimings = fakeTimings{1: {BaseCycles: 50}}

func newTestMachine(t *testing.T, cfg RunConfig) *Machine {
	t.Helper()
	if cfg.Species == 0 {
		cfg.Species = 1
	}
	m, err := New(testLibrary(), testTimings, cfg)
	require.NoError(t, err)
	return m
}

type runLog struct {
	trace       []Phase
	transitions []Transition
}

// drive ticks m until it is done, checking the echo rule on every tick.
func drive(t *testing.T, m *Machine) runLog {
	t.Helper()

	log := runLog{trace: []Phase{m.Phase()}}
	var last Report
	pending := 0

	for i := 0; !m.Done(); i++ {
		if i > 2_000_000 {
			t.Fatalf("run did not finish; stuck in %s", m.Phase())
		}
		res, err := m.Tick()
		require.NoError(t, err)

		if res.Echo {
			require.Greater(t, pending, 0, "unexpected echo at tick %d", i)
			require.Equal(t, last, res.Report, "echo differs from held report")
			pending--
			continue
		}
		require.Zero(t, pending, "fresh report while %d echoes pending", pending)
		last = res.Report
		pending = EchoRepeats

		if res.Transition != nil {
			log.trace = append(log.trace, res.Transition.To)
			log.transitions = append(log.transitions, *res.Transition)
		}
	}

	for i := 0; i < pending; i++ {
		res, err := m.Tick()
		require.NoError(t, err)
		require.True(t, res.Echo)
		require.Equal(t, last, res.Report)
	}
	return log
}

func hatchLoop(g int) []Phase {
	return []Phase{
		PhaseSelectCol, grabPre[g-1], PhaseSelectCol2, grabPost[g-1],
		PhaseCloseBox, PhaseCircleCW,
	}
}

func TestMachine_SingleContainerSaveAtEnd(t *testing.T) {
	m := newTestMachine(t, RunConfig{Containers: 1, InitialItems: 1, Persist: PersistAtEnd})
	log := drive(t, m)

	want := []Phase{
		PhaseSyncController, PhaseBreathe, PhaseFlyToNursery, PhaseInOutNursery,
		PhaseGoToCircle1, PhaseCircle1, PhaseApproachNPC, PhaseSpeak,
		PhaseGoToCircle2, PhaseGoToCircle3, PhaseOpenBox,
	}
	want = append(want, hatchLoop(1)...)
	for g := 2; g <= MaxGroup; g++ {
		want = append(want, PhaseFlyToNursery, PhaseGoToCircle3, PhaseOpenBox)
		want = append(want, hatchLoop(g)...)
	}
	want = append(want, PhaseSave, PhaseSleep, PhaseDone)

	if diff := cmp.Diff(want, log.trace); diff != "" {
		t.Fatalf("phase trace (-want +got):\n%s", diff)
	}

	c := m.Counters()
	assert.Equal(t, 0, c.ContainersRemaining)
	assert.Equal(t, MinGroup, c.GroupSelector)
	assert.Equal(t, 20, c.CalibratedHold)
}

func TestMachine_PersistPolicies(t *testing.T) {
	count := func(trace []Phase, p Phase) int {
		n := 0
		for _, ph := range trace {
			if ph == p {
				n++
			}
		}
		return n
	}

	tests := []struct {
		name       string
		cfg        RunConfig
		wantSaves  int
		wantSpeaks int
	}{
		{"never", RunConfig{Containers: 1, InitialItems: 1, Persist: PersistNever}, 0, 1},
		{"at end, two containers", RunConfig{Containers: 2, InitialItems: 1, SubsequentItems: 1, Persist: PersistAtEnd}, 1, 2},
		{"every container", RunConfig{Containers: 2, InitialItems: 1, SubsequentItems: 1, Persist: PersistEveryContainer}, 2, 2},
		{"no items to collect", RunConfig{Containers: 1, InitialItems: 0, Persist: PersistAtEnd}, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMachine(t, tt.cfg)
			log := drive(t, m)

			assert.Equal(t, tt.wantSaves, count(log.trace, PhaseSave))
			assert.Equal(t, tt.wantSpeaks, count(log.trace, PhaseSpeak))
			assert.Equal(t, PhaseSleep, log.trace[len(log.trace)-2])
			assert.Equal(t, PhaseDone, log.trace[len(log.trace)-1])
		})
	}
}

func TestMachine_NewRoundSkipsCircle(t *testing.T) {
	m := newTestMachine(t, RunConfig{Containers: 2, InitialItems: 1, SubsequentItems: 1, Persist: PersistEveryContainer})
	log := drive(t, m)

	first := -1
	for i, p := range log.trace {
		if p == PhaseSave {
			first = i
			break
		}
	}
	require.NotEqual(t, -1, first)

	want := []Phase{PhaseSave, PhaseFlyToNursery, PhaseGoToCircle1, PhaseApproachNPC, PhaseSpeak}
	if diff := cmp.Diff(want, log.trace[first:first+len(want)]); diff != "" {
		t.Errorf("second container entry (-want +got):\n%s", diff)
	}
}

func TestMachine_CountersOnlyMoveAtKnownPoints(t *testing.T) {
	m := newTestMachine(t, RunConfig{Containers: 2, InitialItems: 2, SubsequentItems: 1, Persist: PersistAtEnd})
	prev := m.Counters()
	log := drive(t, m)

	for _, tr := range log.transitions {
		c := tr.Counters
		switch tr.From {
		case PhaseSpeak, PhaseCloseBox:
			wantGroup := prev.GroupSelector + 1
			if wantGroup > MaxGroup {
				wantGroup = MinGroup
			}
			assert.Equal(t, prev.ItemsRemaining-1, c.ItemsRemaining, "items after %s", tr.From)
			assert.Equal(t, wantGroup, c.GroupSelector, "group after %s", tr.From)
		case PhaseGoToCircle1, PhaseGoToCircle2:
			assert.Equal(t, prev.ItemsRemaining, c.ItemsRemaining)
			if c.GroupSelector != prev.GroupSelector {
				assert.Equal(t, MinGroup, c.GroupSelector)
			}
		case PhaseCircleCW:
			if c.ContainersRemaining != prev.ContainersRemaining {
				assert.Equal(t, prev.ContainersRemaining-1, c.ContainersRemaining)
				assert.Equal(t, 1, c.ItemsRemaining)
			} else {
				assert.Equal(t, prev.ItemsRemaining, c.ItemsRemaining)
			}
		default:
			assert.Equal(t, prev.ItemsRemaining, c.ItemsRemaining, "items moved leaving %s", tr.From)
			assert.Equal(t, prev.GroupSelector, c.GroupSelector, "group moved leaving %s", tr.From)
			assert.Equal(t, prev.ContainersRemaining, c.ContainersRemaining, "containers moved leaving %s", tr.From)
		}
		assert.GreaterOrEqual(t, c.GroupSelector, MinGroup)
		assert.LessOrEqual(t, c.GroupSelector, MaxGroup)
		prev = c
	}
}

func TestMachine_SequencePhaseLength(t *testing.T) {
	lib := testLibrary()
	lib[SeqWakeUp] = Sequence{{Do: PressB, Hold: 3}, {Do: Hang}, {Do: LUp, Hold: 5}}
	m, err := New(lib, testTimings, RunConfig{Species: 1, Containers: 1, Persist: PersistNever})
	require.NoError(t, err)

	// sync
	_, err = m.Tick()
	require.NoError(t, err)
	require.Equal(t, PhaseBreathe, m.Phase())

	fresh := 0
	for m.Phase() == PhaseBreathe {
		res, err := m.Tick()
		require.NoError(t, err)
		if !res.Echo {
			fresh++
		}
	}
	assert.Equal(t, lib[SeqWakeUp].Ticks(), fresh)
	assert.Equal(t, Cursor{}, m.Snapshot().Cursor)
}

func TestMachine_DoneEmitsNeutralWithoutEcho(t *testing.T) {
	m := newTestMachine(t, RunConfig{Containers: 1, Persist: PersistNever})
	drive(t, m)

	for i := 0; i < 5; i++ {
		res, err := m.Tick()
		require.NoError(t, err)
		assert.False(t, res.Echo)
		assert.Nil(t, res.Transition)
		assert.True(t, res.Report.IsNeutral())
		assert.Equal(t, PhaseDone, res.Phase)
	}
	assert.True(t, m.Snapshot().Done)
}

func TestMachine_SelectorOutOfRangeResets(t *testing.T) {
	for _, g := range []int{0, 7, -3} {
		m := newTestMachine(t, RunConfig{Containers: 1, InitialItems: 1, Persist: PersistAtEnd})
		m.phase = PhaseSelectCol
		m.counters.GroupSelector = g
		m.cursor = Cursor{Index: 0, Held: 0}
		m.rotation = 17

		_, err := m.Tick()
		require.ErrorIs(t, err, ErrSelectorOutOfRange)

		s := m.Snapshot()
		assert.Equal(t, PhaseSyncController, s.Phase)
		assert.Equal(t, MinGroup, s.Counters.GroupSelector)
		assert.Equal(t, Cursor{}, s.Cursor)
		assert.Zero(t, s.Rotation)
		assert.Zero(t, s.EchoRemaining)
	}
}

func TestMachine_UnknownSpecies(t *testing.T) {
	m, err := New(testLibrary(), testTimings, RunConfig{Species: 999, Containers: 1})
	require.NoError(t, err)

	_, err = m.Tick()
	require.Error(t, err)
	assert.Equal(t, PhaseSyncController, m.Phase())
}

func TestNew_Rejects(t *testing.T) {
	cfg := RunConfig{Species: 1, Containers: 1}

	incomplete := testLibrary()
	delete(incomplete, GrabSequence(6, false))
	_, err := New(incomplete, testTimings, cfg)
	assert.ErrorIs(t, err, ErrSequenceNotFound)

	_, err = New(nil, testTimings, cfg)
	assert.Error(t, err)

	_, err = New(testLibrary(), nil, cfg)
	assert.Error(t, err)

	_, err = New(testLibrary(), testTimings, RunConfig{Species: 1, Containers: 0})
	assert.Error(t, err)

	_, err = New(testLibrary(), testTimings, RunConfig{Species: 1, Containers: 1, Persist: Policy(9)})
	assert.Error(t, err)
}

func TestMachine_NextMatchesTick(t *testing.T) {
	a := newTestMachine(t, RunConfig{Containers: 1, InitialItems: 1})
	b := newTestMachine(t, RunConfig{Containers: 1, InitialItems: 1})

	for i := 0; i < 500; i++ {
		ra, err := a.Next()
		require.NoError(t, err)
		rb, err := b.Tick()
		require.NoError(t, err)
		require.Equal(t, rb.Report, ra, "tick %d", i)
	}
	assert.Equal(t, a.Snapshot(), b.Snapshot())
}

func TestParsePolicy(t *testing.T) {
	for _, s := range []string{"never", "EVERY_CONTAINER", "at_end"} {
		_, err := ParsePolicy(s)
		assert.NoError(t, err, s)
	}
	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}
