package sequencer

import (
	"errors"
	"fmt"
)

// Transition records a phase change.
type Transition struct {
	From     Phase    `json:"from"`
	To       Phase    `json:"to"`
	Tick     uint64   `json:"tick"`
	Counters Counters `json:"counters"`
}

// TickResult is what one call to Tick produced.
type TickResult struct {
	Report Report
	// Echo is true when Report was replayed from the echo buffer and the
	// phase table was not consulted.
	Echo  bool
	Phase Phase
	// Transition is set when the phase changed on this tick.
	Transition *Transition
}

// Snapshot is a copy of a Machine's state.
type Snapshot struct {
	Phase         Phase    `json:"phase"`
	Counters      Counters `json:"counters"`
	Cursor        Cursor   `json:"cursor"`
	Rotation      int      `json:"rotation"`
	EchoRemaining int      `json:"echo_remaining"`
	Ticks         uint64   `json:"ticks"`
	PhaseTicks    uint64   `json:"phase_ticks"`
	Done          bool     `json:"done"`
}

// Machine is the phase state machine for one run. It is not safe for
// concurrent use; a single owner calls Tick once per transport-ready event.
type Machine struct {
	lib     Library
	timings TimingTable
	cfg     RunConfig

	phase    Phase
	counters Counters
	cursor   Cursor
	rotation int
	echo     echoBuffer

	// ticks counts every call; phaseTicks only the ones that consulted the
	// phase table.
	ticks      uint64
	phaseTicks uint64
}

// New builds a Machine at the entry phase. The library is checked for every
// sequence the phase table can reach.
func New(lib Library, timings TimingTable, cfg RunConfig) (*Machine, error) {
	if lib == nil {
		return nil, errors.New("sequencer: nil library")
	}
	if timings == nil {
		return nil, errors.New("sequencer: nil timing table")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sequencer: %w", err)
	}
	if err := Validate(lib); err != nil {
		return nil, fmt.Errorf("sequencer: %w", err)
	}

	m := &Machine{
		lib:     lib,
		timings: timings,
		cfg:     cfg,
	}
	m.counters = Counters{
		ContainersRemaining: cfg.Containers,
		ItemsRemaining:      cfg.InitialItems,
		GroupSelector:       MinGroup,
	}
	return m, nil
}

// Phase returns the active phase.
func (m *Machine) Phase() Phase { return m.phase }

// Counters returns a copy of the run counters.
func (m *Machine) Counters() Counters { return m.counters }

// Done reports whether the run reached its terminal phase.
func (m *Machine) Done() bool { return m.phase == PhaseDone }

// Snapshot returns a copy of the machine state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Phase:         m.phase,
		Counters:      m.counters,
		Cursor:        m.cursor,
		Rotation:      m.rotation,
		EchoRemaining: m.echo.remaining,
		Ticks:         m.ticks,
		PhaseTicks:    m.phaseTicks,
		Done:          m.Done(),
	}
}

// Next produces the report for one tick.
func (m *Machine) Next() (Report, error) {
	res, err := m.Tick()
	return res.Report, err
}

// Tick produces the report for one tick. Pending echoes are served first;
// otherwise the active phase runs once and its report is captured for
// echoing. A non-nil error is fatal for the run: the machine has already
// been reset to the entry phase.
func (m *Machine) Tick() (TickResult, error) {
	m.ticks++

	if r, ok := m.echo.next(); ok {
		return TickResult{Report: r, Echo: true, Phase: m.phase}, nil
	}
	if m.phase == PhaseDone {
		return TickResult{Report: Neutral(), Phase: PhaseDone}, nil
	}

	from := m.phase
	r := Neutral()
	if err := m.advance(&r); err != nil {
		m.abort()
		return TickResult{Report: Neutral(), Phase: m.phase}, fmt.Errorf("phase %s: %w", from, err)
	}
	m.phaseTicks++
	m.echo.capture(r)

	res := TickResult{Report: r, Phase: m.phase}
	if m.phase != from {
		res.Transition = &Transition{
			From:     from,
			To:       m.phase,
			Tick:     m.phaseTicks,
			Counters: m.counters,
		}
	}
	return res, nil
}

func (m *Machine) advance(r *Report) error {
	if m.phase == PhaseSyncController {
		return m.sync()
	}

	route, ok := rules[m.phase]
	if !ok {
		return fmt.Errorf("no rule for phase %s", m.phase)
	}
	p, err := route(&m.counters, m.cfg)
	if err != nil {
		return err
	}
	if p.jump {
		m.phase = p.next
		return nil
	}

	w, err := m.waveform(p)
	if err != nil {
		return err
	}
	if w.emit(r) {
		w.reset()
		m.complete(p)
	}
	return nil
}

// sync is the entry phase: calibrate the hold once and start the script.
func (m *Machine) sync() error {
	t, err := m.timings.Timing(m.cfg.Species)
	if err != nil {
		return fmt.Errorf("species %d: %w", m.cfg.Species, err)
	}
	m.cursor = Cursor{}
	m.rotation = 0
	m.counters.CalibratedHold = CalibratedHold(t.BaseCycles, t.Halved)
	m.phase = PhaseBreathe
	return nil
}

func (m *Machine) waveform(p plan) (waveform, error) {
	if p.rot != nil {
		return oscillator{rot: p.rot, count: &m.rotation, counters: m.counters}, nil
	}
	seq, err := m.lib.Sequence(p.seq)
	if err != nil {
		return nil, err
	}
	return stepper{seq: seq, cursor: &m.cursor}, nil
}

func (m *Machine) complete(p plan) {
	if p.rot != nil {
		m.cursor = Cursor{}
		m.phase = p.exit(&m.counters, m.cfg)
		return
	}
	if p.counting {
		m.counters.countInteraction()
	}
	m.phase = p.next
}

// abort returns to the entry phase after a logic-fatal error.
func (m *Machine) abort() {
	m.phase = PhaseSyncController
	m.cursor = Cursor{}
	m.rotation = 0
	m.counters.GroupSelector = MinGroup
	m.echo.clear()
}
