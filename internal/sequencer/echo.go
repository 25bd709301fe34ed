package sequencer

// EchoRepeats is how many extra ticks every fresh report is repeated for.
const EchoRepeats = 2

// echoBuffer holds the last fresh report and replays it.
type echoBuffer struct {
	held      Report
	remaining int
}

func (e *echoBuffer) next() (Report, bool) {
	if e.remaining <= 0 {
		return Report{}, false
	}
	e.remaining--
	return e.held, true
}

func (e *echoBuffer) capture(r Report) {
	e.held = r
	e.remaining = EchoRepeats
}

func (e *echoBuffer) clear() {
	*e = echoBuffer{}
}
