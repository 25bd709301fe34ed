package sequencer

import "fmt"

// Directive is one atomic controller action.
type Directive uint8

const (
	// Hang releases everything: the report goes back to neutral.
	Hang Directive = iota
	PressA
	PressB
	PressX
	PressY
	PressR
	PressL
	PressPlus
	PressHome
	LLeft
	LRight
	LUp
	LDown
	LUpRight
	LLeftSlight
	LRightSlight
	LUpSlight
	LDownSlight
	LUpRightSlight

	directiveCount
)

// Partial deflection values.
const (
	slightLow  uint8 = 100
	slightHigh uint8 = 160

	diagSlightY uint8 = 60
	diagSlightX uint8 = 200
)

var directiveNames = [directiveCount]string{
	Hang:           "hang",
	PressA:         "press_a",
	PressB:         "press_b",
	PressX:         "press_x",
	PressY:         "press_y",
	PressR:         "press_r",
	PressL:         "press_l",
	PressPlus:      "press_plus",
	PressHome:      "press_home",
	LLeft:          "l_left",
	LRight:         "l_right",
	LUp:            "l_up",
	LDown:          "l_down",
	LUpRight:       "l_up_right",
	LLeftSlight:    "l_left_slight",
	LRightSlight:   "l_right_slight",
	LUpSlight:      "l_up_slight",
	LDownSlight:    "l_down_slight",
	LUpRightSlight: "l_up_right_slight",
}

var directivesByName = func() map[string]Directive {
	m := make(map[string]Directive, directiveCount)
	for d, name := range directiveNames {
		m[name] = Directive(d)
	}
	return m
}()

// ParseDirective returns the directive with the given script name.
func ParseDirective(name string) (Directive, error) {
	d, ok := directivesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown directive %q", name)
	}
	return d, nil
}

func (d Directive) String() string {
	if d < directiveCount {
		return directiveNames[d]
	}
	return fmt.Sprintf("directive(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Directive) MarshalText() ([]byte, error) {
	if d >= directiveCount {
		return nil, fmt.Errorf("invalid directive %d", uint8(d))
	}
	return []byte(directiveNames[d]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Directive) UnmarshalText(text []byte) error {
	v, err := ParseDirective(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Apply mutates r according to d. Buttons accumulate; stick writes are
// absolute. Hang, and any value outside the vocabulary, resets r.
func (d Directive) Apply(r *Report) {
	switch d {
	case PressA:
		r.Buttons |= ButtonA
	case PressB:
		r.Buttons |= ButtonB
	case PressX:
		r.Buttons |= ButtonX
	case PressY:
		r.Buttons |= ButtonY
	case PressR:
		r.Buttons |= ButtonR
	case PressL:
		r.Buttons |= ButtonL
	case PressPlus:
		r.Buttons |= ButtonPlus
	case PressHome:
		r.Buttons |= ButtonHome
	case LLeft:
		r.LX = StickMin
	case LRight:
		r.LX = StickMax
	case LUp:
		r.LY = StickMin
	case LDown:
		r.LY = StickMax
	case LUpRight:
		r.LY = StickMin
		r.LX = StickMax
	case LLeftSlight:
		r.LX = slightLow
	case LRightSlight:
		r.LX = slightHigh
	case LUpSlight:
		r.LY = slightLow
	case LDownSlight:
		r.LY = slightHigh
	case LUpRightSlight:
		r.LY = diagSlightY
		r.LX = diagSlightX
	default:
		r.Reset()
	}
}
