package script

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"switchhatch/internal/sequencer"
)

//go:embed default_species.yaml
var defaultSpecies []byte

// ErrUnknownSpecies is returned by Lookup for a dex number with no entry.
var ErrUnknownSpecies = errors.New("unknown species")

// Species is one row of the timing table.
type Species struct {
	Dex        int    `yaml:"dex"`
	Name       string `yaml:"name"`
	BaseCycles int    `yaml:"base_cycles"`
}

// Table maps national dex numbers to hatch timing.
type Table struct {
	byDex map[int]Species
}

type speciesFile struct {
	Species []Species `yaml:"species"`
}

// LoadTable parses a species timing table from r.
func LoadTable(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read species table: %w", err)
	}
	return parseTable(b)
}

// LoadTableFile parses the species timing table at path.
func LoadTableFile(path string) (*Table, error) {
	if path == "" {
		return nil, errors.New("species table path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read species file: %w", err)
	}
	return parseTable(b)
}

// DefaultTable returns the embedded species table.
func DefaultTable() *Table {
	t, err := parseTable(defaultSpecies)
	if err != nil {
		panic(fmt.Sprintf("embedded species table: %v", err))
	}
	return t
}

func parseTable(b []byte) (*Table, error) {
	var f speciesFile
	if err := decodeStrict(b, &f); err != nil {
		return nil, fmt.Errorf("decode species yaml: %w", err)
	}

	t := &Table{byDex: make(map[int]Species, len(f.Species))}
	for i, s := range f.Species {
		switch {
		case s.Dex <= 0:
			return nil, fmt.Errorf("species[%d]: dex must be > 0", i)
		case s.BaseCycles <= 0:
			return nil, fmt.Errorf("species[%d] (%d): base_cycles must be > 0", i, s.Dex)
		}
		if _, dup := t.byDex[s.Dex]; dup {
			return nil, fmt.Errorf("species[%d]: duplicate dex %d", i, s.Dex)
		}
		t.byDex[s.Dex] = s
	}
	return t, nil
}

// Lookup returns the timing entry for dex, not halved.
func (t *Table) Lookup(dex int) (sequencer.Timing, error) {
	s, ok := t.byDex[dex]
	if !ok {
		return sequencer.Timing{}, fmt.Errorf("%w: %d", ErrUnknownSpecies, dex)
	}
	return sequencer.Timing{BaseCycles: s.BaseCycles}, nil
}

// Species returns the entry for dex.
func (t *Table) Species(dex int) (Species, bool) {
	s, ok := t.byDex[dex]
	return s, ok
}

// All returns every entry ordered by dex number.
func (t *Table) All() []Species {
	out := make([]Species, 0, len(t.byDex))
	for _, s := range t.byDex {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dex < out[j].Dex })
	return out
}

// WithHalving adapts the table to a sequencer.TimingTable. When halved is
// set every lookup is marked for the hatch-speed ability.
func (t *Table) WithHalving(halved bool) sequencer.TimingTable {
	return halvingTable{t: t, halved: halved}
}

type halvingTable struct {
	t      *Table
	halved bool
}

func (h halvingTable) Timing(species int) (sequencer.Timing, error) {
	tm, err := h.t.Lookup(species)
	if err != nil {
		return tm, err
	}
	tm.Halved = h.halved
	return tm, nil
}
