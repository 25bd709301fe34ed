// Package script loads the named controller sequences and the species timing
// table that drive a sequencer run. Both ship embedded defaults and can be
// replaced by YAML files.
package script

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"switchhatch/internal/sequencer"
)

//go:embed default_script.yaml
var defaultScript []byte

type scriptFile struct {
	Sequences map[string][]stepEntry `yaml:"sequences"`
}

type stepEntry struct {
	Do   string `yaml:"do"`
	Hold int    `yaml:"hold"`
}

// Load parses a sequence library from r.
//
// Every step must name a known directive and a hold >= 0, and every
// sequence needs at least one step. Unknown fields are rejected.
func Load(r io.Reader) (sequencer.MapLibrary, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return parse(b)
}

// LoadFile parses the sequence library at path.
func LoadFile(path string) (sequencer.MapLibrary, error) {
	if path == "" {
		return nil, errors.New("script path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	return parse(b)
}

// Default returns the embedded sequence library.
func Default() sequencer.MapLibrary {
	lib, err := parse(defaultScript)
	if err != nil {
		panic(fmt.Sprintf("embedded script: %v", err))
	}
	return lib
}

func parse(b []byte) (sequencer.MapLibrary, error) {
	var f scriptFile
	if err := decodeStrict(b, &f); err != nil {
		return nil, fmt.Errorf("decode script yaml: %w", err)
	}
	if len(f.Sequences) == 0 {
		return nil, errors.New("script defines no sequences")
	}

	lib := make(sequencer.MapLibrary, len(f.Sequences))
	for name, entries := range f.Sequences {
		if len(entries) == 0 {
			return nil, fmt.Errorf("sequence %q: %w", name, sequencer.ErrEmptySequence)
		}
		seq := make(sequencer.Sequence, 0, len(entries))
		for i, e := range entries {
			d, err := sequencer.ParseDirective(e.Do)
			if err != nil {
				return nil, fmt.Errorf("sequence %q step %d: %w", name, i, err)
			}
			if e.Hold < 0 {
				return nil, fmt.Errorf("sequence %q step %d: hold must be >= 0 (got %d)", name, i, e.Hold)
			}
			seq = append(seq, sequencer.Step{Do: d, Hold: e.Hold})
		}
		lib[name] = seq
	}
	return lib, nil
}

func decodeStrict(b []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}
	var rest yaml.Node
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return errors.New("unexpected trailing document")
	}
	return nil
}
