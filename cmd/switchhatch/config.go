package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"switchhatch/internal/script"
	"switchhatch/internal/sequencer"
)

// Config is the top-level YAML configuration for switchhatch.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config.
type Config struct {
	Run       RunFileConfig   `yaml:"run"`
	Script    ScriptConfig    `yaml:"script"`
	Transport TransportConfig `yaml:"transport"`
	IPC       IPCConfig       `yaml:"ipc"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Journal   JournalConfig   `yaml:"journal"`
	Alert     AlertConfig     `yaml:"alert"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RunFileConfig is the run as written in YAML. Persist uses the policy names
// never, every_container and at_end.
type RunFileConfig struct {
	Species         int    `yaml:"species"`
	FlameBody       bool   `yaml:"flame_body"`
	Containers      int    `yaml:"containers"`
	InitialItems    int    `yaml:"initial_items"`
	SubsequentItems int    `yaml:"subsequent_items"`
	Persist         string `yaml:"persist"`
}

// ScriptConfig points at replacement data files. Empty means the embedded
// defaults.
type ScriptConfig struct {
	SequencesFile string `yaml:"sequences_file"`
	SpeciesFile   string `yaml:"species_file"`
}

type TransportConfig struct {
	Kind   string `yaml:"kind"`   // "hidg" or "sim"
	Device string `yaml:"device"` // hidg only
	SimHz  int    `yaml:"sim_hz"` // sim only
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// MonitorConfig is the websocket status feed. Empty Listen disables it.
type MonitorConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// JournalConfig is the SQLite run journal. Empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// AlertConfig drives the completion LED. Empty LEDPath disables it.
type AlertConfig struct {
	LEDPath    string `yaml:"led_path"`
	IntervalMS int    `yaml:"interval_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Run: RunFileConfig{
			Species:         1,
			Containers:      1,
			InitialItems:    30,
			SubsequentItems: 30,
			Persist:         sequencer.PersistAtEnd.String(),
		},
		Transport: TransportConfig{
			Kind:   transportHIDG,
			Device: defaultHIDDevice,
			SimHz:  defaultSimHz,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		Monitor: MonitorConfig{
			Listen: defaultMonitorAddr,
			Path:   defaultMonitorPath,
		},
		Journal: JournalConfig{
			Path: defaultJournalPath,
		},
		Alert: AlertConfig{
			IntervalMS: defaultAlertMS,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var rest yaml.Node
	if err := dec.Decode(&rest); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies command-line overrides on top of a loaded config.
//
// A nil pointer means the flag was not set. A non-nil pointer is applied
// even when it holds a zero value.
type FlagOverrides struct {
	Species         *int
	FlameBody       *bool
	Containers      *int
	InitialItems    *int
	SubsequentItems *int
	Persist         *string

	SequencesFile *string
	SpeciesFile   *string

	TransportKind *string
	Device        *string
	SimHz         *int

	IPCSocketPath *string
	MonitorListen *string
	JournalPath   *string
	LEDPath       *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.Species != nil {
		cfg.Run.Species = *o.Species
	}
	if o.FlameBody != nil {
		cfg.Run.FlameBody = *o.FlameBody
	}
	if o.Containers != nil {
		cfg.Run.Containers = *o.Containers
	}
	if o.InitialItems != nil {
		cfg.Run.InitialItems = *o.InitialItems
	}
	if o.SubsequentItems != nil {
		cfg.Run.SubsequentItems = *o.SubsequentItems
	}
	if o.Persist != nil {
		cfg.Run.Persist = *o.Persist
	}

	if o.SequencesFile != nil {
		cfg.Script.SequencesFile = *o.SequencesFile
	}
	if o.SpeciesFile != nil {
		cfg.Script.SpeciesFile = *o.SpeciesFile
	}

	if o.TransportKind != nil {
		cfg.Transport.Kind = *o.TransportKind
	}
	if o.Device != nil {
		cfg.Transport.Device = *o.Device
	}
	if o.SimHz != nil {
		cfg.Transport.SimHz = *o.SimHz
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.MonitorListen != nil {
		cfg.Monitor.Listen = *o.MonitorListen
	}
	if o.JournalPath != nil {
		cfg.Journal.Path = *o.JournalPath
	}
	if o.LEDPath != nil {
		cfg.Alert.LEDPath = *o.LEDPath
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Run
	if c.Run.Species <= 0 {
		return errors.New("run.species must be > 0")
	}
	if _, err := c.RunConfig(); err != nil {
		return err
	}

	// Transport
	switch c.Transport.Kind {
	case transportHIDG:
		if c.Transport.Device == "" {
			return errors.New("transport.device must not be empty for kind hidg")
		}
	case transportSim:
	default:
		return fmt.Errorf("transport.kind must be %q or %q", transportHIDG, transportSim)
	}
	// simulate estimates wall time from sim_hz whatever the kind.
	if c.Transport.SimHz <= 0 || c.Transport.SimHz > maxSimHz {
		return fmt.Errorf("transport.sim_hz must be between 1 and %d", maxSimHz)
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Monitor
	if c.Monitor.Listen != "" && (c.Monitor.Path == "" || c.Monitor.Path[0] != '/') {
		return errors.New("monitor.path must start with /")
	}

	// Alert
	if c.Alert.LEDPath != "" && c.Alert.IntervalMS <= 0 {
		return errors.New("alert.interval_ms must be > 0")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// RunConfig converts the run section into the sequencer's run configuration.
func (c *Config) RunConfig() (sequencer.RunConfig, error) {
	p, err := sequencer.ParsePolicy(c.Run.Persist)
	if err != nil {
		return sequencer.RunConfig{}, fmt.Errorf("run.persist: %w", err)
	}
	rc := sequencer.RunConfig{
		Species:         c.Run.Species,
		Containers:      c.Run.Containers,
		InitialItems:    c.Run.InitialItems,
		SubsequentItems: c.Run.SubsequentItems,
		Persist:         p,
	}
	if err := rc.Validate(); err != nil {
		return sequencer.RunConfig{}, fmt.Errorf("run: %w", err)
	}
	return rc, nil
}

// AlertInterval is the LED toggle period.
func (c *Config) AlertInterval() time.Duration {
	return time.Duration(c.Alert.IntervalMS) * time.Millisecond
}

// LoadScript resolves the sequence library and species table, falling back
// to the embedded defaults.
func (c *Config) LoadScript() (sequencer.MapLibrary, *script.Table, error) {
	lib := script.Default()
	if c.Script.SequencesFile != "" {
		var err error
		if lib, err = script.LoadFile(ExpandPath(c.Script.SequencesFile)); err != nil {
			return nil, nil, err
		}
	}

	tbl := script.DefaultTable()
	if c.Script.SpeciesFile != "" {
		var err error
		if tbl, err = script.LoadTableFile(ExpandPath(c.Script.SpeciesFile)); err != nil {
			return nil, nil, err
		}
	}

	if _, err := tbl.Lookup(c.Run.Species); err != nil {
		return nil, nil, fmt.Errorf("run.species: %w", err)
	}
	return lib, tbl, nil
}

// NewMachine builds the run's state machine from the config.
func (c *Config) NewMachine() (*sequencer.Machine, *script.Table, error) {
	rc, err := c.RunConfig()
	if err != nil {
		return nil, nil, err
	}
	lib, tbl, err := c.LoadScript()
	if err != nil {
		return nil, nil, err
	}
	m, err := sequencer.New(lib, tbl.WithHalving(c.Run.FlameBody), rc)
	if err != nil {
		return nil, nil, err
	}
	return m, tbl, nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
