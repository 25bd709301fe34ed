package main

import (
	"github.com/spf13/pflag"
)

// runFlags holds the run-shaping flags shared by run and simulate.
type runFlags struct {
	species         int
	flameBody       bool
	containers      int
	initialItems    int
	subsequentItems int
	persist         string
	sequencesFile   string
	speciesFile     string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.species, "species", 0, "National dex number of the species being hatched")
	fs.BoolVar(&f.flameBody, "flame-body", false, "A party member halves hatch time (Flame Body / Magma Armor)")
	fs.IntVar(&f.containers, "containers", 0, "Number of boxes to fill")
	fs.IntVar(&f.initialItems, "initial-items", 0, "Eggs to collect for the first box")
	fs.IntVar(&f.subsequentItems, "subsequent-items", 0, "Eggs to collect for each later box")
	fs.StringVar(&f.persist, "persist", "", "When to save: never, every_container, at_end")
	fs.StringVar(&f.sequencesFile, "sequences", "", "YAML sequence library (default: built in)")
	fs.StringVar(&f.speciesFile, "species-file", "", "YAML species timing table (default: built in)")
}

// overrides returns only the flags the user actually set.
func (f *runFlags) overrides(fs *pflag.FlagSet, o *FlagOverrides) {
	if fs.Changed("species") {
		o.Species = &f.species
	}
	if fs.Changed("flame-body") {
		o.FlameBody = &f.flameBody
	}
	if fs.Changed("containers") {
		o.Containers = &f.containers
	}
	if fs.Changed("initial-items") {
		o.InitialItems = &f.initialItems
	}
	if fs.Changed("subsequent-items") {
		o.SubsequentItems = &f.subsequentItems
	}
	if fs.Changed("persist") {
		o.Persist = &f.persist
	}
	if fs.Changed("sequences") {
		o.SequencesFile = &f.sequencesFile
	}
	if fs.Changed("species-file") {
		o.SpeciesFile = &f.speciesFile
	}
}

// serviceFlags are the daemon-only flags of run.
type serviceFlags struct {
	transport   string
	device      string
	simHz       int
	socket      string
	monitor     string
	journalPath string
	led         string
}

func (f *serviceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.transport, "transport", "", "Report transport: hidg or sim")
	fs.StringVar(&f.device, "device", "", "HID gadget device (default "+defaultHIDDevice+")")
	fs.IntVar(&f.simHz, "sim-hz", 0, "Polling rate of the sim transport")
	fs.StringVar(&f.socket, "socket", "", "IPC socket path (default "+defaultSocketPath+")")
	fs.StringVar(&f.monitor, "monitor", "", "Status feed listen address; empty string disables")
	fs.StringVar(&f.journalPath, "journal", "", "Run journal path; empty string disables")
	fs.StringVar(&f.led, "led", "", "LED brightness file for the completion alert")
}

func (f *serviceFlags) overrides(fs *pflag.FlagSet, o *FlagOverrides) {
	if fs.Changed("transport") {
		o.TransportKind = &f.transport
	}
	if fs.Changed("device") {
		o.Device = &f.device
	}
	if fs.Changed("sim-hz") {
		o.SimHz = &f.simHz
	}
	if fs.Changed("socket") {
		o.IPCSocketPath = &f.socket
	}
	if fs.Changed("monitor") {
		o.MonitorListen = &f.monitor
	}
	if fs.Changed("journal") {
		o.JournalPath = &f.journalPath
	}
	if fs.Changed("led") {
		o.LEDPath = &f.led
	}
}
