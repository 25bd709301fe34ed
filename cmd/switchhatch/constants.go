package main

import "time"

// Defaults shared by DefaultConfig and the CLI flags.
const (
	defaultSocketPath   = "/tmp/switchhatch.sock"
	defaultHIDDevice    = "/dev/hidg0"
	defaultMonitorAddr  = "127.0.0.1:8765"
	defaultMonitorPath  = "/ws"
	defaultJournalPath  = "~/.switchhatch/journal.db"
	defaultAlertMS      = 250
	defaultStatusWaitMS = 1000

	// The console polls a wired pad every 8 ms.
	defaultSimHz = 125
	maxSimHz     = 10000
)

// Transport kinds.
const (
	transportHIDG = "hidg"
	transportSim  = "sim"
)

// epollWaitTimeout bounds each epoll_wait so the transport notices shutdown.
const epollWaitTimeout = 100 * time.Millisecond

// progressCoalesceWindow is the minimum spacing between progress frames on the
// status feed; the per-tick stream is far too chatty to forward as-is.
const progressCoalesceWindow = 250 * time.Millisecond
