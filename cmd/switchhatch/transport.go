package main

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Transport delivers controller reports to the console.
//
// The host decides when a report is wanted: Ready fires once per polling
// slot and the daemon answers each signal with exactly one Send. Err fires
// at most once, when the transport can no longer deliver.
type Transport interface {
	Ready() <-chan struct{}
	Send(report []byte) error
	Err() <-chan error
	Close() error
}

// openTransport builds the transport named by cfg.
func openTransport(cfg TransportConfig, logger *slog.Logger) (Transport, error) {
	switch cfg.Kind {
	case transportHIDG:
		return openHIDG(cfg.Device, logger)
	case transportSim:
		return newSimTransport(cfg.SimHz, logger), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}

// simTransport polls at a fixed rate and accepts every report. It stands in
// for the console when no gadget device is attached.
type simTransport struct {
	logger *slog.Logger

	ready chan struct{}
	sent  chan struct{}
	errc  chan error
	done  chan struct{}

	count atomic.Uint64
	last  atomic.Value // []byte

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSimTransport(hz int, logger *slog.Logger) *simTransport {
	if hz <= 0 {
		hz = defaultSimHz
	}
	t := &simTransport{
		logger: logger,
		ready:  make(chan struct{}),
		sent:   make(chan struct{}, 1),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	t.wg.Add(1)
	go t.loop(time.Second / time.Duration(hz))
	logger.Info("sim transport polling", "hz", hz)
	return t
}

func (t *simTransport) loop(interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}

		select {
		case t.ready <- struct{}{}:
		case <-t.done:
			return
		}

		select {
		case <-t.sent:
		case <-t.done:
			return
		}
	}
}

func (t *simTransport) Ready() <-chan struct{} { return t.ready }
func (t *simTransport) Err() <-chan error      { return t.errc }

func (t *simTransport) Send(report []byte) error {
	b := make([]byte, len(report))
	copy(b, report)
	t.last.Store(b)
	t.count.Add(1)

	select {
	case t.sent <- struct{}{}:
	default:
	}
	return nil
}

// Sent returns how many reports were accepted.
func (t *simTransport) Sent() uint64 { return t.count.Load() }

// Last returns the most recent report, or nil.
func (t *simTransport) Last() []byte {
	b, _ := t.last.Load().([]byte)
	return b
}

func (t *simTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		t.logger.Info("sim transport closed", "reports", t.Sent())
	})
	return nil
}
