package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// ledAlert blinks an LED through its sysfs brightness file once the run is
// done, so an unattended run can be spotted from across the room.
type ledAlert struct {
	path     string
	interval time.Duration
	logger   *slog.Logger

	start chan struct{}
	stop  chan struct{}
}

func newLEDAlert(path string, interval time.Duration, logger *slog.Logger) *ledAlert {
	return &ledAlert{
		path:     path,
		interval: interval,
		logger:   logger,
		start:    make(chan struct{}, 1),
		stop:     make(chan struct{}, 1),
	}
}

// Start begins blinking. It never blocks.
func (a *ledAlert) Start() {
	select {
	case a.start <- struct{}{}:
	default:
	}
}

// Stop turns the LED off. It never blocks.
func (a *ledAlert) Stop() {
	select {
	case a.stop <- struct{}{}:
	default:
	}
}

// Run services Start/Stop until ctx is canceled, leaving the LED off.
func (a *ledAlert) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
		on     bool
	)
	halt := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
		if on {
			on = false
			a.write(false)
		}
	}
	defer halt()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-a.start:
			if ticker != nil {
				continue
			}
			a.logger.Info("completion alert started", "led", a.path, "interval", a.interval)
			ticker = time.NewTicker(a.interval)
			tickC = ticker.C
			on = true
			a.write(true)

		case <-a.stop:
			if ticker != nil {
				a.logger.Info("completion alert stopped", "led", a.path)
			}
			halt()

		case <-tickC:
			on = !on
			if err := a.write(on); err != nil {
				a.logger.Warn("completion alert disabled", "led", a.path, "error", err)
				ticker.Stop()
				ticker = nil
				tickC = nil
			}
		}
	}
}

func (a *ledAlert) write(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	if err := os.WriteFile(a.path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", a.path, err)
	}
	return nil
}
