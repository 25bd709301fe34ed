//go:build !linux

package main

import (
	"errors"
	"log/slog"
)

func openHIDG(string, *slog.Logger) (Transport, error) {
	return nil, errors.New("hidg transport requires linux (use transport.kind: sim)")
}
