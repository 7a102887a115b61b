//go:build !linux

package gpio

import (
	"context"
	"errors"
	"time"
)

// RealButtons is not available on non-Linux platforms.
type RealButtons struct{}

// NewRealButtons returns an error on non-Linux platforms.
func NewRealButtons(pins Pins, debounce time.Duration) (*RealButtons, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealButtons) Read() (Levels, error) {
	return Levels{}, errors.New("gpio: not supported")
}

// Watch is not implemented on non-Linux platforms.
func (r *RealButtons) Watch(ctx context.Context, handle func(Event)) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealButtons) Close() error {
	return nil
}
