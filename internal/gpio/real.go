//go:build linux

package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/warthog618/go-gpiocdev"
)

// RealButtons reads the handlebar buttons from actual hardware using Linux
// GPIO character device. Edges are debounced by the kernel.
type RealButtons struct {
	chip   *gpiocdev.Chip
	lines  *gpiocdev.Lines
	pins   Pins
	events chan Event
}

// NewRealButtons requests the button lines on gpiochip0.
func NewRealButtons(pins Pins, debounce time.Duration) (*RealButtons, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealButtons{
		chip:   chip,
		pins:   pins,
		events: make(chan Event, 64),
	}

	// Buttons short to ground: pull up and treat low as active.
	lines, err := chip.RequestLines(pins.Offsets(),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.AsActiveLow,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(r.handle),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pins %v: %w", pins.Offsets(), err)
	}
	r.lines = lines

	return r, nil
}

// handle runs on the gpiocdev event goroutine.
func (r *RealButtons) handle(evt gpiocdev.LineEvent) {
	b, ok := r.pins.buttonFor(evt.Offset)
	if !ok {
		return
	}
	ev := Event{Button: b, Pressed: evt.Type == gpiocdev.LineEventRisingEdge}
	select {
	case r.events <- ev:
	default:
		log.Warn().Stringer("button", b).Msg("gpio: event buffer full, dropping edge")
	}
}

// Read returns the logical level of every button.
func (r *RealButtons) Read() (Levels, error) {
	var levels Levels
	vals := make([]int, NumButtons)
	if err := r.lines.Values(vals); err != nil {
		return levels, fmt.Errorf("read button pins: %w", err)
	}
	for i, v := range vals {
		levels[i] = v == 1
	}
	return levels, nil
}

// Watch forwards edges to handle until ctx is done.
func (r *RealButtons) Watch(ctx context.Context, handle func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.events:
			handle(ev)
		}
	}
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealButtons) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pins: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
