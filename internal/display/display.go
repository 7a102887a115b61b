// Package display renders bike readings on an output device.
// Real sinks drive an HD44780 character LCD, a pixel framebuffer through
// tinyfont, or a serial terminal. The fake sink records calls for tests.
package display

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Sink receives the latest readings. Display methods never fail: a sink
// that loses its device keeps accepting values and shows stale content.
type Sink interface {
	// Init prepares the device. A failed Init leaves the sink unusable.
	Init() error

	DisplayGear(gear int)
	DisplaySpeed(metersPerHour float64)
	DisplayDistance(meters float64)
	DisplayTemperature(celsius float64)
}

// Field identifies one rendered reading. Its value is the display row.
type Field int

const (
	FieldGear Field = iota
	FieldSpeed
	FieldDistance
	FieldTemperature

	numFields
)

// Text formats each field for character displays.
func Text(f Field, v float64) string {
	switch f {
	case FieldGear:
		return fmt.Sprintf("Gear  %d", int(v))
	case FieldSpeed:
		return fmt.Sprintf("Speed %.1f km/h", v/1000)
	case FieldDistance:
		return fmt.Sprintf("Dist  %.2f km", v/1000)
	case FieldTemperature:
		return fmt.Sprintf("Temp  %.1f C", v)
	}
	return ""
}

// pad returns s cut or space-padded to exactly width characters, so a
// shorter value overwrites a longer one on the same row.
func pad(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	b := make([]byte, width)
	copy(b, s)
	for i := len(s); i < width; i++ {
		b[i] = ' '
	}
	return string(b)
}

// Discard accepts and drops every reading. It stands in for a sink whose
// Init failed.
type Discard struct{}

func (Discard) Init() error                { return nil }
func (Discard) DisplayGear(int)            {}
func (Discard) DisplaySpeed(float64)       {}
func (Discard) DisplayDistance(float64)    {}
func (Discard) DisplayTemperature(float64) {}

// Tee forwards readings to several sinks.
type Tee struct {
	sinks []Sink
}

// NewTee creates a Tee over sinks.
func NewTee(sinks ...Sink) *Tee {
	return &Tee{sinks: sinks}
}

// Init initialises every sink and keeps only those that succeed. It fails
// only if none does.
func (t *Tee) Init() error {
	var ok []Sink
	var errs []error
	for _, s := range t.sinks {
		if err := s.Init(); err != nil {
			log.Warn().Err(err).Msgf("display: dropping %T", s)
			errs = append(errs, err)
			continue
		}
		ok = append(ok, s)
	}
	t.sinks = ok
	if len(ok) == 0 && len(errs) > 0 {
		return fmt.Errorf("no display initialised: %w", errors.Join(errs...))
	}
	return nil
}

// Len returns the number of active sinks.
func (t *Tee) Len() int { return len(t.sinks) }

func (t *Tee) DisplayGear(gear int) {
	for _, s := range t.sinks {
		s.DisplayGear(gear)
	}
}

func (t *Tee) DisplaySpeed(v float64) {
	for _, s := range t.sinks {
		s.DisplaySpeed(v)
	}
}

func (t *Tee) DisplayDistance(v float64) {
	for _, s := range t.sinks {
		s.DisplayDistance(v)
	}
}

func (t *Tee) DisplayTemperature(v float64) {
	for _, s := range t.sinks {
		s.DisplayTemperature(v)
	}
}
