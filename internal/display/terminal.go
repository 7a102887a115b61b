package display

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"
)

// Terminal writes one line per reading to a text stream, typically a
// serial console.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	failed bool
}

// NewTerminal creates a Terminal writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// OpenSerial opens a serial port and returns a Terminal on it together with
// the port, which the caller must close.
func OpenSerial(name string, baud int) (*Terminal, io.Closer, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return NewTerminal(port), port, nil
}

// Init writes a banner to check the stream is writable.
func (t *Terminal) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.w, "\r\nbike-computer\r\n"); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}
	return nil
}

func (t *Terminal) DisplayGear(gear int)         { t.line(FieldGear, float64(gear)) }
func (t *Terminal) DisplaySpeed(v float64)       { t.line(FieldSpeed, v) }
func (t *Terminal) DisplayDistance(v float64)    { t.line(FieldDistance, v) }
func (t *Terminal) DisplayTemperature(v float64) { t.line(FieldTemperature, v) }

func (t *Terminal) line(f Field, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, Text(f, v)+"\r\n")
	switch {
	case err != nil && !t.failed:
		log.Warn().Err(err).Msg("display: terminal write failed")
		t.failed = true
	case err == nil && t.failed:
		log.Info().Msg("display: terminal writes recovered")
		t.failed = false
	}
}
