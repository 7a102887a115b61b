package sensor

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hts221"
)

// HTS221 adapts the ST HTS221 humidity and temperature driver to Sensor.
type HTS221 struct {
	bus *guardedBus
	dev hts221.Device
}

// NewHTS221 creates an HTS221 on bus at its fixed address. The device is not
// touched until Init.
func NewHTS221(bus drivers.I2C) *HTS221 {
	g := &guardedBus{bus: bus}
	return &HTS221{bus: g, dev: hts221.New(g)}
}

// Init checks the device identity, loads its factory calibration and powers
// it on.
func (s *HTS221) Init() error {
	s.bus.take()
	if !s.dev.Connected() {
		if err := s.bus.take(); err != nil {
			return fmt.Errorf("%w: %v", ErrNotPresent, err)
		}
		return ErrNotPresent
	}
	s.dev.Configure()
	if err := s.bus.take(); err != nil {
		return fmt.Errorf("configure hts221: %w", err)
	}
	return nil
}

// ReadTemperature triggers a one-shot conversion and returns degrees Celsius.
func (s *HTS221) ReadTemperature() (float64, error) {
	s.bus.take()
	milli, err := s.dev.ReadTemperature()
	if err == nil {
		err = s.bus.take()
	}
	if err != nil {
		return 0, fmt.Errorf("read temperature: %w", err)
	}
	return float64(milli) / 1000, nil
}

// ReadHumidity triggers a one-shot conversion and returns percent relative humidity.
func (s *HTS221) ReadHumidity() (float64, error) {
	s.bus.take()
	centi, err := s.dev.ReadHumidity()
	if err == nil {
		err = s.bus.take()
	}
	if err != nil {
		return 0, fmt.Errorf("read humidity: %w", err)
	}
	return float64(centi) / 100, nil
}

// guardedBus remembers the first transfer error, which the driver discards,
// and answers failed reads so the driver's status polling loops terminate.
type guardedBus struct {
	bus drivers.I2C

	mu  sync.Mutex
	err error
}

func (g *guardedBus) Tx(addr uint16, w, r []byte) error {
	err := g.bus.Tx(addr, w, r)
	if err == nil {
		return nil
	}

	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()

	var fill byte
	if len(w) > 0 && w[0] == hts221.HTS221_STATUS_REG {
		fill = 0xFF // conversion "ready"
	}
	for i := range r {
		r[i] = fill
	}
	return err
}

// take returns and clears the recorded error.
func (g *guardedBus) take() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	err := g.err
	g.err = nil
	return err
}
