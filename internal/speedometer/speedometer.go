// Package speedometer computes instantaneous speed from gear and cadence and
// integrates travelled distance over elapsed time.
// Distance is a left Riemann sum over piecewise-constant speed segments whose
// boundaries are the instants the gear size or cadence changed.
package speedometer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/bike-computer/internal/clock"
)

// Physical bounds of the drivetrain inputs.
const (
	MinGear     = 1
	MaxGear     = 9
	MinGearSize = 11
	MaxGearSize = 20

	MinPedalRotation     = 375 * time.Millisecond
	MaxPedalRotation     = 1500 * time.Millisecond
	DeltaPedalRotation   = 25 * time.Millisecond
	InitialPedalRotation = 750 * time.Millisecond

	DefaultTraySize           = 50
	DefaultWheelCircumference = 2.1 // meters
)

const msPerHour = 3_600_000.0

var (
	// ErrGearSize is returned for a gear size outside [MinGearSize, MaxGearSize].
	ErrGearSize = errors.New("gear size out of range")
	// ErrCadence is returned for a pedal rotation period outside its bounds.
	ErrCadence = errors.New("pedal rotation period out of range")
)

// GearSizeFor returns the gear size (rear sprocket teeth) engaged by gear.
func GearSizeFor(gear int) int {
	return MaxGearSize - gear
}

// Config holds the fixed drivetrain geometry and the initial inputs.
type Config struct {
	TraySize           int
	WheelCircumference float64 // meters
	GearSize           int
	PedalRotation      time.Duration
}

// DefaultConfig returns a 50 tooth tray on a 2.1m wheel, in the lowest gear at 80 rpm.
func DefaultConfig() Config {
	return Config{
		TraySize:           DefaultTraySize,
		WheelCircumference: DefaultWheelCircumference,
		GearSize:           GearSizeFor(MinGear),
		PedalRotation:      InitialPedalRotation,
	}
}

// Validate reports whether cfg describes a drivetrain that can produce a speed.
func (cfg Config) Validate() error {
	if cfg.TraySize <= 0 {
		return fmt.Errorf("tray size %d: must be positive", cfg.TraySize)
	}
	if cfg.WheelCircumference <= 0 {
		return fmt.Errorf("wheel circumference %v: must be positive", cfg.WheelCircumference)
	}
	if err := checkGearSize(cfg.GearSize); err != nil {
		return err
	}
	return checkCadence(cfg.PedalRotation)
}

// Speedometer owns the speed and distance state of one bike.
// All fields after mu are guarded by mu.
type Speedometer struct {
	clock    clock.Clock
	traySize int
	wheel    float64

	mu         sync.Mutex
	gearSize   int
	cadence    time.Duration
	speed      float64 // meters per hour
	total      float64 // meters
	lastUpdate time.Duration
}

// New creates a Speedometer at rest distance zero, with speed computed from cfg.
func New(c clock.Clock, cfg Config) (*Speedometer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("speedometer config: %w", err)
	}
	s := &Speedometer{
		clock:      c,
		traySize:   cfg.TraySize,
		wheel:      cfg.WheelCircumference,
		gearSize:   cfg.GearSize,
		cadence:    cfg.PedalRotation,
		lastUpdate: c.Now(),
	}
	s.speed = s.computeSpeed()
	return s, nil
}

// withState runs fn while holding the state lock.
func (s *Speedometer) withState(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// SetCadence applies a new pedal rotation period. Distance travelled up to now
// is integrated at the old speed before the new speed takes effect.
func (s *Speedometer) SetCadence(period time.Duration) error {
	if err := checkCadence(period); err != nil {
		return err
	}
	s.withState(func() {
		if period == s.cadence {
			return
		}
		s.integrate(s.clock.Now())
		s.cadence = period
		s.speed = s.computeSpeed()
	})
	return nil
}

// SetGearSize applies a new gear size with the same finalize-then-update rule
// as SetCadence.
func (s *Speedometer) SetGearSize(size int) error {
	if err := checkGearSize(size); err != nil {
		return err
	}
	s.withState(func() {
		if size == s.gearSize {
			return
		}
		s.integrate(s.clock.Now())
		s.gearSize = size
		s.speed = s.computeSpeed()
	})
	return nil
}

// Speed returns the last computed speed in meters per hour.
func (s *Speedometer) Speed() float64 {
	var v float64
	s.withState(func() { v = s.speed })
	return v
}

// Distance integrates pending travel up to now and returns the total in meters.
func (s *Speedometer) Distance() float64 {
	var v float64
	s.withState(func() {
		s.integrate(s.clock.Now())
		v = s.total
	})
	return v
}

// Reset zeroes the distance and discards any time not yet integrated.
// Speed keeps following the current gear and cadence.
func (s *Speedometer) Reset() {
	s.withState(func() {
		s.total = 0
		s.lastUpdate = s.clock.Now()
		s.speed = s.computeSpeed()
	})
}

// GearSize returns the gear size currently applied.
func (s *Speedometer) GearSize() int {
	var v int
	s.withState(func() { v = s.gearSize })
	return v
}

// Cadence returns the pedal rotation period currently applied.
func (s *Speedometer) Cadence() time.Duration {
	var v time.Duration
	s.withState(func() { v = s.cadence })
	return v
}

// TraySize returns the number of teeth on the front tray.
func (s *Speedometer) TraySize() int { return s.traySize }

// WheelCircumference returns the wheel circumference in meters.
func (s *Speedometer) WheelCircumference() float64 { return s.wheel }

// integrate must be called with mu held.
func (s *Speedometer) integrate(now time.Duration) {
	elapsed := now - s.lastUpdate
	if elapsed <= 0 {
		return
	}
	elapsedMs := float64(elapsed) / float64(time.Millisecond)
	s.total += s.speed * elapsedMs / msPerHour
	s.lastUpdate = now
}

// computeSpeed must be called with mu held.
func (s *Speedometer) computeSpeed() float64 {
	return SpeedFor(s.traySize, s.gearSize, s.wheel, s.cadence)
}

// SpeedFor returns the speed in meters per hour produced by pedalling a tray
// against a gear size at the given rotation period.
func SpeedFor(traySize, gearSize int, wheel float64, period time.Duration) float64 {
	periodMs := float64(period) / float64(time.Millisecond)
	rotationsPerHour := msPerHour / periodMs
	return float64(traySize) / float64(gearSize) * wheel * rotationsPerHour
}

func checkGearSize(size int) error {
	if size < MinGearSize || size > MaxGearSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrGearSize, size, MinGearSize, MaxGearSize)
	}
	return nil
}

func checkCadence(period time.Duration) error {
	if period < MinPedalRotation || period > MaxPedalRotation {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrCadence, period, MinPedalRotation, MaxPedalRotation)
	}
	return nil
}
