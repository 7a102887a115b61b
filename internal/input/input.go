// Package input holds the rider-controlled state of the bike: engaged gear,
// pedal cadence and pending reset requests.
// Every source is a single-word atomic cell so it can be written from an
// event goroutine while the scheduler reads it, without locks.
package input

import (
	"sync/atomic"
	"time"

	"github.com/sweeney/bike-computer/internal/speedometer"
)

// notifier holds an optional change callback.
type notifier struct {
	fn atomic.Pointer[func()]
}

// OnChange installs fn to be called after every state change. A nil fn
// removes the callback. fn runs on the goroutine that made the change.
func (n *notifier) OnChange(fn func()) {
	if fn == nil {
		n.fn.Store(nil)
		return
	}
	n.fn.Store(&fn)
}

func (n *notifier) notify() {
	if fn := n.fn.Load(); fn != nil {
		(*fn)()
	}
}

// Gear tracks the engaged gear, clamped to [MinGear, MaxGear].
type Gear struct {
	notifier
	gear atomic.Int32
}

// NewGear creates a Gear in the lowest gear.
func NewGear() *Gear {
	g := &Gear{}
	g.gear.Store(speedometer.MinGear)
	return g
}

// Up shifts one gear up. Reports false if already in the highest gear.
func (g *Gear) Up() bool {
	return g.shift(1)
}

// Down shifts one gear down. Reports false if already in the lowest gear.
func (g *Gear) Down() bool {
	return g.shift(-1)
}

func (g *Gear) shift(delta int32) bool {
	for {
		cur := g.gear.Load()
		next := cur + delta
		if next < speedometer.MinGear || next > speedometer.MaxGear {
			return false
		}
		if g.gear.CompareAndSwap(cur, next) {
			g.notify()
			return true
		}
	}
}

// Gear returns the engaged gear.
func (g *Gear) Gear() int {
	return int(g.gear.Load())
}

// Size returns the gear size of the engaged gear.
func (g *Gear) Size() int {
	return speedometer.GearSizeFor(g.Gear())
}

// maxCadenceStep is the number of delta steps between the fastest and slowest cadence.
const maxCadenceStep = int32((speedometer.MaxPedalRotation - speedometer.MinPedalRotation) / speedometer.DeltaPedalRotation)

// Cadence tracks the pedal rotation period as a step count above the
// fastest rotation, so every value is a whole number of delta steps.
type Cadence struct {
	notifier
	step atomic.Int32
}

// NewCadence creates a Cadence at the initial rotation period.
func NewCadence() *Cadence {
	c := &Cadence{}
	c.step.Store(int32((speedometer.InitialPedalRotation - speedometer.MinPedalRotation) / speedometer.DeltaPedalRotation))
	return c
}

// Faster shortens the rotation period by one delta. Reports false at the bound.
func (c *Cadence) Faster() bool {
	return c.move(-1)
}

// Slower lengthens the rotation period by one delta. Reports false at the bound.
func (c *Cadence) Slower() bool {
	return c.move(1)
}

func (c *Cadence) move(delta int32) bool {
	for {
		cur := c.step.Load()
		next := cur + delta
		if next < 0 || next > maxCadenceStep {
			return false
		}
		if c.step.CompareAndSwap(cur, next) {
			c.notify()
			return true
		}
	}
}

// Period returns the current pedal rotation period.
func (c *Cadence) Period() time.Duration {
	return speedometer.MinPedalRotation + time.Duration(c.step.Load())*speedometer.DeltaPedalRotation
}

// Reset captures reset button presses. At most one request is pending; a
// press while pending only moves the request timestamp.
type Reset struct {
	notifier
	pending atomic.Bool
	at      atomic.Int64 // request time as clock elapsed nanoseconds
	level   atomic.Bool  // last sampled button level
}

// NewReset creates an idle Reset.
func NewReset() *Reset {
	return &Reset{}
}

// Press records a rising edge of the reset button at the given clock time.
func (r *Reset) Press(at time.Duration) {
	r.at.Store(int64(at))
	r.pending.Store(true)
	r.notify()
}

// Sample feeds a polled button level. A low to high transition counts as a press.
func (r *Reset) Sample(pressed bool, at time.Duration) {
	was := r.level.Swap(pressed)
	if pressed && !was {
		r.Press(at)
	}
}

// Consume takes the pending request, if any, and returns its timestamp.
func (r *Reset) Consume() (time.Duration, bool) {
	if !r.pending.CompareAndSwap(true, false) {
		return 0, false
	}
	return time.Duration(r.at.Load()), true
}

// Pending reports whether a request is waiting to be consumed.
func (r *Reset) Pending() bool {
	return r.pending.Load()
}
