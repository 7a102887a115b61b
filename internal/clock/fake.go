package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when a caller waits on it or calls
// Advance. Waiting via After advances virtual time to the deadline and fires
// at once, so schedulers driven by a Fake run as fast as the CPU allows while
// observing exact durations.
type Fake struct {
	mu   sync.Mutex
	now  time.Duration
	base time.Time

	// Waits counts calls to After with a positive duration.
	Waits int
}

// NewFake creates a Fake starting at elapsed time zero.
func NewFake() *Fake {
	return &Fake{base: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current virtual elapsed time.
func (f *Fake) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After advances virtual time by d and returns an already-fired channel.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	if d > 0 {
		f.now += d
		f.Waits++
	}
	at := f.base.Add(f.now)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- at
	return ch
}

// Advance moves virtual time forward by d, simulating work that takes d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// Set moves virtual time to an absolute elapsed value.
func (f *Fake) Set(now time.Duration) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}
