package gpio

import (
	"context"
	"errors"
	"sync"
)

// FakeButtons is a test double that returns scripted levels and delivers
// scripted or injected edges.
type FakeButtons struct {
	mu sync.Mutex

	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []Levels

	// index tracks current position in Samples
	index int

	// Events are delivered by Watch before any injected with Press.
	Events []Event

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error

	live chan Event
}

// NewFakeButtons creates a FakeButtons with the given samples.
func NewFakeButtons(samples []Levels) *FakeButtons {
	return &FakeButtons{Samples: samples, live: make(chan Event, 64)}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButtons) Read() (Levels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return Levels{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Levels{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Press injects a press followed by a release of b.
func (f *FakeButtons) Press(b Button) {
	f.live <- Event{Button: b, Pressed: true}
	f.live <- Event{Button: b, Pressed: false}
}

// Watch delivers the scripted Events, then injected ones, until ctx is done.
func (f *FakeButtons) Watch(ctx context.Context, handle func(Event)) error {
	f.mu.Lock()
	scripted := append([]Event(nil), f.Events...)
	f.mu.Unlock()

	for _, ev := range scripted {
		if ctx.Err() != nil {
			return nil
		}
		handle(ev)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-f.live:
			handle(ev)
		}
	}
}

// Close marks the buttons as closed.
func (f *FakeButtons) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeButtons) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Closed = false
	f.mu.Unlock()
}
