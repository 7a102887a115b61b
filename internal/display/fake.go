package display

import "sync"

// Fake is a test double that records every displayed value.
type Fake struct {
	mu sync.Mutex

	// InitError, if set, is returned by Init.
	InitError error

	// Initialized tracks whether Init succeeded.
	Initialized bool

	Gears        []int
	Speeds       []float64
	Distances    []float64
	Temperatures []float64
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Init returns InitError or marks the fake initialized.
func (f *Fake) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InitError != nil {
		return f.InitError
	}
	f.Initialized = true
	return nil
}

func (f *Fake) DisplayGear(gear int) {
	f.mu.Lock()
	f.Gears = append(f.Gears, gear)
	f.mu.Unlock()
}

func (f *Fake) DisplaySpeed(v float64) {
	f.mu.Lock()
	f.Speeds = append(f.Speeds, v)
	f.mu.Unlock()
}

func (f *Fake) DisplayDistance(v float64) {
	f.mu.Lock()
	f.Distances = append(f.Distances, v)
	f.mu.Unlock()
}

func (f *Fake) DisplayTemperature(v float64) {
	f.mu.Lock()
	f.Temperatures = append(f.Temperatures, v)
	f.mu.Unlock()
}

// Counts returns how many values of each field were displayed, in Field order.
func (f *Fake) Counts() [4]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return [4]int{len(f.Gears), len(f.Speeds), len(f.Distances), len(f.Temperatures)}
}

// Reset clears recorded values.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gears = nil
	f.Speeds = nil
	f.Distances = nil
	f.Temperatures = nil
	f.Initialized = false
	f.InitError = nil
}
