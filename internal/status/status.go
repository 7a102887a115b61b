// Package status provides a thread-safe view of the latest bike readings.
// Scheduler tasks write it; display tasks and the report path read it.
package status

import (
	"sync"
	"time"
)

// Config contains run configuration for display.
type Config struct {
	Strategy     string
	Display      string
	Sensor       string
	MajorCycleMs int64
	Utilization  float64 // declared load of the schedule
}

// Readings are the values computed by the scheduled tasks.
type Readings struct {
	Gear        int
	GearSize    int
	Cadence     time.Duration
	Speed       float64 // meters per hour
	Distance    float64 // meters
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent
}

// TaskTiming summarises the measured timing of one task.
type TaskTiming struct {
	Task           string
	Count          int
	Period         time.Duration
	Computation    time.Duration
	MaxComputation time.Duration
}

// Snapshot is a point-in-time view of bike state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Readings
	Resets           int
	LastResetLatency time.Duration
	SensorOK         bool
	DisplayOK        bool
	StartTime        time.Time
	Now              time.Time
	Config           Config
	Tasks            []TaskTiming
}

// Uptime returns the duration since the bike computer started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable bike state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetGear records the sampled gear and its gear size.
func (t *Tracker) SetGear(gear, size int) {
	t.mu.Lock()
	t.snap.Gear = gear
	t.snap.GearSize = size
	t.mu.Unlock()
}

// SetMotion records the latest speed and distance and the cadence they
// were computed with.
func (t *Tracker) SetMotion(cadence time.Duration, speed, distance float64) {
	t.mu.Lock()
	t.snap.Cadence = cadence
	t.snap.Speed = speed
	t.snap.Distance = distance
	t.mu.Unlock()
}

// SetClimate records the latest ambient readings.
func (t *Tracker) SetClimate(temperature, humidity float64) {
	t.mu.Lock()
	t.snap.Temperature = temperature
	t.snap.Humidity = humidity
	t.mu.Unlock()
}

// RecordReset counts a handled reset request and its response time.
func (t *Tracker) RecordReset(latency time.Duration) {
	t.mu.Lock()
	t.snap.Resets++
	t.snap.LastResetLatency = latency
	t.snap.Distance = 0
	t.mu.Unlock()
}

// SetDevices records whether the sensor and display initialised.
func (t *Tracker) SetDevices(sensorOK, displayOK bool) {
	t.mu.Lock()
	t.snap.SensorOK = sensorOK
	t.snap.DisplayOK = displayOK
	t.mu.Unlock()
}

// Readings returns the latest computed values.
func (t *Tracker) Readings() Readings {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap.Readings
}

// Snapshot returns a point-in-time copy of the bike state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
