// Package sensor reads ambient temperature and humidity.
// The real implementation drives an HTS221 over I2C.
// The fake implementation returns scripted readings for tests.
package sensor

import "errors"

// ErrNotPresent is returned by Init when no sensor answers on the bus.
var ErrNotPresent = errors.New("sensor not present")

// Sensor reads ambient conditions.
type Sensor interface {
	// Init probes and configures the device.
	Init() error

	// ReadTemperature returns the temperature in degrees Celsius.
	ReadTemperature() (float64, error)

	// ReadHumidity returns the relative humidity in percent.
	ReadHumidity() (float64, error)
}

// Fake is a test double returning fixed readings.
type Fake struct {
	// Temperature and Humidity are returned by the read methods.
	Temperature float64
	Humidity    float64

	// InitError, if set, is returned by Init.
	InitError error

	// ReadError, if set, is returned by both read methods.
	ReadError error

	// Initialized tracks whether Init succeeded.
	Initialized bool

	// Reads counts read calls of either kind.
	Reads int
}

// NewFake creates a Fake reporting the given temperature and humidity.
func NewFake(temperature, humidity float64) *Fake {
	return &Fake{Temperature: temperature, Humidity: humidity}
}

// Init returns InitError, or marks the fake initialized.
func (f *Fake) Init() error {
	if f.InitError != nil {
		return f.InitError
	}
	f.Initialized = true
	return nil
}

// ReadTemperature returns Temperature or ReadError.
func (f *Fake) ReadTemperature() (float64, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Temperature, nil
}

// ReadHumidity returns Humidity or ReadError.
func (f *Fake) ReadHumidity() (float64, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.Humidity, nil
}
