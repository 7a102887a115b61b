// Package i2c exposes a Linux I2C adapter as a tinygo drivers.I2C bus so
// the same device drivers run on a Raspberry Pi and on microcontrollers.
package i2c

// DefaultBus is the I2C adapter number wired to the header pins of a Pi.
const DefaultBus = 1
