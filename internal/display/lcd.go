package display

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"
)

// LCD geometry and PCF8574 backpack address.
const (
	LCDWidth   = 20
	LCDHeight  = 4
	LCDAddress = 0x27
)

// LCD renders one field per row on an HD44780 behind an I2C expander.
type LCD struct {
	mu   sync.Mutex
	bus  drivers.I2C
	addr uint8
	dev  hd44780i2c.Device
}

// NewLCD creates an LCD on bus at addr. The device is not touched until Init.
func NewLCD(bus drivers.I2C, addr uint8) *LCD {
	if addr == 0 {
		addr = LCDAddress
	}
	return &LCD{bus: bus, addr: addr, dev: hd44780i2c.New(bus, addr)}
}

// Init probes the expander, runs the controller power-on sequence and
// clears the screen. The driver ignores bus errors, so absence is only
// detected by the probe.
func (l *LCD) Init() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.bus.Tx(uint16(l.addr), []byte{0}, nil); err != nil {
		return fmt.Errorf("probe lcd at %#x: %w", l.addr, err)
	}
	if err := l.dev.Configure(hd44780i2c.Config{Width: LCDWidth, Height: LCDHeight}); err != nil {
		return fmt.Errorf("configure lcd: %w", err)
	}
	l.dev.BacklightOn(true)
	l.dev.ClearDisplay()
	return nil
}

func (l *LCD) DisplayGear(gear int)         { l.row(FieldGear, float64(gear)) }
func (l *LCD) DisplaySpeed(v float64)       { l.row(FieldSpeed, v) }
func (l *LCD) DisplayDistance(v float64)    { l.row(FieldDistance, v) }
func (l *LCD) DisplayTemperature(v float64) { l.row(FieldTemperature, v) }

func (l *LCD) row(f Field, v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dev.SetCursor(0, uint8(f))
	l.dev.Print([]byte(pad(Text(f, v), LCDWidth)))
}
