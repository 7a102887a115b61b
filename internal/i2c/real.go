//go:build linux

package i2c

import (
	"fmt"
	"sync"

	"github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
)

// Bus is a drivers.I2C over /dev/i2c-N. A device handle is opened per
// target address on first use.
type Bus struct {
	bus int

	mu      sync.Mutex
	devices map[uint16]*i2c.I2C
}

// NewBus prepares access to /dev/i2c-<bus>. Nothing is opened until Tx.
func NewBus(bus int) (*Bus, error) {
	if bus < 0 {
		return nil, fmt.Errorf("i2c bus %d: must not be negative", bus)
	}
	// go-i2c traces every transfer at debug level.
	if err := logger.ChangePackageLogLevel("i2c", logger.InfoLevel); err != nil {
		return nil, fmt.Errorf("quiet i2c logger: %w", err)
	}
	return &Bus{bus: bus, devices: make(map[uint16]*i2c.I2C)}, nil
}

// Tx writes w to the device at addr, then reads len(r) bytes into r.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, err := b.device(addr)
	if err != nil {
		return err
	}
	if len(w) > 0 {
		if _, err := dev.WriteBytes(w); err != nil {
			return fmt.Errorf("i2c write %#x: %w", addr, err)
		}
	}
	if len(r) > 0 {
		if _, err := dev.ReadBytes(r); err != nil {
			return fmt.Errorf("i2c read %#x: %w", addr, err)
		}
	}
	return nil
}

func (b *Bus) device(addr uint16) (*i2c.I2C, error) {
	if dev, ok := b.devices[addr]; ok {
		return dev, nil
	}
	if addr > 0x7F {
		return nil, fmt.Errorf("i2c address %#x: 10-bit addressing not supported", addr)
	}
	dev, err := i2c.NewI2C(uint8(addr), b.bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c-%d address %#x: %w", b.bus, addr, err)
	}
	b.devices[addr] = dev
	return dev, nil
}

// Close releases every opened device handle.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for addr, dev := range b.devices {
		if err := dev.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %#x: %w", addr, err))
		}
		delete(b.devices, addr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
