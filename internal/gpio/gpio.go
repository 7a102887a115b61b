// Package gpio provides handlebar button input with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"fmt"
)

// Button identifies one physical input: the four joystick directions and
// the reset button.
type Button int

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonReset

	// NumButtons is the number of buttons.
	NumButtons = int(ButtonReset) + 1
)

var buttonNames = [NumButtons]string{"UP", "DOWN", "LEFT", "RIGHT", "RESET"}

func (b Button) String() string {
	if b < 0 || int(b) >= NumButtons {
		return fmt.Sprintf("BUTTON(%d)", int(b))
	}
	return buttonNames[b]
}

// Levels holds the logical level of every button, true = pressed.
type Levels [NumButtons]bool

// Event is a debounced edge of one button.
type Event struct {
	Button  Button
	Pressed bool // true on press, false on release
}

// Reader reads button levels.
type Reader interface {
	// Read returns the logical level of every button.
	// Buttons pull the line to ground, so raw low = pressed.
	Read() (Levels, error)

	// Close releases GPIO resources.
	Close() error
}

// Watcher delivers button edges as they happen.
type Watcher interface {
	// Watch calls handle for every edge until ctx is done.
	Watch(ctx context.Context, handle func(Event)) error
}

// Pins maps buttons to BCM line offsets.
type Pins struct {
	Up, Down, Left, Right, Reset int
}

// DefaultPins is the wiring of the handlebar harness.
var DefaultPins = Pins{Up: 17, Down: 27, Left: 22, Right: 23, Reset: 24}

// Offsets returns the line offsets in Button order.
func (p Pins) Offsets() []int {
	return []int{p.Up, p.Down, p.Left, p.Right, p.Reset}
}

// Validate checks every pin is a distinct non-negative offset.
func (p Pins) Validate() error {
	seen := make(map[int]Button, NumButtons)
	for i, off := range p.Offsets() {
		b := Button(i)
		if off < 0 {
			return fmt.Errorf("pin for %s: offset %d must not be negative", b, off)
		}
		if other, dup := seen[off]; dup {
			return fmt.Errorf("pin %d assigned to both %s and %s", off, other, b)
		}
		seen[off] = b
	}
	return nil
}

// buttonFor returns the button wired to offset.
func (p Pins) buttonFor(offset int) (Button, bool) {
	for i, off := range p.Offsets() {
		if off == offset {
			return Button(i), true
		}
	}
	return 0, false
}
