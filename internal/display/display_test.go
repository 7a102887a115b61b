package display

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestText(t *testing.T) {
	tests := []struct {
		field Field
		value float64
		want  string
	}{
		{FieldGear, 5, "Gear  5"},
		{FieldSpeed, 33600, "Speed 33.6 km/h"},
		{FieldDistance, 9333.3, "Dist  9.33 km"},
		{FieldTemperature, 21.46, "Temp  21.5 C"},
		{Field(99), 1, ""},
	}
	for _, tt := range tests {
		if got := Text(tt.field, tt.value); got != tt.want {
			t.Errorf("Text(%d, %v): got %q, want %q", tt.field, tt.value, got, tt.want)
		}
	}
}

func TestPad(t *testing.T) {
	if got := pad("abc", 5); got != "abc  " {
		t.Errorf("pad short: got %q", got)
	}
	if got := pad("abcdefg", 5); got != "abcde" {
		t.Errorf("pad long: got %q", got)
	}
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	if err := term.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	term.DisplayGear(3)
	term.DisplaySpeed(20000)
	term.DisplayDistance(1500)
	term.DisplayTemperature(19)

	out := buf.String()
	for _, want := range []string{"Gear  3\r\n", "Speed 20.0 km/h\r\n", "Dist  1.50 km\r\n", "Temp  19.0 C\r\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// flakyWriter fails while broken is set.
type flakyWriter struct {
	broken bool
	buf    bytes.Buffer
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.broken {
		return 0, errors.New("write: broken pipe")
	}
	return w.buf.Write(p)
}

func TestTerminalWriteFailure(t *testing.T) {
	w := &flakyWriter{broken: true}
	term := NewTerminal(w)
	if err := term.Init(); err == nil {
		t.Fatal("expected Init error on broken writer")
	}

	// Display calls never fail; they keep going once the stream recovers.
	term.DisplayGear(1)
	if !term.failed {
		t.Error("expected failed state")
	}
	w.broken = false
	term.DisplayGear(2)
	if term.failed {
		t.Error("expected recovery")
	}
	if got := w.buf.String(); got != "Gear  2\r\n" {
		t.Errorf("output: got %q", got)
	}
}

func TestTeeDropsFailedSinks(t *testing.T) {
	good := NewFake()
	bad := NewFake()
	bad.InitError = errors.New("no device")

	tee := NewTee(good, bad)
	if err := tee.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if tee.Len() != 1 {
		t.Errorf("Len: got %d, want 1", tee.Len())
	}

	tee.DisplayGear(4)
	tee.DisplaySpeed(1)
	tee.DisplayDistance(2)
	tee.DisplayTemperature(3)
	if good.Counts() != [4]int{1, 1, 1, 1} {
		t.Errorf("good counts: got %v", good.Counts())
	}
	if bad.Counts() != [4]int{} {
		t.Errorf("bad counts: got %v", bad.Counts())
	}
}

func TestTeeAllFailed(t *testing.T) {
	bad := NewFake()
	bad.InitError = errors.New("no device")
	if err := NewTee(bad).Init(); err == nil {
		t.Error("expected error when every sink fails")
	}
}

func TestPanelRendersRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.png")
	fb := NewFramebuffer(128, 64, path)
	p := NewPanel(fb)
	if err := p.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	p.DisplaySpeed(33600)
	if err := p.Err(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	// Some pixel in the speed row is foreground, the temperature row is blank.
	if !rowHasInk(fb, int(FieldSpeed)*12, 12) {
		t.Error("speed row has no ink")
	}
	if rowHasInk(fb, int(FieldTemperature)*12, 12) {
		t.Error("temperature row should be blank")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open frame: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if img.Bounds().Dx() != 128 || img.Bounds().Dy() != 64 {
		t.Errorf("frame size: got %v", img.Bounds())
	}
	if fb.Frames != 2 {
		t.Errorf("Frames: got %d, want 2", fb.Frames)
	}
}

func rowHasInk(fb *Framebuffer, y, h int) bool {
	img := fb.Image()
	for iy := y; iy < y+h; iy++ {
		for ix := 0; ix < img.Bounds().Dx(); ix++ {
			if img.RGBAAt(ix, iy) == panelFG {
				return true
			}
		}
	}
	return false
}

func TestPanelTooSmall(t *testing.T) {
	if err := NewPanel(NewFramebuffer(128, 16, "")).Init(); err == nil {
		t.Error("expected error for a panel shorter than four rows")
	}
}

// recordingBus captures I2C writes to a character LCD backpack.
type recordingBus struct {
	mu     sync.Mutex
	writes int
	fail   bool
}

func (b *recordingBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("i2c: no device")
	}
	b.writes++
	return nil
}

func TestLCDProbeFailure(t *testing.T) {
	lcd := NewLCD(&recordingBus{fail: true}, 0)
	if err := lcd.Init(); err == nil {
		t.Error("expected probe error")
	}
}

func TestLCDInitAndRow(t *testing.T) {
	if testing.Short() {
		t.Skip("controller power-on sequence sleeps about a second")
	}
	bus := &recordingBus{}
	lcd := NewLCD(bus, LCDAddress)
	if err := lcd.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	before := bus.writes
	lcd.DisplayGear(2)
	if bus.writes <= before {
		t.Error("expected bus traffic for a row update")
	}
}

func TestFakeReset(t *testing.T) {
	f := NewFake()
	f.DisplayGear(1)
	f.Reset()
	if f.Counts() != [4]int{} {
		t.Errorf("counts after Reset: got %v", f.Counts())
	}
}
