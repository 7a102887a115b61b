package display

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	panelBG = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	panelFG = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
)

// Framebuffer is an in-memory RGBA pixel display implementing the tinygo
// drivers.Displayer interface. Display writes a PNG snapshot when a path
// is set.
type Framebuffer struct {
	img  *image.RGBA
	path string

	// Frames counts calls to Display.
	Frames int
}

// NewFramebuffer creates a width by height framebuffer. An empty path
// keeps frames in memory only.
func NewFramebuffer(width, height int, path string) *Framebuffer {
	return &Framebuffer{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		path: path,
	}
}

func (fb *Framebuffer) Size() (x, y int16) {
	b := fb.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (fb *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	fb.img.SetRGBA(int(x), int(y), c)
}

// Display flushes the frame to the PNG file, if any.
func (fb *Framebuffer) Display() error {
	fb.Frames++
	if fb.path == "" {
		return nil
	}
	tmp := fb.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	if err := png.Encode(f, fb.img); err != nil {
		f.Close()
		return fmt.Errorf("encode frame: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close frame: %w", err)
	}
	return os.Rename(tmp, fb.path)
}

// Image returns the live framebuffer.
func (fb *Framebuffer) Image() *image.RGBA {
	return fb.img
}

func (fb *Framebuffer) fill(x, y, w, h int, c color.RGBA) {
	for iy := y; iy < y+h; iy++ {
		for ix := x; ix < x+w; ix++ {
			fb.img.SetRGBA(ix, iy, c)
		}
	}
}

// Panel renders the readings as text rows on a Framebuffer.
type Panel struct {
	mu         sync.Mutex
	fb         *Framebuffer
	font       tinyfont.Fonter
	rowHeight  int16
	fontOffset int16
	lastErr    error
}

// NewPanel creates a Panel drawing into fb.
func NewPanel(fb *Framebuffer) *Panel {
	return &Panel{
		fb:         fb,
		font:       &proggy.TinySZ8pt7b,
		rowHeight:  12,
		fontOffset: 9,
	}
}

// Init clears the panel and checks it has room for every row.
func (p *Panel) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, h := p.fb.Size()
	if w <= 0 || h < p.rowHeight*int16(numFields) {
		return fmt.Errorf("panel %dx%d too small for %d rows", w, h, numFields)
	}
	p.fb.fill(0, 0, int(w), int(h), panelBG)
	return p.fb.Display()
}

func (p *Panel) DisplayGear(gear int)         { p.row(FieldGear, float64(gear)) }
func (p *Panel) DisplaySpeed(v float64)       { p.row(FieldSpeed, v) }
func (p *Panel) DisplayDistance(v float64)    { p.row(FieldDistance, v) }
func (p *Panel) DisplayTemperature(v float64) { p.row(FieldTemperature, v) }

// Err returns the last flush error, if any.
func (p *Panel) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *Panel) row(f Field, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, _ := p.fb.Size()
	y := int16(f) * p.rowHeight
	p.fb.fill(0, int(y), int(w), int(p.rowHeight), panelBG)
	tinyfont.WriteLine(p.fb, p.font, 2, y+p.fontOffset, Text(f, v), panelFG)
	p.lastErr = p.fb.Display()
}
