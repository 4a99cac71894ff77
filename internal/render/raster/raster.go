// Package raster is an in-memory display: it draws into an RGBA image that
// can be encoded as PNG. The simulator uses it in place of the panel driver.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/avydash/avydash/internal/ui"
	"github.com/avydash/avydash/pkg/geometry"
)

// Display implements ui.Display on an image.RGBA. Drawing happens on the
// tick loop while the status server reads frames, so access is serialized.
type Display struct {
	mu    sync.RWMutex
	img   *image.RGBA
	fault error
}

// New creates a display of the given size in pixels.
func New(width, height int) *Display {
	return &Display{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Bounds returns the screen rectangle.
func (d *Display) Bounds() image.Rectangle {
	return d.img.Rect
}

// Fail makes every later draw command return err, simulating a dead panel.
func (d *Display) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = err
}

// Clear fills the whole screen.
func (d *Display) Clear(c ui.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fault != nil {
		return d.fault
	}

	draw.Draw(d.img, d.img.Rect, image.NewUniform(c.RGBA()), image.Point{}, draw.Src)
	return nil
}

// FillPolygon fills every pixel whose center lies inside poly, using the
// same containment rule as hit-testing so what is drawn is what is tappable.
func (d *Display) FillPolygon(poly geometry.Polygon, c ui.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fault != nil {
		return d.fault
	}

	b := poly.Bounds()
	area := image.Rect(
		int(math.Floor(b.Min.X)), int(math.Floor(b.Min.Y)),
		int(math.Ceil(b.Max.X)), int(math.Ceil(b.Max.Y)),
	).Intersect(d.img.Rect)

	rgba := c.RGBA()
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if poly.Contains(geometry.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5}) {
				d.img.SetRGBA(x, y, rgba)
			}
		}
	}
	return nil
}

// DrawText draws text in the 7x13 panel font with its top-left corner at at.
func (d *Display) DrawText(text string, at geometry.Point, c ui.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fault != nil {
		return d.fault
	}

	face := basicfont.Face7x13
	drawer := font.Drawer{
		Dst:  d.img,
		Src:  image.NewUniform(c.RGBA()),
		Face: face,
		Dot:  fixed.P(int(math.Round(at.X)), int(math.Round(at.Y))+face.Ascent),
	}
	drawer.DrawString(text)
	return nil
}

// At returns the color of one pixel.
func (d *Display) At(x, y int) color.RGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.img.RGBAAt(x, y)
}

// Frame returns a copy of the current screen.
func (d *Display) Frame() *image.RGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()

	frame := image.NewRGBA(d.img.Rect)
	copy(frame.Pix, d.img.Pix)
	return frame
}

// PNG encodes the current screen.
func (d *Display) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, d.Frame()); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}
