package raster_test

import (
	"bytes"
	"fmt"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/avalanche"
	"github.com/avydash/avydash/internal/render/raster"
	"github.com/avydash/avydash/internal/touch"
	"github.com/avydash/avydash/internal/ui"
	"github.com/avydash/avydash/pkg/geometry"
)

func TestDisplay_Clear(t *testing.T) {
	d := raster.New(240, 360)
	require.NoError(t, d.Clear(ui.Green))

	assert.Equal(t, ui.Green.RGBA(), d.At(0, 0))
	assert.Equal(t, ui.Green.RGBA(), d.At(239, 359))
}

func TestDisplay_FillPolygonMatchesHitTest(t *testing.T) {
	d := raster.New(240, 360)
	require.NoError(t, d.Clear(ui.Black))

	left := geometry.Rect{Max: geometry.Point{X: 120, Y: 100}}.Polygon()
	right := geometry.Rect{Min: geometry.Point{X: 120}, Max: geometry.Point{X: 240, Y: 100}}.Polygon()
	require.NoError(t, d.FillPolygon(left, ui.White))
	require.NoError(t, d.FillPolygon(right, ui.Green))

	assert.Equal(t, ui.White.RGBA(), d.At(119, 50))
	assert.Equal(t, ui.Green.RGBA(), d.At(120, 50))
	assert.Equal(t, ui.Black.RGBA(), d.At(50, 100), "max edge is outside")
}

func TestDisplay_FillPolygonClipped(t *testing.T) {
	d := raster.New(10, 10)
	poly := geometry.Polygon{{X: -20, Y: -20}, {X: 30, Y: -20}, {X: 30, Y: 30}, {X: -20, Y: 30}}

	require.NoError(t, d.FillPolygon(poly, ui.White))
	assert.Equal(t, ui.White.RGBA(), d.At(9, 9))
}

func TestDisplay_DrawText(t *testing.T) {
	d := raster.New(100, 30)
	require.NoError(t, d.Clear(ui.Black))
	require.NoError(t, d.DrawText("HIGH", geometry.Point{X: 2, Y: 2}, ui.White))

	lit := 0
	for y := 0; y < 30; y++ {
		for x := 0; x < 100; x++ {
			if d.At(x, y) == ui.White.RGBA() {
				lit++
				assert.Less(t, x, 2+4*7, "text stays within its glyph cells")
				assert.Less(t, y, 2+13)
			}
		}
	}
	assert.Positive(t, lit)
}

func TestDisplay_PNG(t *testing.T) {
	d := raster.New(24, 36)
	require.NoError(t, d.Clear(ui.DangerFill(avalanche.High)))

	data, err := d.PNG()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 36, img.Bounds().Dy())
}

func TestDisplay_Fail(t *testing.T) {
	d := raster.New(10, 10)
	d.Fail(fmt.Errorf("%w: panel disconnected", touch.ErrHardwareFault))

	assert.ErrorIs(t, d.Clear(ui.Black), touch.ErrHardwareFault)
	assert.ErrorIs(t, d.FillPolygon(geometry.Polygon{}, ui.Black), touch.ErrHardwareFault)
	assert.ErrorIs(t, d.DrawText("x", geometry.Point{}, ui.Black), touch.ErrHardwareFault)
}

var _ ui.Display = (*raster.Display)(nil)
