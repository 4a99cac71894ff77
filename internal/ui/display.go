// Package ui drives what the touch display shows: the active view, the stale
// banner and the draw commands that render them.
package ui

import (
	"github.com/avydash/avydash/pkg/geometry"
)

// Display is the panel driver. Coordinates are screen pixels. An error
// wrapping touch.ErrHardwareFault means the panel is gone for good; any other
// error is treated as a dropped frame and the frame is drawn again later.
type Display interface {
	Clear(c Color) error
	FillPolygon(poly geometry.Polygon, c Color) error
	// DrawText draws a single line of text with its top-left corner at at.
	DrawText(text string, at geometry.Point, c Color) error
}
