package geometry

import (
	"errors"
	"fmt"
)

// Viewport errors.
var (
	ErrEmptyViewport   = errors.New("viewport has zero extent")
	ErrOutsideViewport = errors.New("coordinate outside viewport")
)

// BoundingBox is a geographic bounding box.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains checks if a coordinate is within the bounding box.
func (b BoundingBox) Contains(c LatLon) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lon >= b.MinLon && c.Lon <= b.MaxLon
}

// Viewport maps a geographic bounding box onto a screen rectangle with a
// plain equirectangular projection. At the scale of a single forecast region
// the distortion is far below one pixel on a small panel.
type Viewport struct {
	Box    BoundingBox
	Screen Rect
}

// Validate rejects viewports that would divide by zero.
func (v Viewport) Validate() error {
	if v.Box.MaxLat <= v.Box.MinLat || v.Box.MaxLon <= v.Box.MinLon {
		return ErrEmptyViewport
	}
	if v.Screen.Max.X <= v.Screen.Min.X || v.Screen.Max.Y <= v.Screen.Min.Y {
		return ErrEmptyViewport
	}
	return nil
}

// Project converts a geographic coordinate to a screen point. North is up.
func (v Viewport) Project(c LatLon) Point {
	w := v.Screen.Max.X - v.Screen.Min.X
	h := v.Screen.Max.Y - v.Screen.Min.Y
	fx := (c.Lon - v.Box.MinLon) / (v.Box.MaxLon - v.Box.MinLon)
	fy := (v.Box.MaxLat - c.Lat) / (v.Box.MaxLat - v.Box.MinLat)
	return Point{
		X: v.Screen.Min.X + fx*w,
		Y: v.Screen.Min.Y + fy*h,
	}
}

// ProjectRing converts a sequence of coordinates into a screen polygon. Every
// coordinate must lie inside the viewport's box, otherwise the ring would be
// drawn off screen.
func (v Viewport) ProjectRing(coords []LatLon) (Polygon, error) {
	pg := make(Polygon, len(coords))
	for i, c := range coords {
		if !v.Box.Contains(c) {
			return nil, fmt.Errorf("%w: vertex %d (%g, %g)", ErrOutsideViewport, i, c.Lat, c.Lon)
		}
		pg[i] = v.Project(c)
	}
	return pg, nil
}
