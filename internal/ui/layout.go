package ui

import (
	"unicode/utf8"

	"github.com/avydash/avydash/pkg/geometry"
)

// Text metrics of the panel font.
const (
	GlyphWidth  = 7
	LineHeight  = 13
	rowHeight   = 16
	rowPitch    = 18
	rowBoxWidth = 100
	margin      = 10
	hotspotSize = 32
	bannerSize  = 18
	backWidth   = 64
	backHeight  = 22
)

// Layout places the fixed screen elements for a panel size.
type Layout struct {
	Width  float64
	Height float64
}

// DefaultLayout is the 240x360 portrait panel.
func DefaultLayout() Layout {
	return Layout{Width: 240, Height: 360}
}

// Screen is the whole panel.
func (l Layout) Screen() geometry.Rect {
	return geometry.Rect{Max: geometry.Point{X: l.Width, Y: l.Height}}
}

// SettingsHotspot is the top-right square that opens the settings view from
// the map. It takes precedence over any region drawn beneath it.
func (l Layout) SettingsHotspot() geometry.Rect {
	return geometry.Rect{
		Min: geometry.Point{X: l.Width - hotspotSize, Y: 0},
		Max: geometry.Point{X: l.Width, Y: hotspotSize},
	}
}

// Banner is the strip along the bottom edge that warns of a stale forecast.
func (l Layout) Banner() geometry.Rect {
	return geometry.Rect{
		Min: geometry.Point{X: 0, Y: l.Height - bannerSize},
		Max: geometry.Point{X: l.Width, Y: l.Height},
	}
}

// DetailPanel is the area of the region detail view. Taps outside it return
// to the map.
func (l Layout) DetailPanel() geometry.Rect {
	return geometry.Rect{
		Min: geometry.Point{X: margin, Y: margin},
		Max: geometry.Point{X: l.Width - margin, Y: l.Height - bannerSize - margin},
	}
}

// BackButton sits in the top-left corner of the detail panel.
func (l Layout) BackButton() geometry.Rect {
	p := l.DetailPanel().Min
	return geometry.Rect{
		Min: p,
		Max: geometry.Point{X: p.X + backWidth, Y: p.Y + backHeight},
	}
}

// textCenter returns where a line of text must start to be centered on c.
func textCenter(text string, c geometry.Point) geometry.Point {
	return geometry.Point{
		X: c.X - float64(utf8.RuneCountInString(text)*GlyphWidth)/2,
		Y: c.Y - LineHeight/2,
	}
}

// fit truncates text to what fits in width pixels. Every rune takes one glyph.
func fit(text string, width float64) string {
	n := int(width) / GlyphWidth
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	if n <= 1 {
		return prefix(text, n)
	}
	return prefix(text, n-1) + "~"
}

// prefix returns the first n runes of text.
func prefix(text string, n int) string {
	for i := range text {
		if n == 0 {
			return text[:i]
		}
		n--
	}
	return text
}
