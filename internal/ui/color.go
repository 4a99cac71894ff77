package ui

import (
	"image/color"

	"github.com/avydash/avydash/internal/avalanche"
)

// Color is a 16-bit RGB565 pixel, the native format of the TFT panel.
type Color uint16

// RGB565 packs 8-bit channels into a Color.
func RGB565(r, g, b uint8) Color {
	return Color(uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b>>3))
}

// RGBA expands the color to 8-bit channels, replicating the high bits into
// the low ones so white stays white.
func (c Color) RGBA() color.RGBA {
	r := uint8(c>>11) & 0x1F
	g := uint8(c>>5) & 0x3F
	b := uint8(c) & 0x1F
	return color.RGBA{
		R: r<<3 | r>>2,
		G: g<<2 | g>>4,
		B: b<<3 | b>>2,
		A: 0xFF,
	}
}

// Palette.
var (
	White = RGB565(0xFF, 0xFF, 0xFF)
	Gray  = RGB565(0xF8, 0xF8, 0xF8)
	Black = RGB565(0x00, 0x00, 0x00)
	Green = RGB565(0x00, 0xFF, 0x00)
	Slate = RGB565(0x60, 0x60, 0x60)

	BandAlpineColor        = White
	BandTreelineColor      = RGB565(0xC1, 0xD8, 0x31)
	BandBelowTreelineColor = RGB565(0x6E, 0xA4, 0x69)
)

// Danger colors as published on the public danger scale.
var dangerFill = map[avalanche.DangerRating]Color{
	avalanche.Low:          RGB565(80, 184, 72),
	avalanche.Moderate:     RGB565(255, 242, 0),
	avalanche.Considerable: RGB565(247, 148, 30),
	avalanche.High:         RGB565(237, 28, 36),
	avalanche.Extreme:      RGB565(35, 31, 32),
}

// DangerFill returns the background color for a rating. NoRating is gray.
func DangerFill(r avalanche.DangerRating) Color {
	if c, ok := dangerFill[r]; ok {
		return c
	}
	return Gray
}

// DangerText returns the text color readable on DangerFill(r).
func DangerText(r avalanche.DangerRating) Color {
	if r == avalanche.Extreme {
		return White
	}
	return Black
}

// BandColor returns the label color of an elevation band.
func BandColor(b avalanche.Band) Color {
	switch b {
	case avalanche.BandTreeline:
		return BandTreelineColor
	case avalanche.BandBelowTreeline:
		return BandBelowTreelineColor
	default:
		return BandAlpineColor
	}
}

// BandLabel returns the display name of an elevation band.
func BandLabel(b avalanche.Band) string {
	switch b {
	case avalanche.BandAlpine:
		return "Alpine"
	case avalanche.BandTreeline:
		return "Treeline"
	case avalanche.BandBelowTreeline:
		return "Below Treeline"
	default:
		return "Danger"
	}
}
