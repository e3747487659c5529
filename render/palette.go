// Package render implements C7: rendering an interpolated grid to a
// fixed-palette PNG, persisting a self-describing raw array alongside
// it, and writing the frame's metadata and per-CML time-series points.
package render

import (
	"image/color"
	"math"
)

// band is one piecewise interval of the CHMI-derived rain scale: values
// in [Min, Max) map to Color.
type band struct {
	Min, Max float64
	Color    color.RGBA
}

// transparentColor is used for NaN cells and values below 0.1 mm/h.
var transparentColor = color.RGBA{0, 0, 0, 0}

// palette is the bit-exact 15-interval rain scale: fourteen color bands
// keyed on mm/h boundaries derived from a Marshall-Palmer inversion of
// dBZ at 4 dBZ steps between 4 and 56 dBZ, plus the transparent band
// below 0.1 mm/h.
var palette = []band{
	{0.0, 0.1, transparentColor},
	{0.1, 0.2, color.RGBA{0x90, 0xf0, 0xf0, 0xff}},
	{0.2, 0.35, color.RGBA{0x60, 0xd0, 0xf0, 0xff}},
	{0.35, 0.6, color.RGBA{0x30, 0xa0, 0xf0, 0xff}},
	{0.6, 1.0, color.RGBA{0x20, 0x70, 0xe0, 0xff}},
	{1.0, 1.7, color.RGBA{0x10, 0xb0, 0x40, 0xff}},
	{1.7, 3.0, color.RGBA{0x40, 0xd0, 0x20, 0xff}},
	{3.0, 5.0, color.RGBA{0xa0, 0xe0, 0x10, 0xff}},
	{5.0, 8.6, color.RGBA{0xf0, 0xf0, 0x20, 0xff}},
	{8.6, 14.7, color.RGBA{0xf0, 0xc0, 0x10, 0xff}},
	{14.7, 25.2, color.RGBA{0xf0, 0x90, 0x10, 0xff}},
	{25.2, 43.1, color.RGBA{0xf0, 0x50, 0x10, 0xff}},
	{43.1, 73.8, color.RGBA{0xe0, 0x20, 0x20, 0xff}},
	{73.8, 126.4, color.RGBA{0xb0, 0x10, 0x60, 0xff}},
	{126.4, 1 << 30, color.RGBA{0x70, 0x10, 0xa0, 0xff}},
}

// colorFor returns the palette color for a grid cell value, NaN or
// negative cells and values under 0.1 mm/h rendering transparent.
func colorFor(v float64) color.RGBA {
	if math.IsNaN(v) || v < 0.1 {
		return transparentColor
	}
	for _, b := range palette[1:] {
		if v >= b.Min && v < b.Max {
			return b.Color
		}
	}
	return palette[len(palette)-1].Color
}
