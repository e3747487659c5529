package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/telcorain/cmlrain/field"
)

// paletteColors is the fixed RGBA set an image.Paletted frame draws
// from, built once from the band table.
var paletteColors = func() color.Palette {
	p := make(color.Palette, 0, len(palette))
	for _, b := range palette {
		p = append(p, b.Color)
	}
	return p
}()

func paletteIndex(c color.RGBA) uint8 {
	for i, b := range palette {
		if b.Color == c {
			return uint8(i)
		}
	}
	return 0
}

// RenderPNG draws grid as a fixed-palette image, one row of the grid
// per image row, with row 0 at the top (grid row index increases with
// latitude, so rows are flipped to match image conventions).
func RenderPNG(g *field.Grid) ([]byte, error) {
	img := image.NewPaletted(image.Rect(0, 0, g.Cols, g.Rows), paletteColors)
	for r := 0; r < g.Rows; r++ {
		imgRow := g.Rows - 1 - r
		for c := 0; c < g.Cols; c++ {
			v := g.Values[r*g.Cols+c]
			idx := paletteIndex(colorFor(v))
			img.SetColorIndex(c, imgRow, idx)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
