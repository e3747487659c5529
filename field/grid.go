package field

import "math"

// Bounds is the rectangular extent the interpolated grid covers.
type Bounds struct {
	XMin, XMax, YMin, YMax, Resolution float64
}

// Grid is a row-major 2-D array of interpolated values plus the
// coordinate axes it was built from.
type Grid struct {
	Bounds Bounds
	Cols   int
	Rows   int
	Lon    []float64 // length Cols
	Lat    []float64 // length Rows
	Values []float64 // length Cols*Rows, row-major (row*Cols+col)
}

// NewGrid builds the coordinate axes for b, matching
// arange(x_min, x_max, resolution) x arange(y_min, y_max, resolution).
func NewGrid(b Bounds) *Grid {
	cols := arangeLen(b.XMin, b.XMax, b.Resolution)
	rows := arangeLen(b.YMin, b.YMax, b.Resolution)
	g := &Grid{Bounds: b, Cols: cols, Rows: rows}
	g.Lon = arange(b.XMin, cols, b.Resolution)
	g.Lat = arange(b.YMin, rows, b.Resolution)
	g.Values = make([]float64, cols*rows)
	return g
}

func arangeLen(min, max, resolution float64) int {
	if resolution <= 0 || max <= min {
		return 0
	}
	return int(math.Ceil((max - min) / resolution))
}

func arange(start float64, n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// FlatCoords expands the grid axes into parallel (lon, lat) slices
// suitable for feeding IDW.
func (g *Grid) FlatCoords() (lon, lat []float64) {
	lon = make([]float64, len(g.Values))
	lat = make([]float64, len(g.Values))
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			idx := r*g.Cols + c
			lon[idx] = g.Lon[c]
			lat[idx] = g.Lat[r]
		}
	}
	return lon, lat
}

// RowCol converts a (lon, lat) coordinate to grid indices using the
// round-trip contract: row = floor((lat-y_min)/resolution), col =
// floor((lon-x_min)/resolution).
func (b Bounds) RowCol(lon, lat float64) (row, col int) {
	row = int((lat - b.YMin) / b.Resolution)
	col = int((lon - b.XMin) / b.Resolution)
	return row, col
}
