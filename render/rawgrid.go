package render

import (
	"encoding/gob"
	"os"

	"github.com/telcorain/cmlrain/field"
)

// rawGridHeader is the small self-describing header preceding the flat
// payload in a raw grid file: dims, resolution and bounds. The HTTP
// gridvalue API uses the dims for its bounds check and converts
// (lon, lat) to (row, col) with the run row's bounds and resolution.
type rawGridHeader struct {
	Cols, Rows int
	Resolution float64
	XMin, XMax float64
	YMin, YMax float64
}

// rawGridFile is gob-encoded as a single value: the header followed by
// the flat row-major payload.
type rawGridFile struct {
	Header  rawGridHeader
	Payload []float64
}

// WriteRawGrid persists g to path as a single gob-encoded value holding
// a small self-describing header and the row-major 2-D payload.
func WriteRawGrid(path string, g *field.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	payload := rawGridFile{
		Header: rawGridHeader{
			Cols:       g.Cols,
			Rows:       g.Rows,
			Resolution: g.Bounds.Resolution,
			XMin:       g.Bounds.XMin,
			XMax:       g.Bounds.XMax,
			YMin:       g.Bounds.YMin,
			YMax:       g.Bounds.YMax,
		},
		Payload: g.Values,
	}
	return gob.NewEncoder(f).Encode(payload)
}

// ReadRawGrid decodes a file written by WriteRawGrid.
func ReadRawGrid(path string) (rawGridHeader, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return rawGridHeader{}, nil, err
	}
	defer f.Close()

	var payload rawGridFile
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return rawGridHeader{}, nil, err
	}
	return payload.Header, payload.Payload, nil
}

// CellAt returns the value at (row, col) in a decoded raw grid payload,
// rounded to 4 decimals as the HTTP gridvalue API requires.
func CellAt(h rawGridHeader, values []float64, row, col int) (float64, bool) {
	if row < 0 || row >= h.Rows || col < 0 || col >= h.Cols {
		return 0, false
	}
	v := values[row*h.Cols+col]
	return roundTo4(v), true
}

func roundTo4(v float64) float64 {
	const scale = 10000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
