package field

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/op"
)

// CropMask loads a GeoJSON or shapefile polygon (or multipolygon)
// collection from path, to be applied by Crop against one or more
// grids.
type CropMask struct {
	geom geom.Geom
}

// LoadCropMask reads the crop boundary at path, dispatching on its
// extension: ".shp" decodes an ESRI shapefile polygon layer via
// ctessum/geom's go-shp-backed decoder, anything else is treated as
// GeoJSON.
func LoadCropMask(path string) (*CropMask, error) {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return loadCropMaskShp(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := geojson.Decode(data)
	if err != nil {
		return nil, err
	}
	return &CropMask{geom: g}, nil
}

// loadCropMaskShp reads every polygon record out of a shapefile and
// unions them into a single boundary geometry.
func loadCropMaskShp(path string) (*CropMask, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("field: opening crop shapefile: %w", err)
	}
	defer dec.Close()

	var union geom.Geom
	for {
		var row struct{ Geom geom.Geom }
		if !dec.DecodeRow(&row) {
			break
		}
		if row.Geom == nil {
			continue
		}
		if union == nil {
			union = row.Geom
			continue
		}
		union, err = op.Construct(union, row.Geom, op.UNION)
		if err != nil {
			return nil, fmt.Errorf("field: unioning crop shapefile polygons: %w", err)
		}
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("field: reading crop shapefile: %w", err)
	}
	if union == nil {
		return nil, fmt.Errorf("field: crop shapefile %s contains no polygons", path)
	}
	return &CropMask{geom: union}, nil
}

// Crop sets every cell of g outside the mask polygon's union to NaN,
// leaving cells already NaN untouched.
func Crop(g *Grid, mask *CropMask) error {
	if mask == nil {
		return nil
	}
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			idx := r*g.Cols + c
			if math.IsNaN(g.Values[idx]) {
				continue
			}
			p := geom.Point{X: g.Lon[c], Y: g.Lat[r]}
			inside, err := op.Within(p, mask.geom)
			if err != nil {
				return err
			}
			if !inside {
				g.Values[idx] = math.NaN()
			}
		}
	}
	return nil
}
