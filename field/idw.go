// Package field implements C6: temporal resampling of per-link rain
// rates into animation frames and an accumulation total, inverse-
// distance-weighted spatial interpolation onto a rectangular grid, and
// optional cropping to a polygon mask.
package field

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// samplePoint is one (lon, lat, value) observation fed to the
// interpolator; it implements kdtree.Comparable over the two spatial
// dimensions.
type samplePoint struct {
	lon, lat, value float64
}

func (p samplePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(samplePoint)
	if d == 0 {
		return p.lon - q.lon
	}
	return p.lat - q.lat
}

func (p samplePoint) Dims() int { return 2 }

func (p samplePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(samplePoint)
	dx := p.lon - q.lon
	dy := p.lat - q.lat
	return dx*dx + dy*dy
}

type samplePoints []samplePoint

func (s samplePoints) Index(i int) kdtree.Comparable { return s[i] }
func (s samplePoints) Len() int                      { return len(s) }
func (s samplePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(samplePlane{samplePoints: s, Dim: d}, kdtree.MedianOfMedians(samplePlane{samplePoints: s, Dim: d}))
}
func (s samplePoints) Slice(start, end int) kdtree.Interface { return s[start:end] }

// samplePlane adapts samplePoints to kdtree.SortSlicer for a fixed
// dimension, used only during tree construction.
type samplePlane struct {
	samplePoints
	kdtree.Dim
}

func (p samplePlane) Less(i, j int) bool {
	return p.samplePoints[i].Compare(p.samplePoints[j], p.Dim) < 0
}
func (p samplePlane) Pivot() int {
	return kdtree.Partition(p, kdtree.MedianOfMedians(p))
}
func (p samplePlane) Slice(start, end int) kdtree.SortSlicer {
	p.samplePoints = p.samplePoints[start:end]
	return p
}
func (p samplePlane) Swap(i, j int) {
	p.samplePoints[i], p.samplePoints[j] = p.samplePoints[j], p.samplePoints[i]
}

// IDWParams configures the inverse-distance-weighted interpolator.
type IDWParams struct {
	Nnear       int
	Power       float64
	MaxDistance float64 // degrees; neighbors beyond this are excluded
}

// IDW interpolates (lon, lat, value) observations onto every point of
// (gridLon, gridLat), skipping NaN observations. Grid cells with no
// neighbor inside MaxDistance are left as NaN.
func IDW(lons, lats, values []float64, gridLon, gridLat []float64, p IDWParams) []float64 {
	var points samplePoints
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		points = append(points, samplePoint{lon: lons[i], lat: lats[i], value: v})
	}
	out := make([]float64, len(gridLon))
	if len(points) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	tree := kdtree.New(points, true)
	nnear := p.Nnear
	if nnear < 1 {
		nnear = 1
	}

	for i := range gridLon {
		target := samplePoint{lon: gridLon[i], lat: gridLat[i]}
		keeper := kdtree.NewNKeeper(nnear)
		tree.NearestSet(keeper, target)

		neighbors := keeper.Heap
		sort.Sort(neighbors)

		var wSum, vSum float64
		var any bool
		for _, n := range neighbors {
			d := math.Sqrt(n.Dist)
			if p.MaxDistance > 0 && d > p.MaxDistance {
				continue
			}
			sp := n.Comparable.(samplePoint)
			any = true
			if d < 1e-12 {
				wSum, vSum, any = 1, sp.value, true
				break
			}
			w := 1 / math.Pow(d, p.Power)
			wSum += w
			vSum += w * sp.value
		}
		if !any || wSum == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = vSum / wSum
	}
	return out
}
