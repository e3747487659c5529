package segment

import (
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"

	"github.com/telcorain/cmlrain/internal/dataset"
)

type point struct{ lon, lat float64 }

func dist(a, b point) float64 {
	return math.Hypot(a.lon-b.lon, a.lat-b.lat)
}

// crossing is one point where two or more link paths meet.
type crossing struct {
	pt    point
	links []int64 // IDs of every link passing through this point, in first-encountered order
}

// intersectionAware finds every pairwise crossing among link paths and
// builds segment records for the links that participate in at least one
// crossing. It returns the records plus the set of link IDs it handled;
// callers segment every other link with the configured fallback mode.
func intersectionAware(links []dataset.LinkDataset, cfg Config) ([]Record, map[int64]bool) {
	crossings := findCrossings(links)
	if len(crossings) == 0 {
		return nil, nil
	}

	handled := make(map[int64]bool)
	var records []Record

	for _, link := range links {
		a := point{link.LonA, link.LatA}
		b := point{link.LonB, link.LatB}

		var onPath []crossing
		for _, c := range crossings {
			if containsLink(c.links, link.CmlID) && !samePoint(c.pt, a) && !samePoint(c.pt, b) {
				onPath = append(onPath, c)
			}
		}
		if len(onPath) == 0 {
			continue
		}
		handled[link.CmlID] = true

		breaks := buildBreakSequence(a, b, onPath)
		records = append(records, segmentPath(link.CmlID, breaks, cfg.MeanR)...)
	}

	return records, handled
}

type breakPoint struct {
	pt       point
	isEnd    bool // true for the link's own two endpoints
	crossing *crossing
}

func buildBreakSequence(a, b point, crossings []crossing) []breakPoint {
	out := make([]breakPoint, 0, len(crossings)+2)
	out = append(out, breakPoint{pt: a, isEnd: true})
	for i := range crossings {
		out = append(out, breakPoint{pt: crossings[i].pt, crossing: &crossings[i]})
	}
	out = append(out, breakPoint{pt: b, isEnd: true})

	sort.Slice(out, func(i, j int) bool { return dist(a, out[i].pt) < dist(a, out[j].pt) })
	return out
}

// segmentPath turns one link's ordered break sequence into Records,
// following the longest-sub-path split and rain-mean tie-break rule.
func segmentPath(linkID int64, breaks []breakPoint, meanR func(int64) float64) []Record {
	type sub struct {
		from, to int // indices into breaks
		length   float64
	}
	var subs []sub
	for i := 0; i < len(breaks)-1; i++ {
		subs = append(subs, sub{i, i + 1, dist(breaks[i].pt, breaks[i+1].pt)})
	}

	longest := 0
	for i, s := range subs {
		if s.length > subs[longest].length {
			longest = i
		}
	}

	var points []point
	var refs []int64
	addPoint := func(p point, ref int64) {
		points = append(points, p)
		refs = append(refs, ref)
	}

	for i, s := range subs {
		from, to := breaks[s.from], breaks[s.to]
		if i == longest {
			bothInterior := !from.isEnd && !to.isEnd
			if bothInterior {
				q1 := lerp(from.pt, to.pt, 1.0/3)
				q2 := lerp(from.pt, to.pt, 2.0/3)
				addPoint(q1, crossingReference(from, meanR, linkID))
				addPoint(q2, crossingReference(to, meanR, linkID))
			} else {
				mid := lerp(from.pt, to.pt, 0.5)
				ref := linkID
				if !from.isEnd {
					ref = crossingReference(from, meanR, linkID)
				} else if !to.isEnd {
					ref = crossingReference(to, meanR, linkID)
				}
				addPoint(mid, ref)
			}
			continue
		}

		// Other sub-paths get a midpoint annotation unless one endpoint has
		// only one crossing CML, in which case only endpoint annotations
		// are emitted.
		oneSided := (!from.isEnd && len(from.crossing.links) == 1) || (!to.isEnd && len(to.crossing.links) == 1)
		if oneSided {
			if !from.isEnd {
				addPoint(from.pt, crossingReference(from, meanR, linkID))
			}
			if !to.isEnd {
				addPoint(to.pt, crossingReference(to, meanR, linkID))
			}
		} else {
			mid := lerp(from.pt, to.pt, 0.5)
			addPoint(mid, linkID)
		}
	}

	out := make([]Record, len(points))
	for i, p := range points {
		out[i] = Record{LinkID: linkID, PointIndex: i + 1, Lon: p.lon, Lat: p.lat, ReferencedLinkID: refs[i]}
	}
	return out
}

// crossingReference picks, among every link crossing at bp, the one with
// the lowest path rain-mean; ties resolve to the first-encountered link.
func crossingReference(bp breakPoint, meanR func(int64) float64, self int64) int64 {
	if bp.isEnd || bp.crossing == nil || meanR == nil {
		return self
	}
	best := bp.crossing.links[0]
	bestMean := meanR(best)
	for _, id := range bp.crossing.links[1:] {
		m := meanR(id)
		if m < bestMean {
			best, bestMean = id, m
		}
	}
	return best
}

func lerp(a, b point, t float64) point {
	return point{a.lon + t*(b.lon-a.lon), a.lat + t*(b.lat-a.lat)}
}

func samePoint(a, b point) bool {
	const eps = 1e-12
	return math.Abs(a.lon-b.lon) < eps && math.Abs(a.lat-b.lat) < eps
}

func containsLink(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// linkBox indexes one link's path bounding box in the rtree that
// findCrossings uses to prune candidate link pairs before the exact
// geometric test.
type linkBox struct {
	idx    int
	bounds *geom.Bounds
}

func (b linkBox) Bounds() *geom.Bounds { return b.bounds }

func pathBounds(a, b point) *geom.Bounds {
	bounds := geom.NewBounds()
	bounds.Extend(geom.Point{X: a.lon, Y: a.lat}.Bounds())
	bounds.Extend(geom.Point{X: b.lon, Y: b.lat}.Bounds())
	return bounds
}

// findCrossings prunes candidate link pairs with an rtree over each path's
// bounding box, then runs the exact pairwise test only on pairs whose boxes
// overlap. geom's own segment-intersection finder (geom.findIntersection)
// is unexported, so the exact test is a hand-rolled parametric check; the
// rtree is what keeps this sub-quadratic for the link counts C7 expects.
func findCrossings(links []dataset.LinkDataset) []crossing {
	tree := rtree.NewTree(25, 50)
	for i, link := range links {
		a := point{link.LonA, link.LatA}
		b := point{link.LonB, link.LatB}
		tree.Insert(linkBox{idx: i, bounds: pathBounds(a, b)})
	}

	var out []crossing
	for i := 0; i < len(links); i++ {
		a0 := point{links[i].LonA, links[i].LatA}
		a1 := point{links[i].LonB, links[i].LatB}

		for _, c := range tree.SearchIntersect(pathBounds(a0, a1)) {
			j := c.(linkBox).idx
			if j <= i {
				continue
			}
			b0 := point{links[j].LonA, links[j].LatA}
			b1 := point{links[j].LonB, links[j].LatB}

			if p, ok := segmentIntersect(a0, a1, b0, b1); ok {
				out = appendCrossing(out, p, links[i].CmlID, links[j].CmlID)
			}
		}
	}
	return out
}

func appendCrossing(out []crossing, p point, idA, idB int64) []crossing {
	for i := range out {
		if samePoint(out[i].pt, p) {
			if !containsLink(out[i].links, idA) {
				out[i].links = append(out[i].links, idA)
			}
			if !containsLink(out[i].links, idB) {
				out[i].links = append(out[i].links, idB)
			}
			return out
		}
	}
	return append(out, crossing{pt: p, links: []int64{idA, idB}})
}

// segmentIntersect returns the intersection point of segments (p0,p1)
// and (p2,p3) if they cross strictly within both segments' interiors.
func segmentIntersect(p0, p1, p2, p3 point) (point, bool) {
	d0 := point{p1.lon - p0.lon, p1.lat - p0.lat}
	d1 := point{p3.lon - p2.lon, p3.lat - p2.lat}
	denom := d0.lon*d1.lat - d0.lat*d1.lon
	if math.Abs(denom) < 1e-15 {
		return point{}, false
	}
	e := point{p2.lon - p0.lon, p2.lat - p0.lat}
	s := (e.lon*d1.lat - e.lat*d1.lon) / denom
	t := (e.lon*d0.lat - e.lat*d0.lon) / denom
	if s <= 0 || s >= 1 || t <= 0 || t >= 1 {
		return point{}, false
	}
	return point{p0.lon + s*d0.lon, p0.lat + s*d0.lat}, true
}
