// Package segment implements C5: decomposing each link's path into one
// or more geographic points, each carrying a reference back to the CML
// whose rain rate should be applied there.
package segment

import (
	"github.com/telcorain/cmlrain/internal/dataset"
	"github.com/telcorain/cmlrain/internal/geo"
)

// Mode selects the segmentation strategy.
type Mode int

const (
	ModeCentralPoint Mode = iota
	ModeUniformLinear
	ModeIntersectionAware
)

// Record is the flat, pointer-free representation of one segmentation
// output point (design note (c)): rather than modeling per-link
// parallel arrays that reference other links' IDs (which can form
// cycles when paths cross), every point is a standalone record.
type Record struct {
	LinkID           int64
	PointIndex       int
	Lon, Lat         float64
	ReferencedLinkID int64
}

// Config holds the segmenter's tunables.
type Config struct {
	Mode          Mode
	UniformSegM   float64 // segment length in meters for ModeUniformLinear
	MeanR         func(linkID int64) float64
}

// Segment computes segmentation records for every link and writes them
// back into each LinkDataset's SegmentPoints/LonArray/LatArray/
// CmlReference parallel arrays. ModeIntersectionAware is applied only to
// links that actually participate in a crossing; every other link falls
// back to ModeUniformLinear (or ModeCentralPoint if UniformSegM is 0).
func Segment(links []dataset.LinkDataset, cfg Config) {
	fallback := cfg.Mode
	if fallback == ModeIntersectionAware {
		fallback = ModeUniformLinear
	}

	var records []Record
	var handled map[int64]bool

	if cfg.Mode == ModeIntersectionAware {
		records, handled = intersectionAware(links, cfg)
	}

	for i := range links {
		link := &links[i]
		if handled[link.CmlID] {
			continue
		}
		var recs []Record
		switch fallback {
		case ModeCentralPoint:
			recs = centralPoint(link)
		default:
			recs = uniformLinear(link, cfg.UniformSegM)
		}
		records = append(records, recs...)
	}

	applyRecords(links, records)
}

func centralPoint(link *dataset.LinkDataset) []Record {
	lon, lat := geo.Midpoint(link.LonA, link.LatA, link.LonB, link.LatB)
	return []Record{{LinkID: link.CmlID, PointIndex: 1, Lon: lon, Lat: lat, ReferencedLinkID: link.CmlID}}
}

// applyRecords groups flat records by LinkID and writes the per-link
// parallel arrays LinkDataset carries downstream (C6 reads these, not
// the flat list).
func applyRecords(links []dataset.LinkDataset, records []Record) {
	byLink := make(map[int64][]Record, len(links))
	for _, r := range records {
		byLink[r.LinkID] = append(byLink[r.LinkID], r)
	}
	for i := range links {
		link := &links[i]
		recs := byLink[link.CmlID]
		link.SegmentPoints = make([]int, len(recs))
		link.LonArray = make([]float64, len(recs))
		link.LatArray = make([]float64, len(recs))
		link.CmlReference = make([]int64, len(recs))
		for j, r := range recs {
			link.SegmentPoints[j] = r.PointIndex
			link.LonArray[j] = r.Lon
			link.LatArray[j] = r.Lat
			link.CmlReference[j] = r.ReferencedLinkID
		}
	}
}
