package segment

import (
	"math"

	"github.com/telcorain/cmlrain/internal/dataset"
	"github.com/telcorain/cmlrain/internal/geo"
)

// uniformLinear splits a link into equal-length segments when its length
// meets segSizeM, emitting floor(n)+1 points evenly spaced from endpoint
// A to endpoint B; all reference the link's own ID. Links shorter than
// segSizeM fall back to a single central point.
func uniformLinear(link *dataset.LinkDataset, segSizeM float64) []Record {
	lengthM := link.LengthKM * 1000
	if segSizeM <= 0 || lengthM < segSizeM {
		return centralPoint(link)
	}
	n := lengthM / segSizeM
	count := int(math.Floor(n)) + 1
	if count < 2 {
		return centralPoint(link)
	}

	lons := geo.LinSpace(link.LonA, link.LonB, count)
	lats := geo.LinSpace(link.LatA, link.LatB, count)

	recs := make([]Record, count)
	for i := 0; i < count; i++ {
		recs[i] = Record{
			LinkID:           link.CmlID,
			PointIndex:       i + 1,
			Lon:              lons[i],
			Lat:              lats[i],
			ReferencedLinkID: link.CmlID,
		}
	}
	return recs
}
