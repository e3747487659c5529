package segment

import (
	"math"
	"testing"

	"github.com/telcorain/cmlrain/internal/dataset"
)

func TestCentralPointIsEndpointAverage(t *testing.T) {
	link := dataset.LinkDataset{CmlID: 1, LonA: 14.0, LatA: 50.0, LonB: 15.0, LatB: 50.2}
	recs := centralPoint(&link)
	if len(recs) != 1 {
		t.Fatalf("expected exactly one point, got %d", len(recs))
	}
	wantLon, wantLat := (14.0+15.0)/2, (50.0+50.2)/2
	if math.Abs(recs[0].Lon-wantLon) > 1e-9 || math.Abs(recs[0].Lat-wantLat) > 1e-9 {
		t.Errorf("got (%v,%v), want (%v,%v)", recs[0].Lon, recs[0].Lat, wantLon, wantLat)
	}
	if recs[0].ReferencedLinkID != link.CmlID {
		t.Errorf("central point must reference its own link")
	}
}

func TestUniformLinearEquidistantPoints(t *testing.T) {
	link := dataset.LinkDataset{
		CmlID: 2,
		LonA:  14.0, LatA: 50.0,
		LonB: 14.0, LatB: 50.01, // short north-south link
	}
	link.LengthKM = 1.112 // ~1km, matches ~0.01 deg latitude
	recs := uniformLinear(&link, 300)
	if len(recs) < 3 {
		t.Fatalf("expected multiple segment points, got %d", len(recs))
	}
	step := recs[1].Lat - recs[0].Lat
	for i := 1; i < len(recs)-1; i++ {
		got := recs[i+1].Lat - recs[i].Lat
		if math.Abs(got-step) > 1e-6 {
			t.Errorf("expected equidistant points, step %v differs from %v at index %d", got, step, i)
		}
	}
}

func TestUniformLinearFallsBackToCentralWhenShort(t *testing.T) {
	link := dataset.LinkDataset{CmlID: 3, LonA: 14.0, LatA: 50.0, LonB: 14.001, LatB: 50.0, LengthKM: 0.05}
	recs := uniformLinear(&link, 500)
	if len(recs) != 1 {
		t.Fatalf("expected fallback to single central point, got %d", len(recs))
	}
}

func TestApplyRecordsGroupsByLink(t *testing.T) {
	links := []dataset.LinkDataset{{CmlID: 10}, {CmlID: 20}}
	records := []Record{
		{LinkID: 10, PointIndex: 1, Lon: 1, Lat: 1, ReferencedLinkID: 10},
		{LinkID: 10, PointIndex: 2, Lon: 2, Lat: 2, ReferencedLinkID: 10},
		{LinkID: 20, PointIndex: 1, Lon: 3, Lat: 3, ReferencedLinkID: 20},
	}
	applyRecords(links, records)
	if len(links[0].SegmentPoints) != 2 || len(links[1].SegmentPoints) != 1 {
		t.Fatalf("expected 2 and 1 segment points, got %d and %d", len(links[0].SegmentPoints), len(links[1].SegmentPoints))
	}
}

func TestSegmentIntersectFindsCrossing(t *testing.T) {
	p, ok := segmentIntersect(point{0, 0}, point{2, 2}, point{0, 2}, point{2, 0})
	if !ok {
		t.Fatal("expected crossing diagonals to intersect")
	}
	if math.Abs(p.lon-1) > 1e-9 || math.Abs(p.lat-1) > 1e-9 {
		t.Errorf("expected intersection at (1,1), got (%v,%v)", p.lon, p.lat)
	}
}

func TestSegmentIntersectParallelNoCrossing(t *testing.T) {
	_, ok := segmentIntersect(point{0, 0}, point{1, 0}, point{0, 1}, point{1, 1})
	if ok {
		t.Error("parallel segments must not report a crossing")
	}
}

func TestIntersectionAwareHandlesOnlyCrossingLinks(t *testing.T) {
	links := []dataset.LinkDataset{
		{CmlID: 1, LonA: 0, LatA: 1, LonB: 2, LatB: 1}, // horizontal
		{CmlID: 2, LonA: 1, LatA: 0, LonB: 1, LatB: 2}, // vertical, crosses link 1
		{CmlID: 3, LonA: 5, LatA: 5, LonB: 6, LatB: 5}, // isolated
	}
	records, handled := intersectionAware(links, Config{MeanR: func(int64) float64 { return 0 }})
	if !handled[1] || !handled[2] {
		t.Errorf("expected crossing links 1 and 2 to be handled, got %v", handled)
	}
	if handled[3] {
		t.Errorf("isolated link 3 must not be handled by intersection mode")
	}
	if len(records) == 0 {
		t.Error("expected records for the crossing links")
	}
}
