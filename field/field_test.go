package field

import (
	"math"
	"testing"

	"github.com/telcorain/cmlrain/internal/dataset"
)

func TestArangeLenMatchesNumpyStyle(t *testing.T) {
	n := arangeLen(0, 1, 0.25)
	if n != 4 {
		t.Errorf("expected 4 steps, got %d", n)
	}
}

func TestGridRowColRoundTrip(t *testing.T) {
	b := Bounds{XMin: 14.0, XMax: 15.0, YMin: 50.0, YMax: 50.5, Resolution: 0.01}
	lon, lat := 14.23, 50.17
	row, col := b.RowCol(lon, lat)
	wantRow := int((lat - b.YMin) / b.Resolution)
	wantCol := int((lon - b.XMin) / b.Resolution)
	if row != wantRow || col != wantCol {
		t.Errorf("got (%d,%d), want (%d,%d)", row, col, wantRow, wantCol)
	}
}

func TestIDWExactAtSamplePoint(t *testing.T) {
	lons := []float64{14.0, 14.1, 14.2}
	lats := []float64{50.0, 50.0, 50.0}
	values := []float64{1.0, 5.0, 9.0}
	out := IDW(lons, lats, values, []float64{14.1}, []float64{50.0}, IDWParams{Nnear: 3, Power: 2, MaxDistance: 1})
	if math.Abs(out[0]-5.0) > 1e-6 {
		t.Errorf("expected exact value 5.0 at sample location, got %v", out[0])
	}
}

func TestIDWReturnsNaNBeyondMaxDistance(t *testing.T) {
	out := IDW([]float64{14.0}, []float64{50.0}, []float64{3.0}, []float64{20.0}, []float64{60.0}, IDWParams{Nnear: 1, Power: 2, MaxDistance: 0.5})
	if !math.IsNaN(out[0]) {
		t.Errorf("expected NaN for grid point with no in-range neighbor, got %v", out[0])
	}
}

func TestIDWAllNaNInputProducesAllNaNOutput(t *testing.T) {
	out := IDW([]float64{14.0}, []float64{50.0}, []float64{math.NaN()}, []float64{14.0}, []float64{50.0}, IDWParams{Nnear: 1, Power: 2})
	if !math.IsNaN(out[0]) {
		t.Errorf("expected NaN output when every input sample is NaN")
	}
}

func TestAccumulationProducesNonNegativeValues(t *testing.T) {
	link := dataset.LinkDataset{
		CmlID: 1,
		Channels: [2]dataset.Channel{
			{Time: []int64{0, 1800, 3600}, R: []float64{1, 2, 3}},
			{Time: []int64{0, 1800, 3600}, R: []float64{2, 2, 2}},
		},
		SegmentPoints: []int{1},
		LonArray:      []float64{14.0},
		LatArray:      []float64{50.0},
		CmlReference:  []int64{1},
	}
	links := []dataset.LinkDataset{link}
	grid := NewGrid(Bounds{XMin: 13.9, XMax: 14.1, YMin: 49.9, YMax: 50.1, Resolution: 0.05})
	Accumulation(links, grid, IDWParams{Nnear: 1, Power: 2, MaxDistance: 1})
	for _, v := range grid.Values {
		if !math.IsNaN(v) && v < 0 {
			t.Errorf("accumulation grid must not produce negative values, got %v", v)
		}
	}
}

func TestAnimateProducesOnlyFramesAfterWatermark(t *testing.T) {
	link := dataset.LinkDataset{
		CmlID: 1,
		Channels: [2]dataset.Channel{
			{Time: []int64{0, 60, 120}, R: []float64{1, 2, 3}},
			{Time: []int64{0, 60, 120}, R: []float64{1, 2, 3}},
		},
		SegmentPoints: []int{1},
		LonArray:      []float64{14.0},
		LatArray:      []float64{50.0},
		CmlReference:  []int64{1},
	}
	links := []dataset.LinkDataset{link}
	grid := NewGrid(Bounds{XMin: 13.9, XMax: 14.1, YMin: 49.9, YMax: 50.1, Resolution: 0.05})
	p := AnimationParams{StepMinutes: 1, OutputStepMinutes: 1, MinRainValue: 0.1}
	frames := Animate(links, grid, IDWParams{Nnear: 1, Power: 2, MaxDistance: 1}, p, 60, nil)
	for _, f := range frames {
		if f.Time <= 60 {
			t.Errorf("frame at %d must be strictly newer than the watermark", f.Time)
		}
	}
}

func TestAnimateRealtimeRetentionCaps(t *testing.T) {
	existing := []Frame{{Time: 1}, {Time: 2}, {Time: 3}}
	p := AnimationParams{Realtime: true, RetentionFrames: 3}
	out := Animate(nil, NewGrid(Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 1, Resolution: 0.5}), IDWParams{Nnear: 1, Power: 2}, p, 0, existing)
	if len(out) != 3 {
		t.Errorf("expected retention to cap at 3 frames, got %d", len(out))
	}
	if out[len(out)-1].Time != 3 {
		t.Errorf("expected the newest frame to survive retention trimming")
	}
}
