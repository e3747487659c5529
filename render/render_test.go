package render

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/telcorain/cmlrain/field"
	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/tsdb"
)

func TestColorForTransparentBelowThreshold(t *testing.T) {
	c := colorFor(0.05)
	if c != transparentColor {
		t.Errorf("expected transparent for sub-threshold value, got %v", c)
	}
	c = colorFor(math.NaN())
	if c != transparentColor {
		t.Errorf("expected transparent for NaN")
	}
}

func TestColorForPicksBand(t *testing.T) {
	c := colorFor(2.0)
	want := palette[6].Color
	if c != want {
		t.Errorf("got %v, want %v", c, want)
	}
}

func TestRenderPNGProducesValidHeader(t *testing.T) {
	g := &field.Grid{Cols: 2, Rows: 2, Values: []float64{0, 1, 2, 3}}
	data, err := RenderPNG(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Errorf("expected PNG signature in output")
	}
}

func TestRawGridRoundTrip(t *testing.T) {
	dir := t.TempDir()
	g := &field.Grid{
		Bounds: field.Bounds{XMin: 14, XMax: 15, YMin: 50, YMax: 51, Resolution: 0.5},
		Cols:   2, Rows: 2,
		Values: []float64{1.1, 2.2, 3.3, 4.4},
	}
	path := filepath.Join(dir, "frame.raw")
	if err := WriteRawGrid(path, g); err != nil {
		t.Fatalf("write: %v", err)
	}
	h, values, err := ReadRawGrid(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if h.Cols != 2 || h.Rows != 2 || h.Resolution != 0.5 {
		t.Errorf("unexpected header: %+v", h)
	}
	v, ok := CellAt(h, values, 1, 1)
	if !ok || math.Abs(v-4.4) > 1e-9 {
		t.Errorf("expected cell (1,1)=4.4, got %v ok=%v", v, ok)
	}
}

func TestCellAtOutOfBounds(t *testing.T) {
	h := rawGridHeader{Cols: 2, Rows: 2}
	_, ok := CellAt(h, []float64{1, 2, 3, 4}, 5, 5)
	if ok {
		t.Error("expected out-of-bounds lookup to fail")
	}
}

type fakeStore struct {
	metadata.Store
	lastGridTime time.Time
	inserted     []metadata.RainGrid
}

func (f *fakeStore) GetLastRainGridTime(ctx context.Context, runID int64) (time.Time, error) {
	return f.lastGridTime, nil
}
func (f *fakeStore) InsertRainGrid(ctx context.Context, runID int64, g metadata.RainGrid) error {
	f.inserted = append(f.inserted, g)
	return nil
}

type fakeTSDB struct {
	tsdb.Client
	written []tsdb.Point
}

func (f *fakeTSDB) WritePoints(ctx context.Context, points []tsdb.Point, bucket string) error {
	f.written = append(f.written, points...)
	return nil
}

func TestWriteFramesIsIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{lastGridTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	ts := &fakeTSDB{}
	w := &Writer{
		Meta:       store,
		TSDB:       ts,
		GridShape:  &field.Grid{Cols: 1, Rows: 1},
		OutputsWeb: dir,
		OutputsRaw: dir,
	}
	frame := field.Frame{Time: store.lastGridTime.Unix(), Values: []float64{1.0}, CmlIDs: []int64{1}}
	if err := w.WriteFrames(context.Background(), 1, []field.Frame{frame}, nil, time.Time{}, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 0 {
		t.Errorf("expected zero new rows for a frame already at the last recorded time, got %d", len(store.inserted))
	}
}

func TestWriteFramesWritesNewerFrame(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{lastGridTime: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	ts := &fakeTSDB{}
	w := &Writer{
		Meta:       store,
		TSDB:       ts,
		GridShape:  &field.Grid{Cols: 1, Rows: 1},
		OutputsWeb: dir,
		OutputsRaw: dir,
	}
	newer := store.lastGridTime.Add(time.Hour)
	frame := field.Frame{Time: newer.Unix(), Values: []float64{1.0}, CmlIDs: []int64{1}}
	if err := w.WriteFrames(context.Background(), 1, []field.Frame{frame}, nil, time.Time{}, false, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected exactly one new row, got %d", len(store.inserted))
	}
	if _, err := os.Stat(filepath.Join(dir, store.inserted[0].FileName)); err != nil {
		t.Errorf("expected PNG file to exist: %v", err)
	}
}

func TestLockPreventsConcurrentWrite(t *testing.T) {
	w := &Writer{}
	if !w.lock() {
		t.Fatal("expected first lock to succeed")
	}
	if w.lock() {
		t.Error("expected second lock to fail while held")
	}
	w.unlock()
	if !w.lock() {
		t.Error("expected lock to succeed again after unlock")
	}
}
