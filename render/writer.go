package render

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/telcorain/cmlrain/errkind"
	"github.com/telcorain/cmlrain/field"
	"github.com/telcorain/cmlrain/internal/dataset"
	"github.com/telcorain/cmlrain/metadata"
	"github.com/telcorain/cmlrain/tsdb"
)

// Writer persists animation frames to disk and to the metadata and
// time-series stores, and enforces the manager_locked discipline that
// keeps the scheduler from starting a new iteration while a write is in
// flight.
type Writer struct {
	Meta   metadata.Store
	TSDB   tsdb.Client
	Bucket string

	GridShape  *field.Grid // Cols/Rows/Bounds/Lon/Lat shared by every frame
	OutputsWeb string
	OutputsRaw string

	mu     sync.Mutex
	locked bool
}

// Locked reports whether a write is currently in flight.
func (w *Writer) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

func (w *Writer) lock() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return false
	}
	w.locked = true
	return true
}

func (w *Writer) unlock() {
	w.mu.Lock()
	w.locked = false
	w.mu.Unlock()
}

// WriteFrames implements the two-stream write: PNG+metadata for every
// frame not yet persisted, then time-series points newer than the
// effective watermark. wipe, if non-nil, is joined before any
// time-series point is written (the forced-rewrite flow). forced skips
// the "strictly newer than since" half of the persistence check, so the
// latest frame is rewritten even if it was already recorded.
func (w *Writer) WriteFrames(ctx context.Context, runID int64, frames []field.Frame, links []dataset.LinkDataset, since time.Time, forced bool, wipe tsdb.WipeHandle) error {
	if !w.lock() {
		return errkind.New(errkind.WriterFailure, "writer already in flight")
	}
	defer w.unlock()

	lastRecorded, err := w.Meta.GetLastRainGridTime(ctx, runID)
	if err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "reading last recorded grid time")
	}

	for _, f := range frames {
		t := time.Unix(f.Time, 0).UTC()
		recorded := t.After(lastRecorded)
		if forced {
			recorded = !t.Before(lastRecorded)
		}
		persistable := recorded && (forced || t.After(since))
		if !persistable {
			continue
		}
		if err := w.writeFrame(ctx, runID, t, f); err != nil {
			return err
		}
	}

	if wipe != nil {
		if err := wipe.Join(ctx); err != nil {
			return errkind.Wrap(errkind.WriterFailure, err, "joining output bucket wipe")
		}
	}

	effectiveWatermark := lastRecorded
	if !forced && since.After(effectiveWatermark) {
		effectiveWatermark = since
	}

	var points []tsdb.Point
	for _, f := range frames {
		t := time.Unix(f.Time, 0).UTC()
		if !t.After(effectiveWatermark) {
			continue
		}
		for _, link := range links {
			if !containsID(f.CmlIDs, link.CmlID) {
				continue
			}
			i := timeIndex(link, t)
			if i < 0 {
				continue
			}
			points = append(points, tsdb.Point{CmlID: link.CmlID, RainIntensity: link.MeanRAt(i), Time: t.Truncate(time.Second)})
		}
	}
	if len(points) > 0 {
		if err := w.TSDB.WritePoints(ctx, points, w.Bucket); err != nil {
			return errkind.Wrap(errkind.WriterFailure, err, "writing time-series points")
		}
	}
	return nil
}

func (w *Writer) writeFrame(ctx context.Context, runID int64, t time.Time, f field.Frame) error {
	name := t.Format("2006-01-02_1504") + ".png"

	grid := &field.Grid{Bounds: w.GridShape.Bounds, Cols: w.GridShape.Cols, Rows: w.GridShape.Rows, Lon: w.GridShape.Lon, Lat: w.GridShape.Lat, Values: f.Values}

	png, err := RenderPNG(grid)
	if err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "rendering PNG for frame %s", name)
	}
	if err := os.WriteFile(filepath.Join(w.OutputsWeb, name), png, 0644); err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "writing PNG file %s", name)
	}

	if err := WriteRawGrid(filepath.Join(w.OutputsRaw, rawName(name)), grid); err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "writing raw grid file for frame %s", name)
	}

	row := metadata.RainGrid{
		RunID:    runID,
		Time:     t,
		Links:    f.CmlIDs,
		FileName: name,
		RMedian:  nanMedian(f.Values),
		RMean:    nanMean(f.Values),
		RMax:     nanMax(f.Values),
	}
	if err := w.Meta.InsertRainGrid(ctx, runID, row); err != nil {
		return errkind.Wrap(errkind.WriterFailure, err, "inserting rain grid row for frame %s", name)
	}
	return nil
}

func rawName(pngName string) string {
	return pngName[:len(pngName)-len(filepath.Ext(pngName))] + ".raw"
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func timeIndex(link dataset.LinkDataset, t time.Time) int {
	target := t.Unix()
	times := link.SharedTimeIndex()
	for i, v := range times {
		if v == target {
			return i
		}
	}
	return -1
}

func nanMedian(x []float64) float64 {
	vals := finiteValues(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	sortFloats(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 0 {
		return (vals[mid-1] + vals[mid]) / 2
	}
	return vals[mid]
}

func nanMean(x []float64) float64 {
	vals := finiteValues(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func nanMax(x []float64) float64 {
	vals := finiteValues(x)
	if len(vals) == 0 {
		return math.NaN()
	}
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func finiteValues(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func sortFloats(x []float64) {
	for i := 1; i < len(x); i++ {
		for j := i; j > 0 && x[j-1] > x[j]; j-- {
			x[j-1], x[j] = x[j], x[j-1]
		}
	}
}
