package field

import (
	"math"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// Frame is one animation time step: the interpolated grid plus the set
// of CML IDs that contributed a non-NaN sample to it.
type Frame struct {
	Time   int64
	Values []float64 // row-major, Cols*Rows
	CmlIDs []int64
}

// AnimationParams configures frame resampling.
type AnimationParams struct {
	StepMinutes       int
	OutputStepMinutes int
	IsOutputTotal     bool
	MinRainValue      float64
	RetentionFrames   int  // realtime mode: number of frames to keep
	Realtime          bool
}

// Animate resamples every link's R series to OutputStepMinutes, builds
// one interpolated Frame per resampled time strictly newer than
// lastProcessed, and, in realtime mode, trims the head of the returned
// slice so no more than RetentionFrames are kept once appended to
// existing.
func Animate(links []dataset.LinkDataset, grid *Grid, idw IDWParams, p AnimationParams, lastProcessed int64, existing []Frame) []Frame {
	resampled := resampleAnimation(links, p)

	gridLon, gridLat := grid.FlatCoords()

	var fresh []Frame
	for _, step := range resampled {
		if step.t <= lastProcessed {
			continue
		}
		var lons, lats, values []float64
		var ids []int64
		for linkID, v := range step.byLink {
			if math.IsNaN(v) {
				continue
			}
			pts := pointsForLink(links, linkID)
			for _, pt := range pts {
				lons = append(lons, pt.lon)
				lats = append(lats, pt.lat)
				values = append(values, v)
			}
			ids = append(ids, linkID)
		}

		vals := IDW(lons, lats, values, gridLon, gridLat, idw)
		for i, v := range vals {
			if !math.IsNaN(v) && v < p.MinRainValue {
				vals[i] = 0
			}
		}
		fresh = append(fresh, Frame{Time: step.t, Values: vals, CmlIDs: ids})
	}

	out := append(existing, fresh...)
	if p.Realtime && p.RetentionFrames > 0 && len(out) > p.RetentionFrames {
		out = out[len(out)-p.RetentionFrames:]
	}
	return out
}

type animationStep struct {
	t      int64
	byLink map[int64]float64
}

// resampleAnimation buckets each link's channel-mean R into
// OutputStepMinutes windows (right-labelled, like the accumulation
// field's hourly resample), converting mm/h to a per-step mm total when
// IsOutputTotal is set. When OutputStepMinutes equals StepMinutes no
// resampling is performed and every sample keeps its own timestamp.
func resampleAnimation(links []dataset.LinkDataset, p AnimationParams) []animationStep {
	type acc struct {
		sum float64
		n   int
	}
	byTime := make(map[int64]map[int64]*acc)

	for _, link := range links {
		times := link.SharedTimeIndex()
		for i, t := range times {
			v := link.MeanRAt(i)
			if math.IsNaN(v) {
				continue
			}

			label := t
			if p.OutputStepMinutes != p.StepMinutes && p.OutputStepMinutes > 0 {
				bucket := int64(p.OutputStepMinutes) * 60
				label = (t/bucket + 1) * bucket
			}

			if byTime[label] == nil {
				byTime[label] = make(map[int64]*acc)
			}
			a := byTime[label][link.CmlID]
			if a == nil {
				a = &acc{}
				byTime[label][link.CmlID] = a
			}
			a.sum += v
			a.n++
		}
	}

	out := make([]animationStep, 0, len(byTime))
	for t, byLink := range byTime {
		values := make(map[int64]float64, len(byLink))
		for id, a := range byLink {
			values[id] = a.sum / float64(a.n)
		}
		if p.IsOutputTotal && p.OutputStepMinutes > 0 {
			factor := 60.0 / float64(p.OutputStepMinutes)
			for id, v := range values {
				values[id] = v / factor
			}
		}
		out = append(out, animationStep{t: t, byLink: values})
	}
	sortStepsByTime(out)
	return out
}

func sortStepsByTime(s []animationStep) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].t < s[j-1].t; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

type linkPoint struct{ lon, lat float64 }

func pointsForLink(links []dataset.LinkDataset, linkID int64) []linkPoint {
	var out []linkPoint
	for _, link := range links {
		for i, ref := range link.CmlReference {
			if ref == linkID {
				out = append(out, linkPoint{lon: link.LonArray[i], lat: link.LatArray[i]})
			}
		}
	}
	return out
}
