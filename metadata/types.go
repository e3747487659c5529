// Package metadata implements C1: the relational metadata store. It loads
// the immutable CmlDescriptor population, persists realtime-run parameter
// rows and the per-frame RainGrid rows they own, and exposes the
// connection-state-machine discipline (ping, reconnect-once-on-failure)
// shared with the sample store (C2).
package metadata

import "time"

// RealtimeRun is one row of realtime_rain_parameters: the configuration
// a periodic calculation was started with.
type RealtimeRun struct {
	ID int64

	Start          time.Time
	RetentionMin   int
	StepMin        int
	ResolutionDeg  float64
	BoundsXMin     float64
	BoundsXMax     float64
	BoundsYMin     float64
	BoundsYMax     float64
	Cols           int
	Rows           int
	ViewerURL      string
}

// NewRealtimeRun computes Cols/Rows from the bounds and resolution:
// floor((max-min)/resolution)+1.
func NewRealtimeRun(start time.Time, retentionMin, stepMin int, resolutionDeg,
	xMin, xMax, yMin, yMax float64, viewerURL string) RealtimeRun {
	return RealtimeRun{
		Start:         start,
		RetentionMin:  retentionMin,
		StepMin:       stepMin,
		ResolutionDeg: resolutionDeg,
		BoundsXMin:    xMin,
		BoundsXMax:    xMax,
		BoundsYMin:    yMin,
		BoundsYMax:    yMax,
		Cols:          gridSpan(xMin, xMax, resolutionDeg),
		Rows:          gridSpan(yMin, yMax, resolutionDeg),
		ViewerURL:     viewerURL,
	}
}

func gridSpan(min, max, resolution float64) int {
	return int((max-min)/resolution) + 1
}

// RainGrid is one row of realtime_rain_grids: one produced frame.
type RainGrid struct {
	RunID      int64
	Time       time.Time
	Links      []int64
	FileName   string
	RMedian    float64
	RMean      float64
	RMax       float64
}
