package tsdb

import (
	"context"
	"time"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// Point is one per-CML rain-intensity sample to be written to the output
// bucket : `(measurement, tag cml_id, field rain_intensity,
// timestamp_s)` at second precision.
type Point struct {
	CmlID         int64
	RainIntensity float64
	Time          time.Time
}

// WipeHandle is returned by WipeOutputBucket; callers that need to write
// into the same bucket afterward must Join it first.
type WipeHandle interface {
	Join(ctx context.Context) error
}

// Client is the C2 contract.
type Client interface {
	// QueryUnits range-queries tx_power/rx_power/temperature for the
	// given endpoints over [start, end] at stepMin resolution.
	QueryUnits(ctx context.Context, endpoints []string, start, end time.Time, stepMin int) (dataset.EndpointSamples, error)

	// QueryUnitsRealtime is QueryUnits with end=now (UTC) and
	// start=now-window.Duration().
	QueryUnitsRealtime(ctx context.Context, endpoints []string, window dataset.RealtimeWindow, stepMin int) (dataset.EndpointSamples, error)

	// WritePoints appends rain-intensity points to the named output
	// bucket.
	WritePoints(ctx context.Context, points []Point, bucket string) error

	// WipeOutputBucket launches a background deletion of the output
	// bucket's data and returns a handle callers can Join before writing
	// into the same bucket again (the forced-rewrite flow).
	WipeOutputBucket(ctx context.Context, bucket string) WipeHandle

	// Ping checks store health, used by the scheduler's realtime
	// precondition.
	Ping(ctx context.Context) error

	Close()
}
