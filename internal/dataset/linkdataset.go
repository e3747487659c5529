package dataset

import "math"

// ChannelIndex identifies one of the two directions of a CML link:
// A(rx)_B(tx) carries traffic received at site A, transmitted from site
// B, and vice versa for B(rx)_A(tx).
type ChannelIndex int

const (
	ChannelARxBTx ChannelIndex = 0
	ChannelBRxATx ChannelIndex = 1
)

// SelectionFlag is the per-link selection value from the link-sets file:
// 0 skips the link, 1/2 include a single channel, 3 includes both.
type SelectionFlag int

const (
	SelectionSkip SelectionFlag = 0
	SelectionA    SelectionFlag = 1 // include channel A(rx)_B(tx)
	SelectionB    SelectionFlag = 2 // include channel B(rx)_A(tx)
	SelectionBoth SelectionFlag = 3
)

// WantsChannel reports whether f requests the given channel.
func (f SelectionFlag) WantsChannel(c ChannelIndex) bool {
	switch f {
	case SelectionBoth:
		return true
	case SelectionA:
		return c == ChannelARxBTx
	case SelectionB:
		return c == ChannelBRxATx
	default:
		return false
	}
}

// Channel holds one direction's time series through the pipeline. All
// slices are indexed in parallel by the same implicit time axis; Time
// holds the shared timestamps (unix seconds, ascending).
type Channel struct {
	// DummyChannel marks a channel synthesized because only one side of
	// the link was requested/available; its wet_fraction/baseline/WAA/R
	// values must be ignored in any cross-channel reduction.
	DummyChannel bool

	Time []int64

	TSL           []float64
	RSL           []float64
	TemperatureRx []float64
	TemperatureTx []float64

	TRSL []float64 // tsl - rsl

	Wet         []bool
	WetFraction float64

	Baseline []float64
	WAA      []float64
	A        []float64 // trsl - baseline - waa
	R        []float64 // rain rate, mm/h
}

// NewDummyChannel returns a zero-valued channel of the given length,
// marked DummyChannel so downstream reductions skip it.
func NewDummyChannel(time []int64) Channel {
	n := len(time)
	return Channel{
		DummyChannel:  true,
		Time:          time,
		TSL:           make([]float64, n),
		RSL:           make([]float64, n),
		TemperatureRx: make([]float64, n),
		TemperatureTx: make([]float64, n),
		TRSL:          make([]float64, n),
	}
}

// LinkDataset is the primary in-memory object of the core: one per
// selected link, born during assembly (C3), mutated in place by the
// rain-rate pipeline (C4), annotated with segmentation geometry (C5), and
// dropped at run end.
type LinkDataset struct {
	CmlID int64

	LatA, LonA, LatB, LonB                     float64
	DummyLatA, DummyLonA, DummyLatB, DummyLonB float64

	FreqAGHz, FreqBGHz float64
	Polarization       Polarization
	LengthKM           float64

	Channels [2]Channel

	// Segmentation outputs (C5); all four are parallel and must share the
	// same length.
	SegmentPoints []int
	LonArray      []float64
	LatArray      []float64
	CmlReference  []int64
}

// Channel returns a pointer to the requested channel for in-place
// mutation by pipeline stages.
func (d *LinkDataset) Channel(c ChannelIndex) *Channel { return &d.Channels[c] }

// ActiveChannels returns the indices of channels that are not synthetic
// dummies, for use by cross-channel reductions (mean R, mean A, etc.)
// that must ignore dummy channels.
func (d *LinkDataset) ActiveChannels() []ChannelIndex {
	var out []ChannelIndex
	for i := range d.Channels {
		if !d.Channels[i].DummyChannel {
			out = append(out, ChannelIndex(i))
		}
	}
	return out
}

// SharedTimeIndex returns channel 0's time index as the index common to
// both channels; it does not check that channel 1's index is identical.
func (d *LinkDataset) SharedTimeIndex() []int64 {
	return d.Channels[0].Time
}

// MeanRAt returns the mean R across active (non-dummy) channels at index
// i. Channels for which i is out of range, or whose R at i is NaN, are
// left out of the mean; NaN is returned if no channel is left.
func (d *LinkDataset) MeanRAt(i int) float64 {
	active := d.ActiveChannels()
	if len(active) == 0 {
		return math.NaN()
	}
	var sum float64
	var n int
	for _, c := range active {
		ch := &d.Channels[c]
		if i < 0 || i >= len(ch.R) {
			continue
		}
		v := ch.R[i]
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
