package rainrate

import "github.com/telcorain/cmlrain/internal/dataset"

// constantBaseline implements the step-and-hold baseline estimator: at
// each wet-period boundary the baseline is fixed to the mean of the last
// n dry samples; it is held constant through the wet period and tracks
// trsl again once dry.
func constantBaseline(ch *dataset.Channel, n int) {
	if ch.DummyChannel {
		ch.Baseline = make([]float64, len(ch.TRSL))
		return
	}
	baseline := make([]float64, len(ch.TRSL))
	if len(ch.TRSL) == 0 {
		ch.Baseline = baseline
		return
	}

	held := ch.TRSL[0]
	inWet := false
	for i := range ch.TRSL {
		wet := i < len(ch.Wet) && ch.Wet[i]
		if wet && !inWet {
			held = lastDryMean(ch.TRSL, ch.Wet, i, n)
		}
		if wet {
			baseline[i] = held
		} else {
			held = ch.TRSL[i]
			baseline[i] = ch.TRSL[i]
		}
		inWet = wet
	}
	ch.Baseline = baseline
}

// lastDryMean averages up to n dry samples immediately preceding index
// boundary.
func lastDryMean(trsl []float64, wet []bool, boundary, n int) float64 {
	var sum float64
	var count int
	for i := boundary - 1; i >= 0 && count < n; i-- {
		if i < len(wet) && wet[i] {
			continue
		}
		sum += trsl[i]
		count++
	}
	if count == 0 {
		return trsl[boundary]
	}
	return sum / float64(count)
}
