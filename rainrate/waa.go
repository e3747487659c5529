package rainrate

import "github.com/telcorain/cmlrain/internal/dataset"

// schleissWAA implements the Schleiss (2013) recursive wet-antenna model:
// while wet, the attenuation film grows toward waaMax with time constant
// tau, bounded above by the observed trsl-baseline excess; it collapses
// to zero as soon as the link is dry.
func schleissWAA(ch *dataset.Channel, waaMax, tau, deltaTMinutes float64) {
	n := len(ch.TRSL)
	waa := make([]float64, n)
	if ch.DummyChannel {
		ch.WAA = waa
		return
	}
	for i := 1; i < n; i++ {
		wet := i < len(ch.Wet) && ch.Wet[i]
		if !wet {
			waa[i] = 0
			continue
		}
		observed := ch.TRSL[i] - ch.Baseline[i]
		grown := waa[i-1] + (3*deltaTMinutes/tau)*(waaMax-waa[i-1])
		if grown > observed {
			grown = observed
		}
		if grown < 0 {
			grown = 0
		}
		waa[i] = grown
	}
	ch.WAA = waa
}
