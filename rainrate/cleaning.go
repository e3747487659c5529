package rainrate

import "github.com/telcorain/cmlrain/internal/dataset"

// cleanChannel applies the outlier-drop and gap-fill pass to one channel's
// raw tsl/rsl/temperature series in place, then recomputes trsl.
func cleanChannel(ch *dataset.Channel, cfg Config) {
	if ch.DummyChannel {
		return
	}
	dropWhere(ch.TSL, func(v float64) bool { return v < cfg.TSLMax })
	nearestFill(ch.TSL)

	dropWhere(ch.RSL, func(v float64) bool { return v != 0 && v > cfg.RSLMin })
	nearestFill(ch.RSL)

	linearFill(ch.TemperatureRx)
	linearFill(ch.TemperatureTx)

	ch.TRSL = make([]float64, len(ch.TSL))
	for i := range ch.TRSL {
		ch.TRSL[i] = ch.TSL[i] - ch.RSL[i]
	}
}
