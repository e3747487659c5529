package rainrate

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// temperatureCorrelation runs the optional correlation step across both
// channels of a link and reports whether the link should be removed by
// the later removal pass. cfg.CorrelationMode selects filtering or
// compensation; only one of them runs for a given configuration.
//
// Open question (a): the reference counts correlation checks once per
// channel but flags removal once per link. This implementation follows
// the per-link OR semantics — removal triggers if either channel's |r|
// exceeds the threshold — while still exposing both channel correlations
// for diagnostics.
func temperatureCorrelation(link *dataset.LinkDataset, cfg Config) (removeLink bool, corrA, corrB float64) {
	if cfg.CorrelationMode == CorrelationDisabled {
		return false, math.NaN(), math.NaN()
	}

	corrA = channelCorrelation(&link.Channels[dataset.ChannelARxBTx])
	corrB = channelCorrelation(&link.Channels[dataset.ChannelBRxATx])

	exceeds := func(r float64) bool { return !math.IsNaN(r) && math.Abs(r) >= cfg.CorrelationThreshold }
	if cfg.CorrelationMode == CorrelationFilter {
		removeLink = exceeds(corrA) || exceeds(corrB)
	}

	if cfg.CorrelationMode == CorrelationCompensate {
		if exceeds(corrA) {
			compensateChannel(&link.Channels[dataset.ChannelARxBTx])
		}
		if exceeds(corrB) {
			compensateChannel(&link.Channels[dataset.ChannelBRxATx])
		}
	}
	return removeLink, corrA, corrB
}

func channelCorrelation(ch *dataset.Channel) float64 {
	if ch.DummyChannel || len(ch.TRSL) < 2 {
		return math.NaN()
	}
	return stat.Correlation(ch.TRSL, ch.TemperatureTx, nil)
}

// compensateChannel fits trsl ~ b*temperature_tx + c and subtracts the
// temperature-driven component above a reference temperature T0 = 21C.
func compensateChannel(ch *dataset.Channel) {
	const t0 = 21.0
	if ch.DummyChannel || len(ch.TRSL) < 2 {
		return
	}
	alpha, beta := stat.LinearRegression(ch.TemperatureTx, ch.TRSL, nil, false)
	_ = alpha
	for i, temp := range ch.TemperatureTx {
		if temp >= t0 {
			ch.TRSL[i] = ch.TRSL[i] - beta*(temp-t0)
		}
	}
}
