// Package rainrate implements C4: per-link cleaning, wet/dry
// classification, baseline and wet-antenna-attenuation estimation, and
// k-R inversion to rain rate.
package rainrate

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/telcorain/cmlrain/errkind"
	"github.com/telcorain/cmlrain/internal/dataset"
)

// Process mutates each link in place through the full pipeline and
// returns the subset that survives the correlation-filter removal pass.
// Any unexpected failure on a single link aborts the whole run with
// errkind.RainCalcFailure, matching the "fatal, abandon the iteration"
// propagation policy for this stage.
func Process(ctx context.Context, links []dataset.LinkDataset, cfg Config) ([]dataset.LinkDataset, error) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	remove := make([]bool, len(links))
	for i := range links {
		i := i
		g.Go(func() error {
			rm, err := processLink(&links[i], cfg)
			if err != nil {
				return errkind.Wrap(errkind.RainCalcFailure, err, "processing link %d", links[i].CmlID)
			}
			remove[i] = rm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := links[:0]
	for i, link := range links {
		if !remove[i] {
			kept = append(kept, link)
		}
	}
	return kept, nil
}

func processLink(link *dataset.LinkDataset, cfg Config) (remove bool, err error) {
	for i := range link.Channels {
		cleanChannel(&link.Channels[i], cfg)
	}

	remove, _, _ = temperatureCorrelation(link, cfg)

	trim, err := classifyWetDry(link, cfg)
	if err != nil {
		return false, err
	}
	if trim > 0 {
		trimLeading(link, trim)
	}

	if cfg.ExternalFilter != nil {
		if err := applyExternalFilter(link, cfg); err != nil {
			return false, err
		}
	}

	deltaT := cfg.deltaTMinutes()
	for i := range link.Channels {
		ch := &link.Channels[i]
		constantBaseline(ch, cfg.BaselineDrySamples)
		schleissWAA(ch, cfg.WaaMax, cfg.WaaTau, deltaT)

		freq := link.FreqAGHz
		if dataset.ChannelIndex(i) == dataset.ChannelBRxATx {
			freq = link.FreqBGHz
		}
		computeRainRate(ch, link.LengthKM, freq, link.Polarization, cfg.MinRainValue)
	}

	return remove, nil
}

// computeRainRate derives A = trsl - baseline - waa and the inverted
// rain rate for a single channel, zeroing any rate below minRainValue.
func computeRainRate(ch *dataset.Channel, lengthKM, freqGHz float64, pol dataset.Polarization, minRainValue float64) {
	n := len(ch.TRSL)
	ch.A = make([]float64, n)
	ch.R = make([]float64, n)
	if ch.DummyChannel {
		return
	}
	for i := 0; i < n; i++ {
		ch.A[i] = ch.TRSL[i] - ch.Baseline[i] - ch.WAA[i]
		r := invertKR(ch.A[i], lengthKM, freqGHz, pol)
		if r < minRainValue {
			r = 0
		}
		ch.R[i] = r
	}
}
