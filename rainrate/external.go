package rainrate

import "github.com/telcorain/cmlrain/internal/dataset"

// applyExternalFilter ANDs each channel's internal wet flag with an
// external radar-derived wetness vote at the link's midpoint. Historical
// lookups (non-current timestamps) are disabled in realtime mode.
func applyExternalFilter(link *dataset.LinkDataset, cfg Config) error {
	if cfg.ExternalFilter == nil {
		return nil
	}
	lon, lat := midpoint(link)
	radius := cfg.ExternalFilterRadius + link.LengthKM/2

	for i := range link.Channels {
		ch := &link.Channels[i]
		if ch.DummyChannel {
			continue
		}
		allowHistory := !cfg.Realtime
		for t := range ch.Wet {
			if !ch.Wet[t] {
				continue
			}
			// ExternalFilterUnavailable never aborts the pipeline: on error
			// the filter's returned value is its default_return, and that
			// value is applied like any other vote.
			external, _ := cfg.ExternalFilter.IsWet(lon, lat, radius, ch.Time[t], allowHistory)
			ch.Wet[t] = ch.Wet[t] && external
		}
	}
	return nil
}

func midpoint(link *dataset.LinkDataset) (lon, lat float64) {
	return (link.LonA + link.LonB) / 2, (link.LatA + link.LatB) / 2
}
