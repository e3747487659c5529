package rainrate

import "github.com/telcorain/cmlrain/internal/dataset"

// classifyWetDry fills Wet and WetFraction for both channels of a link.
// Returns the number of leading samples trimmed by a CNN-style detector,
// 0 for the rolling-std method; the caller must drop that many entries
// from every parallel array across the whole link.
func classifyWetDry(link *dataset.LinkDataset, cfg Config) (trim int, err error) {
	switch cfg.WetDry {
	case WetDryExternalDetector:
		return classifyWithDetector(link, cfg)
	default:
		classifyWithRollingStd(link, cfg)
		return 0, nil
	}
}

func classifyWithRollingStd(link *dataset.LinkDataset, cfg Config) {
	w := cfg.rollingWindow()
	for i := range link.Channels {
		ch := &link.Channels[i]
		if ch.DummyChannel {
			ch.Wet = make([]bool, len(ch.TRSL))
			continue
		}
		rstd := rollingStd(ch.TRSL, w, cfg.RollingCenter)
		ch.Wet = make([]bool, len(rstd))
		var wetCount int
		for j, s := range rstd {
			ch.Wet[j] = s > cfg.RollingSigma
			if ch.Wet[j] {
				wetCount++
			}
		}
		if len(ch.Wet) > 0 {
			ch.WetFraction = float64(wetCount) / float64(len(ch.Wet))
		}
	}
}

func classifyWithDetector(link *dataset.LinkDataset, cfg Config) (int, error) {
	a := &link.Channels[dataset.ChannelARxBTx]
	b := &link.Channels[dataset.ChannelBRxATx]
	prob, trim, err := cfg.Detector.Detect(a.TRSL, b.TRSL)
	if err != nil {
		return 0, err
	}
	for i := range link.Channels {
		ch := &link.Channels[i]
		wet := make([]bool, len(prob))
		var wetCount int
		for j, p := range prob {
			wet[j] = p >= cfg.DetectorThresh
			if wet[j] {
				wetCount++
			}
		}
		ch.Wet = wet
		if len(wet) > 0 {
			ch.WetFraction = float64(wetCount) / float64(len(wet))
		}
	}
	return trim, nil
}

// trimLeading drops the first n entries of every per-sample array on
// both channels, used after a CNN detector reports leading samples it
// could not classify.
func trimLeading(link *dataset.LinkDataset, n int) {
	if n <= 0 {
		return
	}
	for i := range link.Channels {
		ch := &link.Channels[i]
		ch.Time = trimF64IntLeading(ch.Time, n)
		ch.TSL = trimLeadingF(ch.TSL, n)
		ch.RSL = trimLeadingF(ch.RSL, n)
		ch.TemperatureRx = trimLeadingF(ch.TemperatureRx, n)
		ch.TemperatureTx = trimLeadingF(ch.TemperatureTx, n)
		ch.TRSL = trimLeadingF(ch.TRSL, n)
		if len(ch.Wet) > n {
			ch.Wet = ch.Wet[n:]
		} else {
			ch.Wet = nil
		}
	}
}

func trimLeadingF(x []float64, n int) []float64 {
	if n >= len(x) {
		return nil
	}
	return x[n:]
}

func trimF64IntLeading(x []int64, n int) []int64 {
	if n >= len(x) {
		return nil
	}
	return x[n:]
}
