package rainrate

import (
	"context"
	"math"
	"testing"

	"github.com/telcorain/cmlrain/internal/dataset"
)

func TestNearestFillNoNaNRemains(t *testing.T) {
	x := []float64{1, math.NaN(), math.NaN(), 4, math.NaN()}
	nearestFill(x)
	for i, v := range x {
		if math.IsNaN(v) {
			t.Fatalf("index %d still NaN: %v", i, x)
		}
	}
}

func TestLinearFillInterpolatesInterior(t *testing.T) {
	x := []float64{0, math.NaN(), math.NaN(), 3}
	linearFill(x)
	if math.Abs(x[1]-1) > 1e-9 || math.Abs(x[2]-2) > 1e-9 {
		t.Errorf("expected linear ramp, got %v", x)
	}
}

func TestCleanChannelLeavesNoNaN(t *testing.T) {
	ch := dataset.Channel{
		Time:          []int64{0, 60, 120, 180},
		TSL:           []float64{20, 999, 20, 20},
		RSL:           []float64{-40, 0, -40, -40},
		TemperatureRx: []float64{15, 16, math.NaN(), 18},
		TemperatureTx: []float64{15, 16, math.NaN(), 18},
	}
	cleanChannel(&ch, defaultConfig())
	for _, v := range append(append([]float64{}, ch.TSL...), ch.RSL...) {
		if math.IsNaN(v) {
			t.Fatalf("unexpected NaN after cleaning: tsl=%v rsl=%v", ch.TSL, ch.RSL)
		}
	}
}

func TestKRFrequencyBranchVBeatsH(t *testing.T) {
	rV := invertKR(10, 5, 23, dataset.PolarizationV)
	rH := invertKR(10, 5, 23, dataset.PolarizationH)
	if !(rV > 0) {
		t.Fatalf("expected positive R, got %v", rV)
	}
	if !(rV > rH) {
		t.Errorf("expected V-pol rate to exceed H-pol for identical inputs, got V=%v H=%v", rV, rH)
	}
}

func TestInvertKRNonPositiveAttenuationIsZero(t *testing.T) {
	if r := invertKR(0, 5, 23, dataset.PolarizationV); r != 0 {
		t.Errorf("expected 0 for zero attenuation, got %v", r)
	}
	if r := invertKR(-3, 5, 23, dataset.PolarizationV); r != 0 {
		t.Errorf("expected 0 for negative attenuation, got %v", r)
	}
}

func TestConstantBaselineHoldsDuringWetPeriod(t *testing.T) {
	ch := dataset.Channel{
		TRSL: []float64{10, 10, 10, 25, 26, 27, 11, 11},
		Wet:  []bool{false, false, false, true, true, true, false, false},
	}
	constantBaseline(&ch, 3)
	held := ch.Baseline[3]
	for i := 4; i <= 5; i++ {
		if ch.Baseline[i] != held {
			t.Errorf("baseline should be held constant through wet period, got %v at %d want %v", ch.Baseline[i], i, held)
		}
	}
	if math.Abs(held-10) > 1e-9 {
		t.Errorf("expected baseline to equal mean of last dry samples (10), got %v", held)
	}
}

func TestRollingStdZeroForConstantSeries(t *testing.T) {
	x := make([]float64, 10)
	for i := range x {
		x[i] = 5
	}
	out := rollingStd(x, 4, true)
	for _, v := range out {
		if v != 0 {
			t.Errorf("expected zero std for constant series, got %v", v)
		}
	}
}

func TestProcessDropsNegativeRainToZero(t *testing.T) {
	n := 6
	time := make([]int64, n)
	for i := range time {
		time[i] = int64(i * 60)
	}
	mkChannel := func() dataset.Channel {
		return dataset.Channel{
			Time:          append([]int64{}, time...),
			TSL:           []float64{20, 20, 20, 20, 20, 20},
			RSL:           []float64{-40, -40, -40, -55, -56, -40},
			TemperatureRx: []float64{15, 15, 15, 15, 15, 15},
			TemperatureTx: []float64{15, 15, 15, 15, 15, 15},
		}
	}
	link := dataset.LinkDataset{
		CmlID:        1,
		FreqAGHz:     23,
		FreqBGHz:     23,
		Polarization: dataset.PolarizationV,
		LengthKM:     5,
	}
	link.Channels[0] = mkChannel()
	link.Channels[1] = dataset.NewDummyChannel(time)

	cfg := defaultConfig()
	cfg.StepMinutes = 1
	cfg.BaselineDrySamples = 2
	cfg.RollingHours = 1.0 / 60.0
	cfg.RollingSigma = 1.0

	kept, err := Process(context.Background(), []dataset.LinkDataset{link}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected link to survive removal pass, got %d", len(kept))
	}
	for _, r := range kept[0].Channels[0].R {
		if r < 0 {
			t.Errorf("R must never be negative, got %v", r)
		}
	}
}
