package tsdb

import (
	"testing"
	"time"
)

func TestChooseSchemaBorder(t *testing.T) {
	border := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	before := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC).Unix()
	after := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

	if ChooseSchema(before, border) != SchemaOld {
		t.Error("expected old schema before border")
	}
	if ChooseSchema(after, border) != SchemaNew {
		t.Error("expected new schema after border")
	}
}

func TestNormalizeOldSchema(t *testing.T) {
	raw := map[string]map[int64]float64{
		"rx_power":    {100: -50.0},
		"tx_power":    {100: 20.0},
		"temperature": {100: 15.0},
	}
	out := SchemaOld.Normalize(raw)
	if out["rx_power"][100] != -50.0 || out["tx_power"][100] != 20.0 || out["temperature"][100] != 15.0 {
		t.Errorf("unexpected normalized output: %+v", out)
	}
}

func TestNormalizeNewSchemaFallbackFields(t *testing.T) {
	raw := map[string]map[int64]float64{
		"Signal":          {100: -48.0},
		"Vysilany_Vykon":  {100: 19.0},
		"Teplota":         {100: 12.0},
	}
	out := SchemaNew.Normalize(raw)
	if out["rx_power"][100] != -48.0 {
		t.Errorf("expected Signal to map to rx_power, got %+v", out)
	}
	if out["tx_power"][100] != 19.0 {
		t.Errorf("expected Vysilany_Vykon to map to tx_power, got %+v", out)
	}
}

func TestSnapWindow(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 3, 30, 0, time.UTC)
	end := time.Date(2024, 6, 1, 12, 7, 0, 0, time.UTC)
	gotStart, gotEnd := SnapWindow(start, end, 5)

	wantStart := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 1, 12, 5, 0, 0, time.UTC)
	if !gotStart.Equal(wantStart) {
		t.Errorf("start = %v, want %v", gotStart, wantStart)
	}
	if !gotEnd.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", gotEnd, wantEnd)
	}
}

func TestSnapWindowExactMultipleUnchanged(t *testing.T) {
	start := time.Date(2024, 6, 1, 10, 5, 0, 0, time.UTC)
	gotStart, _ := SnapWindow(start, start, 5)
	if !gotStart.Equal(start) {
		t.Errorf("expected exact multiple unchanged, got %v", gotStart)
	}
}
