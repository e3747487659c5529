package cmlrainutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/telcorain/cmlrain/internal/dataset"
)

func TestLinkSetDefaultsToBoth(t *testing.T) {
	ls := NewLinkSet([]int64{1001, 1002})
	if ls.Flag(1001) != dataset.SelectionBoth {
		t.Errorf("expected registered link to default to SelectionBoth, got %v", ls.Flag(1001))
	}
	if ls.Flag(9999) != dataset.SelectionBoth {
		t.Errorf("expected unregistered link to default to SelectionBoth, got %v", ls.Flag(9999))
	}
}

func TestLinkSetSaveAndLoadRoundTrip(t *testing.T) {
	ls := NewLinkSet([]int64{1001, 1002, 1003})
	ls.Set(1002, dataset.SelectionA)
	ls.Set(1003, dataset.SelectionSkip)

	path := filepath.Join(t.TempDir(), "links.toml")
	if err := ls.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadLinkSet(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Flag(1001) != dataset.SelectionBoth {
		t.Errorf("expected 1001 to remain SelectionBoth, got %v", loaded.Flag(1001))
	}
	if loaded.Flag(1002) != dataset.SelectionA {
		t.Errorf("expected 1002 override to persist, got %v", loaded.Flag(1002))
	}
	if loaded.Flag(1003) != dataset.SelectionSkip {
		t.Errorf("expected 1003 override to persist, got %v", loaded.Flag(1003))
	}
}

func TestLinkSetSaveOmitsDefaultFlagFromOverrides(t *testing.T) {
	ls := NewLinkSet([]int64{1001})
	path := filepath.Join(t.TempDir(), "links.toml")
	if err := ls.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := LoadLinkSet(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if data.Flag(1001) != dataset.SelectionBoth {
		t.Errorf("expected default-flag link to round-trip as SelectionBoth")
	}

	var raw linkSetFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw.Overrides) != 0 {
		t.Errorf("expected no overrides for a default-flag link, got %v", raw.Overrides)
	}
}

func TestAsMapCopiesUnderlyingState(t *testing.T) {
	ls := NewLinkSet([]int64{1001})
	m := ls.AsMap()
	m[1001] = dataset.SelectionSkip
	if ls.Flag(1001) != dataset.SelectionBoth {
		t.Error("expected AsMap to return a copy, not a live view")
	}
}

func TestParseBorderTimestampEmptyIsZeroValue(t *testing.T) {
	ts, err := parseBorderTimestamp("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ts.IsZero() {
		t.Errorf("expected zero time for empty border timestamp, got %v", ts)
	}
}

func TestParseBorderTimestampRejectsMalformed(t *testing.T) {
	if _, err := parseBorderTimestamp("not-a-time"); err == nil {
		t.Error("expected an error for a malformed border timestamp")
	}
}

func TestParseBorderTimestampAcceptsRFC3339(t *testing.T) {
	ts, err := parseBorderTimestamp("2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("got %v, want %v", ts, want)
	}
}
