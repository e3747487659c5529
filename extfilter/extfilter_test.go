package extfilter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSnapDownRoundsToTenMinuteBoundary(t *testing.T) {
	in := time.Date(2024, 6, 1, 12, 37, 0, 0, time.UTC)
	want := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	if got := snapDown(in); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestLabelComponentsSeparatesDisjointRegions(t *testing.T) {
	mask := [][]bool{
		{true, true, false, true},
		{false, false, false, true},
		{false, true, true, false},
	}
	labels, sizes := labelComponents(mask)
	if labels[0][0] != labels[0][1] {
		t.Error("expected the top-left pair to share a label")
	}
	if labels[0][0] == labels[0][3] {
		t.Error("expected disjoint regions to have different labels")
	}
	if labels[2][1] != labels[2][2] {
		t.Error("expected the bottom pair to share a label")
	}
	if len(sizes) != 3 {
		t.Errorf("expected 3 components, got %d", len(sizes))
	}
}

func TestLabelComponentsEmptyMaskHasNoComponents(t *testing.T) {
	mask := [][]bool{{false, false}, {false, false}}
	_, sizes := labelComponents(mask)
	if len(sizes) != 0 {
		t.Errorf("expected no components, got %d", len(sizes))
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := newDiskCache(dir)
	if _, ok := c.get("20240601", "http://example.com/a.png"); ok {
		t.Fatal("expected cache miss before any put")
	}
	if err := c.put("20240601", "http://example.com/a.png", []byte("data")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, ok := c.get("20240601", "http://example.com/a.png")
	if !ok || string(data) != "data" {
		t.Errorf("expected cache hit with original bytes, got %q ok=%v", data, ok)
	}
}

func TestImageSourceFallsBackToOlderFrameOnFailure(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if len(requested) < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	src := NewImageSource(srv.URL+"/", t.TempDir(), 3)
	data, used, err := src.Fetch(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("expected successful frame bytes, got %q", data)
	}
	if !used.Before(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("expected fallback to an older frame, used %v", used)
	}
}

func TestImageSourceGivesUpAfterMaxHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewImageSource(srv.URL+"/", t.TempDir(), 2)
	_, _, err := src.Fetch(time.Now(), true)
	if err == nil {
		t.Error("expected an error once every attempt fails")
	}
}

func TestImageSourceDisallowsHistoryInRealtimeMode(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src := NewImageSource(srv.URL+"/", t.TempDir(), 3)
	if _, _, err := src.Fetch(time.Now(), false); err == nil {
		t.Error("expected an error since the only allowed attempt fails")
	}
	if requests != 1 {
		t.Errorf("expected exactly one request with allowHistory=false, got %d", requests)
	}
}

func TestProjectInvertsYAxis(t *testing.T) {
	b := ImageBounds{XMin: 0, XMax: 10, YMin: 0, YMax: 10}
	_, yTop := b.project(5, 10, 100, 100)
	_, yBottom := b.project(5, 0, 100, 100)
	if yTop >= yBottom {
		t.Errorf("expected northern latitude to map to a smaller pixel row, got yTop=%v yBottom=%v", yTop, yBottom)
	}
}

func TestFilterIsWetReturnsDefaultOnUnreachableImage(t *testing.T) {
	f, err := NewFilter(Config{
		URLPrefix:         "http://127.0.0.1:1/unreachable/",
		CacheDir:          t.TempDir(),
		MaxHistoryLookups: 1,
		PixelThreshold:    5,
		ImageBounds:       ImageBounds{XMin: 0, XMax: 10, YMin: 0, YMax: 10},
		DefaultReturn:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error building filter: %v", err)
	}
	wet, err := f.IsWet(5, 5, 1, time.Now().Unix(), false)
	if err == nil {
		t.Error("expected an error surfaced for an unreachable image")
	}
	if !wet {
		t.Error("expected DefaultReturn to be honored on fetch failure")
	}
}
