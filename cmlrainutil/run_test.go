package cmlrainutil

import (
	"testing"

	"github.com/telcorain/cmlrain/internal/dataset"
)

func TestEndpointsForSkipsSkippedLinks(t *testing.T) {
	descriptors := map[int64]dataset.CmlDescriptor{
		1001: {ID: 1001, IPA: "10.0.0.1", IPB: "10.0.0.2"},
		1002: {ID: 1002, IPA: "10.0.0.3", IPB: "10.0.0.4"},
	}
	selection := map[int64]dataset.SelectionFlag{
		1001: dataset.SelectionBoth,
		1002: dataset.SelectionSkip,
	}
	got := endpointsFor(selection, descriptors)
	if len(got) != 2 {
		t.Fatalf("expected 2 endpoints from the non-skipped link, got %v", got)
	}
	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		found := false
		for _, g := range got {
			if g == ip {
				found = true
			}
		}
		if !found {
			t.Errorf("expected endpoint %s in result %v", ip, got)
		}
	}
}

func TestEndpointsForDeduplicatesSharedEndpoints(t *testing.T) {
	descriptors := map[int64]dataset.CmlDescriptor{
		1001: {ID: 1001, IPA: "10.0.0.1", IPB: "10.0.0.2"},
		1002: {ID: 1002, IPA: "10.0.0.1", IPB: "10.0.0.5"},
	}
	selection := map[int64]dataset.SelectionFlag{
		1001: dataset.SelectionBoth,
		1002: dataset.SelectionBoth,
	}
	got := endpointsFor(selection, descriptors)
	if len(got) != 3 {
		t.Errorf("expected 3 distinct endpoints, got %d: %v", len(got), got)
	}
}

func TestEndpointsForSkipsUnknownDescriptors(t *testing.T) {
	selection := map[int64]dataset.SelectionFlag{9999: dataset.SelectionBoth}
	got := endpointsFor(selection, map[int64]dataset.CmlDescriptor{})
	if len(got) != 0 {
		t.Errorf("expected no endpoints for an unknown descriptor, got %v", got)
	}
}
