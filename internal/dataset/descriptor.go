// Package dataset holds the core in-memory data model shared by the
// assembler, rain-rate pipeline, segmenter and field generator: the
// immutable CmlDescriptor, the raw EndpointSamples read from the sample
// store, and the LinkDataset that the pipeline mutates in place as it
// flows through C3-C6. These types are deliberately dependency-free
// (no DB/HTTP imports) so every downstream package can depend on them
// without pulling in infrastructure.
package dataset

import "github.com/telcorain/cmlrain/internal/geo"

// Polarization is the microwave polarization of a CML channel.
type Polarization int

const (
	PolarizationH Polarization = iota
	PolarizationV
)

// ParsePolarization maps the raw descriptor value (H, V or X) to a
// Polarization, remapping X to V
func ParsePolarization(raw string) Polarization {
	switch raw {
	case "H", "h":
		return PolarizationH
	default:
		return PolarizationV
	}
}

func (p Polarization) String() string {
	if p == PolarizationH {
		return "H"
	}
	return "V"
}

// CmlDescriptor is the immutable metadata for a single commercial
// microwave link, as loaded once per process by the metadata store (C1).
type CmlDescriptor struct {
	ID int64

	// IPA and IPB are the sample-store tags identifying the two endpoints.
	IPA, IPB string

	// AddressA and AddressB are display-only addresses for each endpoint.
	AddressA, AddressB string

	// Tech is a free-form string used as an exception-list key (constant
	// Tx-power techs, "buggy" missing-Tx-power techs).
	Tech string

	// FreqA, FreqB are the channel frequencies in integer MHz. If they are
	// equal on load, FreqA is bumped by 1 MHz to preserve two-channel
	// arity.
	FreqA, FreqB int

	Polarization Polarization

	// DistanceKM is the great-circle distance between the true endpoint
	// coordinates, computed via haversine with R=6373km.
	DistanceKM float64

	// LatA, LonA, LatB, LonB are the true endpoint coordinates.
	LatA, LonA, LatB, LonB float64

	// DummyLatA, DummyLonA, DummyLatB, DummyLonB are display-only
	// substitute coordinates (used by viewers that must not reveal true
	// site locations).
	DummyLatA, DummyLonA, DummyLatB, DummyLonB float64
}

// NewCmlDescriptor builds a CmlDescriptor from raw loader fields, applying
// the frequency-coercion and polarization-remap invariants.
func NewCmlDescriptor(id int64, ipA, ipB, addrA, addrB, tech string,
	freqA, freqB int, polRaw string,
	latA, lonA, latB, lonB float64,
	dummyLatA, dummyLonA, dummyLatB, dummyLonB float64) CmlDescriptor {

	if freqA == freqB {
		freqA++
	}

	return CmlDescriptor{
		ID:           id,
		IPA:          ipA,
		IPB:          ipB,
		AddressA:     addrA,
		AddressB:     addrB,
		Tech:         tech,
		FreqA:        freqA,
		FreqB:        freqB,
		Polarization: ParsePolarization(polRaw),
		DistanceKM:   geo.HaversineKM(latA, lonA, latB, lonB),
		LatA:         latA,
		LonA:         lonA,
		LatB:         latB,
		LonB:         lonB,
		DummyLatA:    dummyLatA,
		DummyLonA:    dummyLonA,
		DummyLatB:    dummyLatB,
		DummyLonB:    dummyLonB,
	}
}

// FreqAGHz and FreqBGHz convert the integer-MHz frequencies to GHz, the
// unit the k-R inversion expects.
func (d CmlDescriptor) FreqAGHz() float64 { return float64(d.FreqA) / 1000 }
func (d CmlDescriptor) FreqBGHz() float64 { return float64(d.FreqB) / 1000 }

// MidpointLonLat returns the simple-average midpoint of the two true
// endpoint coordinates, used both by the central-point segmenter and as
// the default query point for the external wetness filter.
func (d CmlDescriptor) MidpointLonLat() (lon, lat float64) {
	return geo.Midpoint(d.LonA, d.LatA, d.LonB, d.LatB)
}
