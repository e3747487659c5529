package dataset

import "testing"

func TestFrequencyCoercion(t *testing.T) {
	d := NewCmlDescriptor(1, "10.0.0.1", "10.0.0.2", "a", "b", "microwave",
		18000, 18000, "V",
		50.0, 14.0, 50.1, 14.1,
		50.0, 14.0, 50.1, 14.1)
	if d.FreqA != 18001 || d.FreqB != 18000 {
		t.Errorf("got freqA=%d freqB=%d, want 18001/18000", d.FreqA, d.FreqB)
	}
}

func TestPolarizationXRemapsToV(t *testing.T) {
	if ParsePolarization("X") != PolarizationV {
		t.Errorf("expected X to remap to V")
	}
}

func TestDummyChannelSynthesis(t *testing.T) {
	times := []int64{100, 200, 300}
	ch := NewDummyChannel(times)
	if !ch.DummyChannel {
		t.Fatal("expected DummyChannel=true")
	}
	for _, v := range ch.TSL {
		if v != 0 {
			t.Errorf("expected zero tsl, got %v", v)
		}
	}
	for _, v := range ch.RSL {
		if v != 0 {
			t.Errorf("expected zero rsl, got %v", v)
		}
	}
}

func TestActiveChannelsExcludesDummy(t *testing.T) {
	var d LinkDataset
	d.Channels[0] = Channel{Time: []int64{1, 2}}
	d.Channels[1] = NewDummyChannel([]int64{1, 2})
	active := d.ActiveChannels()
	if len(active) != 1 || active[0] != ChannelARxBTx {
		t.Errorf("expected only channel 0 active, got %v", active)
	}
}

func TestMidpointLonLat(t *testing.T) {
	d := CmlDescriptor{LonA: 14.0, LatA: 50.0, LonB: 15.0, LatB: 50.5}
	lon, lat := d.MidpointLonLat()
	if lon != 14.5 || lat != 50.25 {
		t.Errorf("got (%v,%v), want (14.5,50.25)", lon, lat)
	}
}
