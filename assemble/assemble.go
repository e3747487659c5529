// Package assemble implements C3: turning endpoint sample queries and CML
// metadata into validated per-link LinkDatasets
package assemble

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// SkipReason records why a link was not assembled, for the per-iteration
// warning log and skip count.
type SkipReason struct {
	CmlID  int64
	Reason string
}

// TechLists holds the two exception lists from C1's
// TechExceptionLists: techs that always use synthetic zero Tx power, and
// techs whose missing tx_power entries are filled with zeros rather than
// causing a skip.
type TechLists struct {
	ConstantTxPower map[string]bool
	Buggy           map[string]bool
}

// Result is the outcome of an assembly run.
type Result struct {
	Links []dataset.LinkDataset
	Skips []SkipReason
}

// Assemble builds one LinkDataset per selected, assemblable link. Work is
// fanned out across GOMAXPROCS workers, the same concurrency shape
// inmap/inmap.go's main() uses for its per-processor cell loop, with
// individual per-link failures recovered into SkipReason entries rather
// than aborting the whole run.
func Assemble(ctx context.Context, selection map[int64]dataset.SelectionFlag,
	samples dataset.EndpointSamples, descriptors map[int64]dataset.CmlDescriptor,
	techs TechLists) (Result, error) {

	ids := make([]int64, 0, len(selection))
	for id, flag := range selection {
		if flag == dataset.SelectionSkip {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	type outcome struct {
		link *dataset.LinkDataset
		skip *SkipReason
	}
	results := make([]outcome, len(ids))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		i, id := i, id
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i] = outcome{skip: &SkipReason{CmlID: id, Reason: fmt.Sprintf("panic during assembly: %v", r)}}
				}
			}()
			desc, ok := descriptors[id]
			if !ok {
				results[i] = outcome{skip: &SkipReason{CmlID: id, Reason: "no descriptor for link"}}
				return nil
			}
			link, reason := assembleLink(desc, selection[id], samples, techs)
			if reason != "" {
				results[i] = outcome{skip: &SkipReason{CmlID: id, Reason: reason}}
				return nil
			}
			results[i] = outcome{link: link}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var res Result
	for _, o := range results {
		if o.skip != nil {
			res.Skips = append(res.Skips, *o.skip)
		} else if o.link != nil {
			res.Links = append(res.Links, *o.link)
		}
	}
	return res, nil
}

// assembleLink applies the presence, Tx-power-policy and channel-assembly
// rules to a single link.
func assembleLink(desc dataset.CmlDescriptor, flag dataset.SelectionFlag,
	samples dataset.EndpointSamples, techs TechLists) (*dataset.LinkDataset, string) {

	aSamp, aIn := samples[desc.IPA]
	bSamp, bIn := samples[desc.IPB]

	// Step 1: presence.
	if !(aIn && bIn) {
		if !(aIn || bIn) {
			return nil, "neither endpoint present"
		}
		if !techs.ConstantTxPower[desc.Tech] {
			return nil, "only one endpoint present and tech is not on the constant-Tx-power exception list"
		}
		// Exactly one side present and tech is constant-Tx-power: admissible.
	}

	// Step 2: Tx-power policy.
	constantTx := techs.ConstantTxPower[desc.Tech]
	buggy := techs.Buggy[desc.Tech]
	if !constantTx {
		if aIn && !aSamp.HasTxPower() && !buggy {
			return nil, "endpoint A missing tx_power and tech is not buggy-exempt"
		}
		if bIn && !bSamp.HasTxPower() && !buggy {
			return nil, "endpoint B missing tx_power and tech is not buggy-exempt"
		}
	}

	link := &dataset.LinkDataset{
		CmlID:        desc.ID,
		LatA:         desc.LatA,
		LonA:         desc.LonA,
		LatB:         desc.LatB,
		LonB:         desc.LonB,
		DummyLatA:    desc.DummyLatA,
		DummyLonA:    desc.DummyLonA,
		DummyLatB:    desc.DummyLatB,
		DummyLonB:    desc.DummyLonB,
		FreqAGHz:     desc.FreqAGHz(),
		FreqBGHz:     desc.FreqBGHz(),
		Polarization: desc.Polarization,
		LengthKM:     desc.DistanceKM,
	}

	wantA := flag.WantsChannel(dataset.ChannelARxBTx)
	wantB := flag.WantsChannel(dataset.ChannelBRxATx)

	var built [2]*dataset.Channel
	var builtTime []int64

	if wantA {
		ch, err := buildChannel(aSamp, bSamp, aIn, bIn, constantTx, buggy)
		if err != "" {
			return nil, "channel A(rx)_B(tx): " + err
		}
		built[dataset.ChannelARxBTx] = ch
		builtTime = ch.Time
	}
	if wantB {
		ch, err := buildChannel(bSamp, aSamp, bIn, aIn, constantTx, buggy)
		if err != "" {
			return nil, "channel B(rx)_A(tx): " + err
		}
		built[dataset.ChannelBRxATx] = ch
		if builtTime == nil {
			builtTime = ch.Time
		}
	}

	if built[dataset.ChannelARxBTx] == nil && built[dataset.ChannelBRxATx] == nil {
		return nil, "no requested channel could be assembled"
	}

	for i := range built {
		if built[i] == nil {
			dummy := dataset.NewDummyChannel(builtTime)
			built[i] = &dummy
		}
		link.Channels[i] = *built[i]
	}
	return link, ""
}

// buildChannel assembles one channel's tsl/rsl/temperature_rx/temperature_tx
// from the rx-side and tx-side endpoint samples, aligned on the rx
// timestamps (rx data is always present when that endpoint is present,
// step 4).
func buildChannel(rx, tx dataset.EndpointFields, rxIn, txIn bool, constantTx, buggy bool) (*dataset.Channel, string) {
	if !rxIn {
		return nil, "rx endpoint absent"
	}

	times := rx.RxPower.SortedTimes()
	n := len(times)

	rxPower := make([]float64, n)
	txPower := make([]float64, n)
	tempRx := make([]float64, n)
	tempTx := make([]float64, n)

	if !constantTx && txIn && tx.HasTxPower() {
		txTimes := tx.TxPower.SortedTimes()
		if len(txTimes) != n {
			return nil, "rx_power and tx_power length mismatch"
		}
	}

	for i, t := range times {
		rxPower[i] = rx.RxPower.At(t)
		if constantTx {
			txPower[i] = 0.0
		} else if txIn && tx.HasTxPower() {
			txPower[i] = tx.TxPower.At(t)
		} else if buggy {
			txPower[i] = 0.0
		} else {
			txPower[i] = 0.0
		}
		if rx.HasTemperature() {
			tempRx[i] = rx.Temperature.At(t)
		}
		if txIn && tx.HasTemperature() {
			tempTx[i] = tx.Temperature.At(t)
		}
	}

	trsl := make([]float64, n)
	for i := range trsl {
		trsl[i] = txPower[i] - rxPower[i]
	}

	return &dataset.Channel{
		Time:          times,
		TSL:           txPower,
		RSL:           rxPower,
		TemperatureRx: tempRx,
		TemperatureTx: tempTx,
		TRSL:          trsl,
	}, ""
}
