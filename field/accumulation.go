package field

import (
	"math"
	"time"

	"github.com/telcorain/cmlrain/internal/dataset"
)

// Accumulation resamples each link's per-channel R to 1-hour
// right-labelled means, sums across the time axis and averages across
// channels, producing one scalar per link. It then feeds every segment
// point's (lon, lat, scalar) through IDW onto grid.
func Accumulation(links []dataset.LinkDataset, grid *Grid, idw IDWParams) {
	totals := make(map[int64]float64, len(links))
	for _, link := range links {
		totals[link.CmlID] = linkAccumulationTotal(&link)
	}

	var lons, lats, values []float64
	for _, link := range links {
		for i, ref := range link.CmlReference {
			v, ok := totals[ref]
			if !ok {
				continue
			}
			lons = append(lons, link.LonArray[i])
			lats = append(lats, link.LatArray[i])
			values = append(values, v)
		}
	}

	gridLon, gridLat := grid.FlatCoords()
	grid.Values = IDW(lons, lats, values, gridLon, gridLat, idw)
}

// linkAccumulationTotal resamples R to hourly means per active channel,
// sums across time, then averages the per-channel sums.
func linkAccumulationTotal(link *dataset.LinkDataset) float64 {
	active := link.ActiveChannels()
	if len(active) == 0 {
		return math.NaN()
	}
	var sum float64
	var n int
	for _, c := range active {
		ch := &link.Channels[c]
		hourly := resampleHourlyMean(ch.Time, ch.R)
		var total float64
		for _, v := range hourly {
			if !math.IsNaN(v) {
				total += v
			}
		}
		sum += total
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// resampleHourlyMean buckets (time, value) pairs into right-labelled
// 1-hour windows and returns the mean of each non-empty bucket.
func resampleHourlyMean(times []int64, values []float64) []float64 {
	if len(times) == 0 {
		return nil
	}
	buckets := make(map[int64][]float64)
	for i, t := range times {
		label := time.Unix(t, 0).UTC().Truncate(time.Hour).Add(time.Hour).Unix()
		buckets[label] = append(buckets[label], values[i])
	}
	out := make([]float64, 0, len(buckets))
	for _, vs := range buckets {
		out = append(out, meanIgnoreNaN(vs))
	}
	return out
}

func meanIgnoreNaN(x []float64) float64 {
	var sum float64
	var n int
	for _, v := range x {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
