package rainrate

import "math"

// dropWhere sets x[i] to NaN wherever keep(x[i]) is false.
func dropWhere(x []float64, keep func(float64) bool) {
	for i, v := range x {
		if !keep(v) {
			x[i] = math.NaN()
		}
	}
}

// nearestFill replaces each NaN with the value of the nearest non-NaN
// neighbour by index distance, ties broken toward the earlier index. A
// series with no non-NaN value is returned unchanged.
func nearestFill(x []float64) {
	n := len(x)
	left := make([]int, n)
	li := -1
	for i := 0; i < n; i++ {
		if !math.IsNaN(x[i]) {
			li = i
		}
		left[i] = li
	}
	right := make([]int, n)
	ri := -1
	for i := n - 1; i >= 0; i-- {
		if !math.IsNaN(x[i]) {
			ri = i
		}
		right[i] = ri
	}
	for i := 0; i < n; i++ {
		if !math.IsNaN(x[i]) {
			continue
		}
		l, r := left[i], right[i]
		switch {
		case l < 0 && r < 0:
			// no data anywhere; leave as NaN.
		case l < 0:
			x[i] = x[r]
		case r < 0:
			x[i] = x[l]
		case i-l <= r-i:
			x[i] = x[l]
		default:
			x[i] = x[r]
		}
	}
}

// linearFill replaces interior NaN runs with linear interpolation between
// their bounding non-NaN samples; leading/trailing NaN runs fall back to
// the nearest available value.
func linearFill(x []float64) {
	n := len(x)
	i := 0
	for i < n {
		if !math.IsNaN(x[i]) {
			i++
			continue
		}
		start := i
		for i < n && math.IsNaN(x[i]) {
			i++
		}
		end := i // exclusive
		var before, after float64
		haveBefore := start > 0
		haveAfter := end < n
		if haveBefore {
			before = x[start-1]
		}
		if haveAfter {
			after = x[end]
		}
		switch {
		case haveBefore && haveAfter:
			span := float64(end - start + 1)
			for j := start; j < end; j++ {
				frac := float64(j-start+1) / span
				x[j] = before + frac*(after-before)
			}
		case haveBefore:
			for j := start; j < end; j++ {
				x[j] = before
			}
		case haveAfter:
			for j := start; j < end; j++ {
				x[j] = after
			}
		}
	}
}

// rollingStd computes the standard deviation of x over a sliding window of
// length w. When center is true the window is centered on each sample
// (with shorter windows at the edges); otherwise it is trailing. Windows
// with fewer than two samples yield 0.
func rollingStd(x []float64, w int, center bool) []float64 {
	n := len(x)
	out := make([]float64, n)
	if w < 1 {
		w = 1
	}
	for i := 0; i < n; i++ {
		var lo, hi int
		if center {
			half := w / 2
			lo, hi = i-half, i+(w-half)
		} else {
			lo, hi = i-w+1, i+1
		}
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		out[i] = std(x[lo:hi])
	}
	return out
}

func std(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	var sq float64
	for _, v := range x {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(x)-1))
}

// meanIgnoreNaN computes the arithmetic mean, ignoring NaN entries. Returns NaN if
// no finite entries exist.
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
