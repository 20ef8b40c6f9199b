package strategy

import "math"

// SMA returns the trailing arithmetic mean of x over p points, aligned to x.
// Entries before the window fills are NaN. Each window is summed afresh as
// deviations from its newest point with compensation, so windows holding the
// same values produce bit-identical means.
func SMA(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < p-1 || p <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[i] + windowDeviation(x[i-p+1:i+1], x[i])/float64(p)
	}
	return out
}

// windowDeviation returns the Neumaier-compensated sum of v-ref over w.
func windowDeviation(w []float64, ref float64) float64 {
	var sum, comp float64
	for _, v := range w {
		d := v - ref
		t := sum + d
		if math.Abs(sum) >= math.Abs(d) {
			comp += (sum - t) + d
		} else {
			comp += (d - t) + sum
		}
		sum = t
	}
	return sum + comp
}

// EMA returns the exponentially weighted mean of x with smoothing span p
// (alpha = 2/(p+1)), seeded with the first value so every entry is defined.
func EMA(x []float64, p int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / float64(p+1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}
