// Package bench is the empirical harness behind the parsing CI gates. It
// times both tagparse engines on the canonical sample, times the lazy engine
// across a synthetic scaling matrix, and measures extraction accuracy over
// seeded synthetic cases. Reports serialize to JSON for the gate checker.
package bench

import (
	"math"
	"sort"
	"time"
)

// Stats summarizes one timing series. All values are milliseconds.
type Stats struct {
	Count    int     `json:"count"`
	AvgMS    float64 `json:"avg_ms"`
	MedianMS float64 `json:"median_ms"`
	P95MS    float64 `json:"p95_ms"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	StdMS    float64 `json:"std_ms"`
}

// Measure times fn over runs calls after warmup unmeasured calls and returns
// the per-call durations in milliseconds.
func Measure(fn func(), runs, warmup int) []float64 {
	for i := 0; i < warmup; i++ {
		fn()
	}
	samples := make([]float64, 0, max(0, runs))
	for i := 0; i < runs; i++ {
		start := time.Now()
		fn()
		samples = append(samples, float64(time.Since(start))/float64(time.Millisecond))
	}
	return samples
}

// Summarize computes distribution statistics over the samples. Percentiles
// index the ascending series at int(q*(count-1)); the standard deviation is
// the population form.
func Summarize(samples []float64) Stats {
	count := len(samples)
	if count == 0 {
		return Stats{}
	}

	ordered := append([]float64(nil), samples...)
	sort.Float64s(ordered)

	var sum float64
	for _, v := range ordered {
		sum += v
	}
	avg := sum / float64(count)

	var std float64
	if count > 1 {
		var sq float64
		for _, v := range ordered {
			d := v - avg
			sq += d * d
		}
		std = math.Sqrt(sq / float64(count))
	}

	return Stats{
		Count:    count,
		AvgMS:    avg,
		MedianMS: ordered[int(0.50*float64(count-1))],
		P95MS:    ordered[int(0.95*float64(count-1))],
		MinMS:    ordered[0],
		MaxMS:    ordered[count-1],
		StdMS:    std,
	}
}
