package bench

import "fmt"

// Gate thresholds applied in CI.
const (
	DefaultMinAccuracyPct = 99.9
	DefaultMaxP95MS       = 1.0
)

// Gates holds the thresholds a report must clear.
type Gates struct {
	// MinAccuracyPct is the floor for exact-case and per-tag accuracy of
	// both engines.
	MinAccuracyPct float64

	// MaxP95MS is the exclusive ceiling for the canonical sample's lazy
	// parse and clean p95 latencies.
	MaxP95MS float64
}

// DefaultGates returns the CI thresholds.
func DefaultGates() Gates {
	return Gates{MinAccuracyPct: DefaultMinAccuracyPct, MaxP95MS: DefaultMaxP95MS}
}

// Check applies the gates to a report. The returned slice is empty when every
// gate passed; each failure is one human-readable line.
func Check(r *Report, g Gates) []string {
	if r == nil {
		return []string{"no benchmark report"}
	}

	var failures []string
	engines := []struct {
		name string
		acc  EngineAccuracy
	}{
		{"regex", r.Accuracy.Lazy},
		{"linear", r.Accuracy.Linear},
	}
	for _, engine := range engines {
		if engine.acc.ExactCasePct < g.MinAccuracyPct {
			failures = append(failures, fmt.Sprintf(
				"%s exact-case accuracy %.6f%% < %.3f%%", engine.name, engine.acc.ExactCasePct, g.MinAccuracyPct))
		}
		if engine.acc.PerTagPct < g.MinAccuracyPct {
			failures = append(failures, fmt.Sprintf(
				"%s per-tag accuracy %.6f%% < %.3f%%", engine.name, engine.acc.PerTagPct, g.MinAccuracyPct))
		}
	}

	if r.SpecSample.RegexParse.P95MS >= g.MaxP95MS {
		failures = append(failures, fmt.Sprintf(
			"regex parse p95 %.6f ms >= %.6f ms", r.SpecSample.RegexParse.P95MS, g.MaxP95MS))
	}
	if r.SpecSample.RegexClean.P95MS >= g.MaxP95MS {
		failures = append(failures, fmt.Sprintf(
			"regex clean p95 %.6f ms >= %.6f ms", r.SpecSample.RegexClean.P95MS, g.MaxP95MS))
	}
	return failures
}
