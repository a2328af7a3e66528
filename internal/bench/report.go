package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fyrsmithlabs/thoughtd/internal/samples"
	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
)

// Default run sizes.
const (
	DefaultRuns          = 300
	DefaultWarmup        = 200
	DefaultScaleRuns     = 120
	DefaultScaleWarmup   = 100
	DefaultAccuracyCases = 1000
)

// Options sizes a benchmark run. Zero fields take the defaults.
type Options struct {
	Runs          int
	Warmup        int
	ScaleRuns     int
	ScaleWarmup   int
	AccuracyCases int
}

func (o Options) applyDefaults() Options {
	if o.Runs <= 0 {
		o.Runs = DefaultRuns
	}
	if o.Warmup <= 0 {
		o.Warmup = DefaultWarmup
	}
	if o.ScaleRuns <= 0 {
		o.ScaleRuns = DefaultScaleRuns
	}
	if o.ScaleWarmup <= 0 {
		o.ScaleWarmup = DefaultScaleWarmup
	}
	if o.AccuracyCases <= 0 {
		o.AccuracyCases = DefaultAccuracyCases
	}
	return o
}

// Metadata records the environment and sample sizes of one run.
type Metadata struct {
	TimestampUTC  string `json:"timestamp_utc"`
	GoVersion     string `json:"go_version"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Runs          int    `json:"runs"`
	ScaleRuns     int    `json:"scale_runs"`
	AccuracyCases int    `json:"accuracy_cases"`
}

// SpecSample carries the canonical-fixture timings for both engines.
type SpecSample struct {
	InputChars  int   `json:"input_chars"`
	TagCount    int   `json:"tag_count"`
	RegexParse  Stats `json:"regex_parse"`
	RegexClean  Stats `json:"regex_clean"`
	LinearParse Stats `json:"linear_parse"`
	LinearClean Stats `json:"linear_clean"`
}

// ScalingEntry times the lazy engine against one synthetic text size.
type ScalingEntry struct {
	Chars int   `json:"chars"`
	Tags  int   `json:"tags"`
	Parse Stats `json:"parse"`
	Clean Stats `json:"clean"`
}

// Report is the full benchmark output.
type Report struct {
	Metadata   Metadata       `json:"metadata"`
	SpecSample SpecSample     `json:"spec_sample"`
	Scaling    []ScalingEntry `json:"scaling"`
	Accuracy   Accuracy       `json:"accuracy"`
}

// scaleMatrix approximates the canonical sample, a mid-size transcript, and
// a long transcript.
var scaleMatrix = []struct {
	chars int
	tags  int
	seed  int64
}{
	{chars: 693, tags: 4, seed: 7},
	{chars: 10_000, tags: 50, seed: 11},
	{chars: 20_000, tags: 100, seed: 19},
}

// Run executes the full harness: canonical-sample timings for both engines,
// the scaling matrix, and the accuracy study.
func Run(opts Options) *Report {
	opts = opts.applyDefaults()

	lazyParse := Measure(func() { _, _ = tagparse.Parse(samples.Raw, tagparse.DefaultTag) }, opts.Runs, opts.Warmup)
	lazyClean := Measure(func() { _, _ = tagparse.Clean(samples.Raw, tagparse.DefaultTag) }, opts.Runs, opts.Warmup)
	linearParse := Measure(func() { _, _ = tagparse.ParseLinear(samples.Raw, tagparse.DefaultTag) }, opts.Runs, opts.Warmup)
	linearClean := Measure(func() { _, _ = tagparse.CleanLinear(samples.Raw, tagparse.DefaultTag) }, opts.Runs, opts.Warmup)

	specThoughts, _ := tagparse.Parse(samples.Raw, tagparse.DefaultTag)

	scaling := make([]ScalingEntry, 0, len(scaleMatrix))
	for _, row := range scaleMatrix {
		text := SyntheticOutput(row.chars, row.tags, row.seed)
		parse := Measure(func() { _, _ = tagparse.Parse(text, tagparse.DefaultTag) }, opts.ScaleRuns, opts.ScaleWarmup)
		clean := Measure(func() { _, _ = tagparse.Clean(text, tagparse.DefaultTag) }, opts.ScaleRuns, opts.ScaleWarmup)
		scaling = append(scaling, ScalingEntry{
			Chars: row.chars,
			Tags:  row.tags,
			Parse: Summarize(parse),
			Clean: Summarize(clean),
		})
	}

	return &Report{
		Metadata: Metadata{
			TimestampUTC:  time.Now().UTC().Format(time.RFC3339),
			GoVersion:     runtime.Version(),
			OS:            runtime.GOOS,
			Arch:          runtime.GOARCH,
			Runs:          opts.Runs,
			ScaleRuns:     opts.ScaleRuns,
			AccuracyCases: opts.AccuracyCases,
		},
		SpecSample: SpecSample{
			InputChars:  len(samples.Raw),
			TagCount:    specThoughts.Len(),
			RegexParse:  Summarize(lazyParse),
			RegexClean:  Summarize(lazyClean),
			LinearParse: Summarize(linearParse),
			LinearClean: Summarize(linearClean),
		},
		Scaling:  scaling,
		Accuracy: AccuracyStudy(opts.AccuracyCases),
	}
}

// WriteFile serializes the report as indented JSON, creating parent
// directories as needed.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// ReadFile loads a report previously written with WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}
