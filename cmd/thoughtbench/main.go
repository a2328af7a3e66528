// Package main implements the thoughtbench CLI for the tag parsing
// benchmark harness.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/bench"
)

var (
	// version information
	version = "dev"

	// run command flags
	runRuns          int
	runWarmup        int
	runScaleRuns     int
	runScaleWarmup   int
	runAccuracyCases int
	runOutput        string

	// gates command flags
	gateMinAccuracy float64
	gateMaxP95MS    float64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "thoughtbench",
	Short: "Benchmark harness for the thought tag parsers",
	Long: `thoughtbench times the regex and linear tag parsing engines against the
canonical sample and synthetic transcripts, scores extraction accuracy on
seeded cases, and applies the CI latency and accuracy gates.`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gatesCmd)

	runCmd.Flags().IntVar(&runRuns, "runs", bench.DefaultRuns, "Timed runs per canonical-sample measurement")
	runCmd.Flags().IntVar(&runWarmup, "warmup", bench.DefaultWarmup, "Unmeasured warmup runs per measurement")
	runCmd.Flags().IntVar(&runScaleRuns, "scale-runs", bench.DefaultScaleRuns, "Timed runs per scaling entry")
	runCmd.Flags().IntVar(&runScaleWarmup, "scale-warmup", bench.DefaultScaleWarmup, "Warmup runs per scaling entry")
	runCmd.Flags().IntVar(&runAccuracyCases, "accuracy-cases", bench.DefaultAccuracyCases, "Synthetic cases in the accuracy study")
	runCmd.Flags().StringVar(&runOutput, "output", "", "Write the report JSON to this path")

	gatesCmd.Flags().Float64Var(&gateMinAccuracy, "min-accuracy", bench.DefaultMinAccuracyPct, "Accuracy floor in percent for both engines")
	gatesCmd.Flags().Float64Var(&gateMaxP95MS, "max-p95-ms", bench.DefaultMaxP95MS, "Exclusive p95 latency ceiling in ms for the regex engine")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full benchmark harness",
	Long: `Run the full harness: canonical-sample timings for both engines, the
scaling matrix, and the seeded accuracy study. The summary is printed as a
table; --output also writes the full report as JSON.

Examples:
  # Full run with defaults
  thoughtbench run

  # Quick run
  thoughtbench run --runs 50 --warmup 20 --accuracy-cases 100

  # Keep the report for the gates
  thoughtbench run --output reports/bench.json`,
	RunE: runRun,
}

var gatesCmd = &cobra.Command{
	Use:   "gates [report.json]",
	Short: "Apply the CI gates to a benchmark report",
	Long: `Apply the CI thresholds to a report written by "thoughtbench run", or to
a fresh in-process run when no report path is given.

Prints "CI gates: PASS" or "CI gates: FAIL" with one line per failed gate,
and exits 1 on failure.

Examples:
  # Gate a saved report
  thoughtbench gates reports/bench.json

  # Run and gate in one step
  thoughtbench gates

  # Tighter latency ceiling
  thoughtbench gates --max-p95-ms 0.5 reports/bench.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGates,
}

// runRun handles the run command
func runRun(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "[thoughtbench] running: %d runs, %d accuracy cases\n", runRuns, runAccuracyCases)

	report := bench.Run(bench.Options{
		Runs:          runRuns,
		Warmup:        runWarmup,
		ScaleRuns:     runScaleRuns,
		ScaleWarmup:   runScaleWarmup,
		AccuracyCases: runAccuracyCases,
	})

	printReport(report)

	if runOutput != "" {
		if err := report.WriteFile(runOutput); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Fprintf(os.Stderr, "[thoughtbench] report written to %s\n", runOutput)
	}

	return nil
}

// runGates handles the gates command
func runGates(cmd *cobra.Command, args []string) error {
	var report *bench.Report
	if len(args) == 1 {
		var err error
		report, err = bench.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read report: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "[thoughtbench] no report given, running in-process")
		report = bench.Run(bench.Options{})
	}

	gates := bench.Gates{
		MinAccuracyPct: gateMinAccuracy,
		MaxP95MS:       gateMaxP95MS,
	}

	failures := bench.Check(report, gates)
	if len(failures) > 0 {
		fmt.Println("CI gates: FAIL")
		for _, f := range failures {
			fmt.Printf("  %s\n", f)
		}
		os.Exit(1)
	}

	fmt.Println("CI gates: PASS")
	return nil
}

// printReport writes the human summary tables to stdout.
func printReport(r *bench.Report) {
	fmt.Printf("Benchmark %s (%s/%s, %s)\n", r.Metadata.TimestampUTC, r.Metadata.OS, r.Metadata.Arch, r.Metadata.GoVersion)
	fmt.Printf("\nCanonical sample: %d chars, %d tags, %d runs\n", r.SpecSample.InputChars, r.SpecSample.TagCount, r.Metadata.Runs)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tAVG MS\tMEDIAN MS\tP95 MS\tMAX MS")
	printStatsRow(w, "regex parse", r.SpecSample.RegexParse)
	printStatsRow(w, "regex clean", r.SpecSample.RegexClean)
	printStatsRow(w, "linear parse", r.SpecSample.LinearParse)
	printStatsRow(w, "linear clean", r.SpecSample.LinearClean)
	w.Flush()

	fmt.Printf("\nScaling (regex engine, %d runs each)\n", r.Metadata.ScaleRuns)
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHARS\tTAGS\tPARSE P95 MS\tCLEAN P95 MS")
	for _, entry := range r.Scaling {
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%.4f\n", entry.Chars, entry.Tags, entry.Parse.P95MS, entry.Clean.P95MS)
	}
	w.Flush()

	fmt.Printf("\nAccuracy (%d cases, %d expected tags)\n", r.Accuracy.Cases, r.Accuracy.TotalExpectedTags)
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENGINE\tEXACT CASE %\tPER TAG %")
	fmt.Fprintf(w, "regex\t%.6f\t%.6f\n", r.Accuracy.Lazy.ExactCasePct, r.Accuracy.Lazy.PerTagPct)
	fmt.Fprintf(w, "linear\t%.6f\t%.6f\n", r.Accuracy.Linear.ExactCasePct, r.Accuracy.Linear.PerTagPct)
	w.Flush()
}

func printStatsRow(w *tabwriter.Writer, name string, s bench.Stats) {
	fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.4f\n", name, s.AvgMS, s.MedianMS, s.P95MS, s.MaxMS)
}
