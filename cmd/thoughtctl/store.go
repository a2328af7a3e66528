package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/pipeline"
)

var (
	// store command flags
	stSessionID  string
	stCategory   string
	stConfidence float64
	stTags       []string
	stOutputJSON bool

	// import command flags
	imOutputJSON bool
)

func init() {
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(importCmd)

	storeCmd.Flags().StringVar(&stSessionID, "session", "", "Session identifier (required)")
	storeCmd.Flags().StringVar(&stCategory, "category", "", "Category for extracted thoughts (default: reasoning)")
	storeCmd.Flags().Float64Var(&stConfidence, "confidence", 0, "Confidence for extracted thoughts, 0-1 (default: 0.9)")
	storeCmd.Flags().StringSliceVar(&stTags, "tag", nil, "Tag applied to every stored thought (repeatable)")
	storeCmd.Flags().BoolVar(&stOutputJSON, "json", false, "Output results as JSON")
	_ = storeCmd.MarkFlagRequired("session")

	importCmd.Flags().BoolVar(&imOutputJSON, "json", false, "Output stats as JSON")
}

var storeCmd = &cobra.Command{
	Use:   "store [text]",
	Short: "Extract and store thoughts from tagged output",
	Long: `Extract thought annotations from raw agent output and store them.

The raw text comes from the argument, or from stdin when the argument is
missing or "-". The cleaned text (annotations removed) is printed to stdout
and a summary goes to stderr.

Examples:
  # Store from an argument
  thoughtctl store --session sess_1 'Plan /thought[check the cache first] done'

  # Store a transcript from stdin
  cat transcript.txt | thoughtctl store --session sess_1

  # Tag and categorize every extracted thought
  thoughtctl store --session sess_1 --category planning --tag sprint-3 -

  # Output the stored thoughts as JSON
  thoughtctl store --session sess_1 --json 'text'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStore,
}

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import a JSONL archive of raw outputs",
	Long: `Import raw agent outputs from a JSONL file, one object per line.

Each line carries {"session_id", "raw_output"} plus optional "category" and
"tags" fields. Use "-" to read from stdin. Lines that fail to ingest are
counted and reported without aborting the rest of the file.

Examples:
  # Import a spool file
  thoughtctl import transcripts.jsonl

  # Import from stdin
  cat transcripts.jsonl | thoughtctl import -

  # Output stats as JSON
  thoughtctl import transcripts.jsonl --json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// runStore handles the store command
func runStore(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return fmt.Errorf("no text to store")
	}

	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.pipe.Ingest(context.Background(), raw, pipeline.IngestOptions{
		SessionID:  stSessionID,
		Category:   stCategory,
		Confidence: stConfidence,
		Tags:       stTags,
	})
	if err != nil {
		return fmt.Errorf("failed to store thoughts: %w", err)
	}

	if stOutputJSON {
		return outputJSON(res)
	}

	// Cleaned text to stdout, summary to stderr
	fmt.Print(res.CleanedOutput)
	fmt.Fprintf(os.Stderr, "\n[thoughtctl] Stored %d thought(s) in session %s via %s engine (%.2f ms)\n",
		len(res.Thoughts), stSessionID, res.Engine, res.LatencyMS)

	return nil
}

// runImport handles the import command
func runImport(cmd *cobra.Command, args []string) error {
	var r io.Reader
	if args[0] == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	svc, err := initMemService()
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.pipe.ImportJSONL(context.Background(), r)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if imOutputJSON {
		return outputJSON(stats)
	}

	fmt.Printf("Imported %d thought(s) from %d line(s)\n", stats.Imported, stats.Lines)
	if stats.Failed > 0 {
		fmt.Fprintf(os.Stderr, "[thoughtctl] %d line(s) failed:\n", stats.Failed)
		for _, msg := range stats.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		}
	}

	return nil
}
