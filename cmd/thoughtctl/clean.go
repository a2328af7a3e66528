package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/thoughtd/internal/tagparse"
)

var (
	// clean command flags
	clTag        string
	clEngine     string
	clOutputJSON bool
)

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringVar(&clTag, "tag", tagparse.DefaultTag, "Annotation tag name")
	cleanCmd.Flags().StringVar(&clEngine, "engine", "lazy", "Parse engine: lazy or linear")
	cleanCmd.Flags().BoolVar(&clOutputJSON, "json", false, "Output thoughts and cleaned text as JSON")
}

var cleanCmd = &cobra.Command{
	Use:   "clean [text]",
	Short: "Strip thought annotations from text",
	Long: `Strip thought annotations from raw text. No store is opened.

The text comes from the argument, or from stdin when the argument is missing
or "-". The cleaned text goes to stdout; the removal count goes to stderr.

Examples:
  # Clean a transcript
  cat transcript.txt | thoughtctl clean

  # Clean with the linear engine and a custom tag
  thoughtctl clean --engine linear --tag note 'Plan /note[check cache] done'

  # Inspect the extracted thoughts as JSON
  cat transcript.txt | thoughtctl clean --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

// runClean handles the clean command
func runClean(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args)
	if err != nil {
		return err
	}

	var linear bool
	switch clEngine {
	case "", "lazy":
	case "linear":
		linear = true
	default:
		return fmt.Errorf("unknown engine: %q (valid: lazy, linear)", clEngine)
	}

	result, err := tagparse.ParseAndClean(raw, clTag, linear)
	if err != nil {
		return fmt.Errorf("clean failed: %w", err)
	}

	if clOutputJSON {
		return outputJSON(result)
	}

	fmt.Print(result.CleanedText)
	if n := result.Thoughts.Len(); n > 0 {
		fmt.Fprintf(os.Stderr, "\n[thoughtctl] Removed %d thought annotation(s)\n", n)
	}

	return nil
}
