package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// importRow is one JSONL record. session_id and raw_output are required;
// category defaults to "reasoning" and tags may be omitted.
type importRow struct {
	SessionID string   `json:"session_id"`
	RawOutput string   `json:"raw_output"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
}

// ImportStats summarizes one ImportJSONL call.
type ImportStats struct {
	// Lines counts non-blank input lines.
	Lines int `json:"lines"`

	// Imported counts thoughts stored across all lines.
	Imported int `json:"imported"`

	// Failed counts lines that could not be ingested.
	Failed int `json:"failed"`

	// Errors carries one message per failed line.
	Errors []string `json:"errors,omitempty"`
}

// maxImportLine bounds a single JSONL record. Model transcripts run long
// but a multi-megabyte line is corrupt input, not data.
const maxImportLine = 4 * 1024 * 1024

// ImportJSONL ingests thoughts from newline-delimited JSON records. Blank
// lines are skipped. A bad line is recorded in the stats and the import
// continues; only a read error or context cancellation aborts the run.
func (p *Pipeline) ImportJSONL(ctx context.Context, r io.Reader) (*ImportStats, error) {
	stats := &ImportStats{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		var row importRow
		if err := json.Unmarshal(line, &row); err != nil {
			stats.fail(lineNo, fmt.Errorf("decoding record: %w", err))
			continue
		}
		if row.SessionID == "" {
			stats.fail(lineNo, fmt.Errorf("missing session_id"))
			continue
		}
		if row.RawOutput == "" {
			stats.fail(lineNo, fmt.Errorf("missing raw_output"))
			continue
		}

		result, err := p.Ingest(ctx, row.RawOutput, IngestOptions{
			SessionID: row.SessionID,
			Category:  row.Category,
			Tags:      row.Tags,
		})
		if err != nil {
			stats.fail(lineNo, err)
			continue
		}
		stats.Imported += len(result.Thoughts)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading import stream: %w", err)
	}

	p.logger.Info("jsonl import finished",
		zap.Int("lines", stats.Lines),
		zap.Int("imported", stats.Imported),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *ImportStats) fail(lineNo int, err error) {
	s.Failed++
	s.Errors = append(s.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
}
