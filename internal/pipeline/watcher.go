package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultSettle is how long a spool file must stay quiet before import.
// Writers that stream records line by line keep resetting the timer.
const DefaultSettle = 200 * time.Millisecond

const (
	spoolSuffix    = ".jsonl"
	claimSuffix    = ".importing"
	importedSuffix = ".imported"
	failedSuffix   = ".failed"
)

// ImportEvent reports one completed spool import.
type ImportEvent struct {
	// Path is the spool file as originally named.
	Path string

	// Stats summarizes the import. Nil when the file could not be read.
	Stats *ImportStats

	// Err is set when the import aborted.
	Err error
}

// WatcherConfig configures a spool watcher.
type WatcherConfig struct {
	// Dir is the spool directory. Created if missing. Required.
	Dir string

	// Settle overrides DefaultSettle when positive.
	Settle time.Duration
}

// Watcher imports *.jsonl files dropped into a spool directory.
//
// Each file is claimed by renaming it to *.importing before reading, so
// concurrent watchers never double-import. After the run the file is
// renamed to *.imported or *.failed and an ImportEvent is emitted on
// Results().
type Watcher struct {
	pipeline *Pipeline
	dir      string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	results chan ImportEvent
	due     chan string
	stop    chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a spool watcher. The directory is created if it does
// not exist.
func NewWatcher(p *Pipeline, cfg WatcherConfig, logger *zap.Logger) (*Watcher, error) {
	if p == nil {
		return nil, errors.New("pipeline: watcher requires a pipeline")
	}
	if cfg.Dir == "" {
		return nil, errors.New("pipeline: watcher requires a spool directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("initializing spool watcher: %w", err)
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		pipeline: p,
		dir:      cfg.Dir,
		settle:   settle,
		watcher:  fsWatcher,
		logger:   logger,
		results:  make(chan ImportEvent, 10),
		due:      make(chan string, 10),
		stop:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start sweeps files already in the spool, then begins watching for new
// ones. Call Stop to clean up resources.
func (w *Watcher) Start(ctx context.Context) error {
	existing, err := filepath.Glob(filepath.Join(w.dir, "*"+spoolSuffix))
	if err != nil {
		return fmt.Errorf("sweeping spool directory: %w", err)
	}
	for _, path := range existing {
		w.scheduleImport(path)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching spool directory: %w", err)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
		return
	default:
		close(w.stop)
		w.mu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}
}

// Results returns the channel for receiving import events.
func (w *Watcher) Results() <-chan ImportEvent {
	return w.results
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case path := <-w.due:
			w.importFile(ctx, path)
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, spoolSuffix) {
				continue
			}
			w.scheduleImport(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("spool watcher error", zap.Error(err))
		}
	}
}

// scheduleImport arms the settle timer for a spool file, resetting it if
// the file is still being written.
func (w *Watcher) scheduleImport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case w.due <- path:
		case <-w.stop:
		}
	})
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	claimed := path + claimSuffix
	if err := os.Rename(path, claimed); err != nil {
		// Another watcher claimed the file, or it was removed.
		return
	}

	stats, err := w.readAndImport(ctx, claimed)
	status, finalSuffix := "imported", importedSuffix
	if err != nil {
		status, finalSuffix = "failed", failedSuffix
		w.logger.Warn("spool import failed", zap.String("path", path), zap.Error(err))
	}
	_ = os.Rename(claimed, path+finalSuffix)
	SpoolImports.WithLabelValues(status).Inc()

	// Send event (non-blocking)
	select {
	case w.results <- ImportEvent{Path: path, Stats: stats, Err: err}:
	default:
		// Channel full, skip event
	}
}

func (w *Watcher) readAndImport(ctx context.Context, path string) (*ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spool file: %w", err)
	}
	defer f.Close()
	return w.pipeline.ImportJSONL(ctx, f)
}
