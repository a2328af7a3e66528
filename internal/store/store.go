// Package store persists thoughts and sessions in SQLite and serves hybrid
// semantic retrieval over an in-process vector index.
//
// SQLite (via the pure-Go modernc driver) is the source of truth; the vector
// index is rebuilt from it on open and maintained on every write. Retrieval
// blends cosine similarity against a recency prior, and cross-session recall
// walks session lineage with optional expansion through the thought graph.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fyrsmithlabs/thoughtd/internal/store/migrations"
	"github.com/fyrsmithlabs/thoughtd/internal/thought"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrSessionNotFound is returned when a session id has no row.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidConfig indicates an invalid store configuration.
	ErrInvalidConfig = errors.New("invalid store config")
)

// storeTracer for OpenTelemetry instrumentation.
var storeTracer = otel.Tracer("thoughtd.store")

// timeLayout keeps a fixed-width fraction so the lexicographic order of
// stored timestamps matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// thoughtColumns lists the columns scanThought expects, in order.
const thoughtColumns = "id, timestamp_utc, session_id, category, confidence, tags_json, raw_text, cleaned_text, embedding_dim, embedding_blob"

// Embedder produces query embeddings for hybrid search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds configuration for the thought store.
type Config struct {
	// Path is the SQLite database file. Empty means a private in-memory
	// database.
	Path string

	// EmbeddingDim is the embedding dimension every stored thought must
	// match. Default: 384.
	EmbeddingDim int

	// VectorBackend selects the similarity index: auto, memory or chromem.
	// Default: auto (resolves to memory).
	VectorBackend string

	// ChromemPath enables on-disk persistence for the chromem backend.
	ChromemPath string
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.EmbeddingDim == 0 {
		c.EmbeddingDim = thought.DefaultEmbeddingDim
	}
	if c.VectorBackend == "" {
		c.VectorBackend = "auto"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	switch strings.ToLower(strings.TrimSpace(c.VectorBackend)) {
	case "auto", "memory", "chromem":
	default:
		return fmt.Errorf("%w: vector backend must be one of: auto, memory, chromem", ErrInvalidConfig)
	}
	return nil
}

// Store is a thread-safe thought store backed by SQLite and a vector index.
type Store struct {
	db       *sql.DB
	embedder Embedder
	config   Config
	logger   *zap.Logger

	// mu guards the vector index; the database handle synchronizes itself.
	mu    sync.RWMutex
	index vectorBackend

	closed atomic.Bool
}

// Open creates or opens a thought store with the given configuration.
func Open(cfg Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := ":memory:"
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = cfg.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Path == "" {
		// Every pooled connection would otherwise get its own private
		// in-memory database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	index, err := resolveVectorBackend(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.index = index

	if err := s.rebuildIndex(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuilding vector index: %w", err)
	}

	pathLabel := cfg.Path
	if pathLabel == "" {
		pathLabel = ":memory:"
	}
	logger.Info("thought store opened",
		zap.String("path", pathLabel),
		zap.String("vector_backend", index.Name()),
		zap.Int("embedding_dim", cfg.EmbeddingDim),
	)
	return s, nil
}

// Close closes the database connection. It is safe to call more than once.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying database handle for collaborators that share the
// schema, such as the thought graph.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BackendName reports which vector backend the store resolved to.
func (s *Store) BackendName() string {
	return s.index.Name()
}

// EmbeddingDim reports the embedding dimension the store enforces.
func (s *Store) EmbeddingDim() int {
	return s.config.EmbeddingDim
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// migrate applies all pending schema migrations in order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1).
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// rebuildIndex loads every stored embedding into the vector index.
func (s *Store) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, embedding_blob, embedding_dim FROM thoughts")
	if err != nil {
		return fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var entries []vectorEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			id   string
			blob []byte
			dim  int
		)
		if err := rows.Scan(&id, &blob, &dim); err != nil {
			return fmt.Errorf("scanning embedding: %w", err)
		}
		vec, err := blobToVector(blob, dim)
		if err != nil {
			return fmt.Errorf("decoding embedding for %s: %w", id, err)
		}
		entries = append(entries, vectorEntry{ID: id, Vector: vec})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating embeddings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Build(ctx, entries)
}

// PutSession creates or updates a session row. A referenced parent session
// gets a placeholder row so lineage walks terminate cleanly.
func (s *Store) PutSession(ctx context.Context, session *thought.Session) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return thought.ErrEmptySessionID
	}

	metadata := session.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling session metadata: %w", err)
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if strings.TrimSpace(session.ParentID) != "" {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, parent_session_id, created_at_utc, metadata_json)
			VALUES (?, NULL, ?, '{}')
			ON CONFLICT(session_id) DO NOTHING
		`, session.ParentID, FormatTime(time.Now().UTC()))
		if err != nil {
			return fmt.Errorf("saving parent session: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, parent_session_id, created_at_utc, metadata_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			parent_session_id = excluded.parent_session_id,
			metadata_json = excluded.metadata_json
	`, session.ID, nullString(session.ParentID), FormatTime(createdAt), string(metadataJSON))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	SessionsUpserted.Inc()
	return nil
}

// Session retrieves a session by id.
func (s *Store) Session(ctx context.Context, id string) (*thought.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, parent_session_id, created_at_utc, metadata_json
		FROM sessions WHERE session_id = ?
	`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// Sessions returns all sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]thought.Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, parent_session_id, created_at_utc, metadata_json
		FROM sessions ORDER BY created_at_utc DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []thought.Session //nolint:prealloc // size unknown from query
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// SessionLineage returns the ancestor chain starting at the session itself
// (self, parent, grandparent, ...). The walk is cycle-safe.
func (s *Store) SessionLineage(ctx context.Context, sessionID string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.lineage(ctx, sessionID, true)
}

func (s *Store) lineage(ctx context.Context, sessionID string, includeSelf bool) ([]string, error) {
	current := sessionID
	if !includeSelf {
		parent, err := s.sessionParent(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		current = parent
	}

	var chain []string
	visited := make(map[string]bool)
	for current != "" {
		if visited[current] {
			break
		}
		visited[current] = true
		chain = append(chain, current)
		parent, err := s.sessionParent(ctx, current)
		if err != nil {
			return nil, err
		}
		current = parent
	}
	return chain, nil
}

func (s *Store) sessionParent(ctx context.Context, sessionID string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT parent_session_id FROM sessions WHERE session_id = ?", sessionID)
	var parent sql.NullString
	if err := row.Scan(&parent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("querying session parent: %w", err)
	}
	return parent.String, nil
}

// Put stores one thought atomically.
func (s *Store) Put(ctx context.Context, t *thought.Thought) error {
	return s.PutBatch(ctx, []*thought.Thought{t})
}

// PutBatch stores many thoughts atomically in one transaction. Session rows
// are created on demand, repeats upsert by thought id, and the vector index
// is updated after commit.
func (s *Store) PutBatch(ctx context.Context, thoughts []*thought.Thought) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(thoughts) == 0 {
		return nil
	}

	ctx, span := storeTracer.Start(ctx, "Store.PutBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("thought_count", len(thoughts)))

	for _, t := range thoughts {
		if t == nil {
			return errors.New("nil thought in batch")
		}
		if t.EmbeddingDim != s.config.EmbeddingDim {
			err := fmt.Errorf("%w: thought %s has embedding dim %d, store expects %d",
				thought.ErrDimensionMismatch, t.ID, t.EmbeddingDim, s.config.EmbeddingDim)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if len(t.Embedding) != t.EmbeddingDim {
			err := fmt.Errorf("%w: thought %s embedding holds %d values, dim says %d",
				thought.ErrDimensionMismatch, t.ID, len(t.Embedding), t.EmbeddingDim)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := s.putBatchTx(ctx, thoughts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.mu.Lock()
	for _, t := range thoughts {
		if err := s.index.Upsert(ctx, t.ID, t.Embedding); err != nil {
			s.mu.Unlock()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("updating vector index: %w", err)
		}
	}
	s.mu.Unlock()

	ThoughtsStored.Add(float64(len(thoughts)))
	BatchSize.Observe(float64(len(thoughts)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("stored thoughts", zap.Int("count", len(thoughts)))
	return nil
}

func (s *Store) putBatchTx(ctx context.Context, thoughts []*thought.Thought) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	sessionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (session_id, parent_session_id, created_at_utc, metadata_json)
		VALUES (?, NULL, ?, '{}')
		ON CONFLICT(session_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing session statement: %w", err)
	}
	defer sessionStmt.Close()

	thoughtStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO thoughts (
			id, timestamp_utc, session_id, category, confidence, tags_json,
			raw_text, cleaned_text, embedding_dim, embedding_blob, payload_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp_utc = excluded.timestamp_utc,
			session_id = excluded.session_id,
			category = excluded.category,
			confidence = excluded.confidence,
			tags_json = excluded.tags_json,
			raw_text = excluded.raw_text,
			cleaned_text = excluded.cleaned_text,
			embedding_dim = excluded.embedding_dim,
			embedding_blob = excluded.embedding_blob,
			payload_json = excluded.payload_json
	`)
	if err != nil {
		return fmt.Errorf("preparing thought statement: %w", err)
	}
	defer thoughtStmt.Close()

	now := time.Now().UTC()
	for _, t := range thoughts {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if _, err := sessionStmt.ExecContext(ctx, t.SessionID, FormatTime(now)); err != nil {
			return fmt.Errorf("saving session %s: %w", t.SessionID, err)
		}

		tagsJSON, err := marshalTags(t.Tags)
		if err != nil {
			return fmt.Errorf("marshalling tags: %w", err)
		}
		payloadJSON, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}

		if _, err := thoughtStmt.ExecContext(ctx,
			t.ID, FormatTime(t.CreatedAt), t.SessionID, t.Category, t.Confidence,
			tagsJSON, t.RawText, t.CleanedText, t.EmbeddingDim,
			vectorToBlob(t.Embedding), string(payloadJSON),
		); err != nil {
			return fmt.Errorf("saving thought %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a thought by id.
func (s *Store) Get(ctx context.Context, id string) (*thought.Thought, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+thoughtColumns+" FROM thoughts WHERE id = ?", id)
	t, err := scanThought(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, thought.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List retrieves thoughts by metadata filters, newest first, without semantic
// ranking. The tag filter applies after the limit, so fewer than limit rows
// may come back.
func (s *Store) List(ctx context.Context, filters thought.Filters, limit int) ([]*thought.Thought, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		QueryDuration.WithLabelValues("list").Observe(time.Since(start).Seconds())
	}()

	clauses := []string{"1=1"}
	var args []any
	if filters.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		args = append(args, filters.SessionID)
	}
	if filters.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filters.Category)
	}
	if filters.MinConfidence > 0 {
		clauses = append(clauses, "confidence >= ?")
		args = append(args, filters.MinConfidence)
	}
	if !filters.Since.IsZero() {
		clauses = append(clauses, "timestamp_utc >= ?")
		args = append(args, FormatTime(filters.Since))
	}
	if !filters.Until.IsZero() {
		clauses = append(clauses, "timestamp_utc <= ?")
		args = append(args, FormatTime(filters.Until))
	}

	query := "SELECT " + thoughtColumns + " FROM thoughts WHERE " + strings.Join(clauses, " AND ") +
		" ORDER BY timestamp_utc DESC LIMIT ?"
	args = append(args, max(1, limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying thoughts: %w", err)
	}
	defer rows.Close()

	var thoughts []*thought.Thought //nolint:prealloc // size unknown from query
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, err
		}
		thoughts = append(thoughts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thoughts: %w", err)
	}

	if len(filters.TagsAny) > 0 {
		filtered := thoughts[:0]
		for _, t := range thoughts {
			if filters.Matches(t) {
				filtered = append(filtered, t)
			}
		}
		thoughts = filtered
	}
	return thoughts, nil
}

// Count reports the total number of stored thoughts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM thoughts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting thoughts: %w", err)
	}
	return n, nil
}

// CountSessions reports the total number of known sessions.
func (s *Store) CountSessions(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// GetByIDs retrieves the thoughts for the given ids, skipping unknown ids.
// Results come back in no particular order.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]*thought.Thought, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+thoughtColumns+" FROM thoughts WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying thoughts by id: %w", err)
	}
	defer rows.Close()

	var thoughts []*thought.Thought //nolint:prealloc // size unknown from query
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, err
		}
		thoughts = append(thoughts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thoughts: %w", err)
	}
	return thoughts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThought(row rowScanner) (*thought.Thought, error) {
	var (
		t         thought.Thought
		timestamp string
		tagsJSON  string
		blob      []byte
	)
	if err := row.Scan(&t.ID, &timestamp, &t.SessionID, &t.Category, &t.Confidence,
		&tagsJSON, &t.RawText, &t.CleanedText, &t.EmbeddingDim, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning thought: %w", err)
	}

	ts, err := ParseTime(timestamp)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = ts

	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return nil, fmt.Errorf("unmarshaling tags: %w", err)
	}

	vec, err := blobToVector(blob, t.EmbeddingDim)
	if err != nil {
		return nil, err
	}
	t.Embedding = vec
	return &t, nil
}

func scanSession(row rowScanner) (*thought.Session, error) {
	var (
		sess         thought.Session
		parent       sql.NullString
		createdAt    string
		metadataJSON string
	)
	if err := row.Scan(&sess.ID, &parent, &createdAt, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.ParentID = parent.String

	ts, err := ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = ts

	if err := json.Unmarshal([]byte(metadataJSON), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling session metadata: %w", err)
	}
	return &sess, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// FormatTime renders a timestamp in the store's fixed-width UTC layout.
// Collaborators sharing the schema (the thought graph) use the same layout so
// their string comparisons stay consistent.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a timestamp persisted by FormatTime.
func ParseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}
