package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is the durable local tier: knowledge states, performance records and
// the LLM request log, all in one SQLite file.
type Store struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps the
	// per-connection pragmas in force for every statement.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, b: entsql.Dialect(dialect.SQLite)}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{s: s}
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

const (
	tableKnowledge   = "knowledge_states"
	tablePerformance = "performance"
	tableLLMRequests = "llm_requests"
)

// schema is the DDL for every table and index this store uses. Knowledge
// states and performance records are JSON blobs keyed by their composite id.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ` + tableKnowledge + ` (
		student_id TEXT NOT NULL,
		skill_id   TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0,
		synced     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (student_id, skill_id)
	)`,
	`CREATE INDEX IF NOT EXISTS knowledge_states_synced
		ON ` + tableKnowledge + ` (synced, updated_at)`,
	`CREATE TABLE IF NOT EXISTS ` + tablePerformance + ` (
		student_id TEXT NOT NULL,
		game_id    TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (student_id, game_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + tableLLMRequests + ` (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp     INTEGER NOT NULL DEFAULT 0,
		provider      TEXT NOT NULL DEFAULT '',
		model         TEXT NOT NULL DEFAULT '',
		purpose       TEXT NOT NULL DEFAULT '',
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms    INTEGER NOT NULL DEFAULT 0,
		success       INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		request_body  TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
}

// migrate creates missing tables and indexes.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// exec runs a builder statement.
func (s *Store) exec(ctx context.Context, q entsql.Querier) error {
	_, err := s.execN(ctx, q)
	return err
}

// execN runs a builder statement and returns the rows it affected.
func (s *Store) execN(ctx context.Context, q entsql.Querier) (int64, error) {
	query, args := q.Query()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec %q: %w", query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
