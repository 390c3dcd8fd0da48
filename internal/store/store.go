// Package store owns the sqlite connection(s) behind one graph
// database file (master or feature), mirroring the teacher's
// internal/storage/sqlite.go: a single *sqlx.DB, PRAGMA tuning at
// open, schema.DDL applied once, and query helpers the repository and
// graph-query layers build on. §5 requires one writer, many readers,
// and query connections that forbid writes; Open's read-only variant
// satisfies the latter.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/swiftgraph/indexer/internal/schema"
)

// ErrNotFound is returned by single-row lookups that match no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps one sqlite database file with the schema from
// internal/schema already applied.
type Store struct {
	db       *sqlx.DB
	path     string
	logger   *logrus.Logger
	readOnly bool
}

// Open creates the database directory if needed, connects, applies
// PRAGMAs for WAL concurrency, and runs schema.DDL. Safe to call
// against an existing file; DDL is idempotent.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if _, err := db.Exec(schema.DDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('version', ?)`, schema.MetaVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("stamp schema version: %w", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// OpenReadOnly opens an existing database file in a mode that rejects
// writes, for the query-side of §5's concurrency model. The file must
// already exist and carry a schema; queries against a missing file
// fail with a descriptive error rather than silently creating one.
func OpenReadOnly(path string, logger *logrus.Logger) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open read-only store %s: %w", path, err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_query_only=true", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite read-only: %w", err)
	}
	return &Store{db: db, path: path, logger: logger, readOnly: true}, nil
}

// Exists reports whether a database file is present at path, used by
// the branch-aware query façade (§4.7) to decide feature-store use
// without opening a connection.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the file path this store was opened against.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sqlx.DB for packages that issue their own
// statements (repository, graphquery) without duplicating connection
// management here.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside one write transaction: commits on success,
// rolls back on any error, matching §5's "every mutating repository
// method must be called inside an outer transaction" rule and the
// teacher's BeginTxx/defer Rollback/Commit pattern.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.readOnly {
		return fmt.Errorf("store: write attempted on read-only connection %s", s.path)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Get wraps sqlx.GetContext, translating sql.ErrNoRows to ErrNotFound
// the way the teacher's GetRepository/GetRiskAssessment do.
func (s *Store) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Select wraps sqlx.SelectContext.
func (s *Store) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return s.db.SelectContext(ctx, dest, query, args...)
}

// RemoveFeatureDatabase deletes a feature store's main file plus its
// WAL/SHM sidecars, as required when a feature-branch indexer
// discovers it was last stamped for a different branch (§4.9 step 2).
func RemoveFeatureDatabase(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		p := path + suffix
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
