// Package db is the repository layer: transactional CRUD over the embedded
// SQLite store for articles, categories, authors, tags, their join tables
// and the schema version history.
//
// The database runs in embedded mode using ncruces/go-sqlite3 with WAL for
// concurrent readers during writes.
//
// Architecture:
//   - Database file: .inkpot/inkpot.db
//   - WAL mode: Concurrent readers during writes
//   - Foreign keys: enforced on every pooled connection
//   - Transactions: BEGIN IMMEDIATE so concurrent writers queue on the
//     busy timeout instead of failing on lock upgrade
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries exposes the typed repository operations. The same methods run
// against the connection pool (DB.Queries) or inside a transaction
// (the argument of DB.WithTx).
type Queries struct {
	q querier
}

// DB wraps the SQLite connection pool.
type DB struct {
	*Queries

	conn *sql.DB
	path string
}

// Options tunes the connection pool.
type Options struct {
	// MaxOpenConns limits concurrent connections (0 = default of 8).
	MaxOpenConns int
	// BusyTimeout is how long a writer waits for the database lock.
	BusyTimeout time.Duration
}

// Open creates a new database connection at the specified path.
//
// The schema is not created here; run the migration runner before using
// the repository methods.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	database, err := db.Open(".inkpot/inkpot.db", db.Options{})
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
func Open(path string, opts Options) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 8
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	conn, err := sql.Open("sqlite3", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(min(opts.MaxOpenConns, 4))
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		Queries: &Queries{q: conn},
		conn:    conn,
		path:    path,
	}, nil
}

// dsn builds the connection string. Pragmas are passed in the DSN so that
// every pooled connection gets them, not just the first one.
func dsn(path string, opts Options) string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeout.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(wal)",
		"_txlock=immediate",
	}
	return "file:" + filepath.ToSlash(path) + "?" + strings.Join(params, "&")
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Checkpoint WAL before closing
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database is closed")
	}
	return db.conn.PingContext(ctx)
}

// WithTx runs fn inside a single transaction. The transaction commits if
// fn returns nil and rolls back otherwise, so a partial multi-statement
// write is never left behind.
func (db *DB) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	if db.conn == nil {
		return fmt.Errorf("failed to begin transaction: database is closed")
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Queries{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// formatTime renders t for storage. All timestamps are stored as RFC 3339
// UTC strings so lexical order matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a stored timestamp, returning the zero time for
// malformed values.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// boolToInt converts a flag for storage in an INTEGER column.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
