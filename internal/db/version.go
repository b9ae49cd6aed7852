package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const versionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL,
	config_hash TEXT NOT NULL
)`

// EnsureVersionTable creates the schema_version table if needed.
func (q *Queries) EnsureVersionTable(ctx context.Context) error {
	if _, err := q.q.ExecContext(ctx, versionTableSQL); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// CurrentSchemaVersion returns the highest version row, or nil when the
// version table is missing or empty.
func (q *Queries) CurrentSchemaVersion(ctx context.Context) (*SchemaVersion, error) {
	var exists int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return nil, nil
	}

	var v SchemaVersion
	var appliedAt string
	err = q.q.QueryRowContext(ctx,
		`SELECT version, applied_at, config_hash FROM schema_version ORDER BY version DESC LIMIT 1`,
	).Scan(&v.Version, &appliedAt, &v.ConfigHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	v.AppliedAt = parseTime(appliedAt)
	return &v, nil
}

// InsertSchemaVersion appends a version row one above the current
// highest and returns it.
func (q *Queries) InsertSchemaVersion(ctx context.Context, configHash string, appliedAt time.Time) (*SchemaVersion, error) {
	var next int64
	err := q.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM schema_version`).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to compute next schema version: %w", err)
	}

	appliedAt = appliedAt.UTC().Truncate(time.Second)
	_, err = q.q.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at, config_hash) VALUES (?, ?, ?)`,
		next, formatTime(appliedAt), configHash)
	if err != nil {
		return nil, fmt.Errorf("failed to record schema version %d: %w", next, err)
	}
	return &SchemaVersion{Version: next, AppliedAt: appliedAt, ConfigHash: configHash}, nil
}

// CountSchemaVersions returns the number of version rows, or 0 when the
// table does not exist.
func (q *Queries) CountSchemaVersions(ctx context.Context) (int, error) {
	v, err := q.CurrentSchemaVersion(ctx)
	if err != nil || v == nil {
		return 0, err
	}
	return q.count(ctx, "schema_version")
}
