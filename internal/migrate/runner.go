// Package migrate owns the versioned lifecycle of the relational schema.
//
// The runner fingerprints the canonical schema definition (db.Schema) and
// compares it with the config_hash of the newest schema_version row. A
// mismatch, or no version at all, applies the definition and records a new
// version row in the same transaction. A match is a no-op.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/mschirtzinger/inkpot/internal/db"
)

// ErrSchemaMismatch wraps any failure to apply the schema definition.
// Nothing is committed when it is returned.
//
//	if errors.Is(res.Err, migrate.ErrSchemaMismatch) {
//	    // DDL failed, the previous schema is intact
//	}
var ErrSchemaMismatch = errors.New("schema migration failed")

// Importer populates initial data after a schema change. The sync engine
// implements it.
type Importer interface {
	ImportInitialData(ctx context.Context) error
}

// Notifier is told about every completed migration attempt.
type Notifier interface {
	MigrationApplied(res Result)
}

// Result is the structured outcome of Run or Force.
type Result struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	AppliedAt  *time.Time `json:"applied_at,omitempty"`
	Version    int64      `json:"version,omitempty"`
	ConfigHash string     `json:"config_hash,omitempty"`
	// Err is the underlying failure, if any. It is not serialized.
	Err error `json:"-"`
}

// Config holds configuration for the runner.
type Config struct {
	// Definition is the desired schema. Defaults to db.Schema.
	Definition *db.Definition

	// Importer runs after a schema change when initial data is requested.
	Importer Importer

	// Notifier, if set, receives every result.
	Notifier Notifier

	// Logger for migration activity
	Logger *log.Logger

	// Now returns the current time. Overridable in tests.
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Definition: &db.Schema,
		Logger:     log.New(os.Stderr, "[migrate] ", log.LstdFlags),
		Now:        time.Now,
	}
}

// Runner applies schema migrations. Calls are mutually exclusive.
type Runner struct {
	db     *db.DB
	config *Config
	mu     sync.Mutex
}

// New creates a runner over database. A nil config uses DefaultConfig.
func New(database *db.DB, config *Config) *Runner {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Definition == nil {
		config.Definition = defaults.Definition
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	return &Runner{db: database, config: config}
}

// SetImporter installs the initial data importer. The sync engine depends
// on the database being migrated, so it is usually wired after New.
func (r *Runner) SetImporter(imp Importer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Importer = imp
}

// Fingerprint returns the fingerprint of the desired schema.
func (r *Runner) Fingerprint() string {
	return r.config.Definition.Fingerprint()
}

// GetSchemaVersion returns the current stored version, or nil when the
// datastore has never been migrated. It fails only when storage is
// unreachable.
func (r *Runner) GetSchemaVersion(ctx context.Context) (*db.SchemaVersion, error) {
	v, err := r.db.CurrentSchemaVersion(ctx)
	if err != nil {
		if db.IsUnavailable(err) {
			return nil, err
		}
		r.config.Logger.Printf("Warning: unreadable schema version, treating as absent: %v", err)
		return nil, nil
	}
	return v, nil
}

// Run applies the schema when the stored fingerprint is absent or differs
// from the desired one. With populateInitialData, a successful schema
// change is followed by an initial data import.
func (r *Runner) Run(ctx context.Context, populateInitialData bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := r.Fingerprint()

	current, err := r.GetSchemaVersion(ctx)
	if err != nil {
		return r.finish(Result{
			Message: fmt.Sprintf("failed to read schema version: %v", err),
			Err:     err,
		})
	}

	if current != nil && current.ConfigHash == hash {
		appliedAt := current.AppliedAt
		return r.finish(Result{
			Success:    true,
			Message:    fmt.Sprintf("schema already up to date (version %d)", current.Version),
			AppliedAt:  &appliedAt,
			Version:    current.Version,
			ConfigHash: hash,
		})
	}

	if current == nil {
		r.config.Logger.Printf("No schema version found, applying %s", hash)
	} else {
		r.config.Logger.Printf("Schema changed (%s -> %s), applying", current.ConfigHash, hash)
	}
	return r.finish(r.apply(ctx, hash, populateInitialData))
}

// Force unconditionally re-applies the schema and records a new version
// row.
func (r *Runner) Force(ctx context.Context, populateInitialData bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := r.Fingerprint()
	r.config.Logger.Printf("Forcing schema migration to %s", hash)
	return r.finish(r.apply(ctx, hash, populateInitialData))
}

// apply runs the DDL and the version-row write in one transaction, then
// the optional import. The caller holds r.mu.
func (r *Runner) apply(ctx context.Context, hash string, populateInitialData bool) Result {
	var version *db.SchemaVersion
	err := r.db.WithTx(ctx, func(q *db.Queries) error {
		if err := q.ApplyDefinition(ctx, *r.config.Definition); err != nil {
			return err
		}
		if err := q.EnsureVersionTable(ctx); err != nil {
			return err
		}
		v, err := q.InsertSchemaVersion(ctx, hash, r.config.Now())
		if err != nil {
			return err
		}
		version = v
		return nil
	})
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		return Result{
			Message: wrapped.Error(),
			Err:     wrapped,
		}
	}

	appliedAt := version.AppliedAt
	res := Result{
		Success:    true,
		Message:    fmt.Sprintf("schema migrated to version %d", version.Version),
		AppliedAt:  &appliedAt,
		Version:    version.Version,
		ConfigHash: hash,
	}

	if populateInitialData {
		if r.config.Importer == nil {
			res.Message += "; no importer configured, initial data skipped"
		} else if err := r.config.Importer.ImportInitialData(ctx); err != nil {
			r.config.Logger.Printf("Warning: initial data import failed: %v", err)
			res.Message += fmt.Sprintf("; initial data import failed: %v", err)
		} else {
			res.Message += "; initial data imported"
		}
	}
	return res
}

func (r *Runner) finish(res Result) Result {
	if res.Success {
		r.config.Logger.Println(res.Message)
	} else {
		r.config.Logger.Printf("Error: %s", res.Message)
	}
	if r.config.Notifier != nil {
		r.config.Notifier.MigrationApplied(res)
	}
	return res
}
