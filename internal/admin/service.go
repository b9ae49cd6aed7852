// Package admin is the thin administrative surface over the sync engine
// and the migration runner. Every call returns a structured response; no
// error escapes as a bare error value. The CLI and the dashboard HTTP API
// are both built on it.
package admin

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mschirtzinger/inkpot/internal/db"
	"github.com/mschirtzinger/inkpot/internal/migrate"
	inksync "github.com/mschirtzinger/inkpot/internal/sync"
)

// Syncer is the part of the sync engine the admin surface drives.
type Syncer interface {
	SyncAll(ctx context.Context) (*inksync.Result, error)
	SyncOne(ctx context.Context, slug string) bool
}

// Migrator is the part of the migration runner the admin surface drives.
type Migrator interface {
	Run(ctx context.Context, populateInitialData bool) migrate.Result
	Force(ctx context.Context, populateInitialData bool) migrate.Result
	GetSchemaVersion(ctx context.Context) (*db.SchemaVersion, error)
	Fingerprint() string
}

// Counter reports table sizes. *db.DB implements it.
type Counter interface {
	CountArticles(ctx context.Context) (int, error)
	CountCategories(ctx context.Context) (int, error)
	CountAuthors(ctx context.Context) (int, error)
	CountTags(ctx context.Context) (int, error)
}

// SyncResponse answers a sync request. A targeted sync fills Success and
// Message; a full sync also fills the counts and the per-slug errors.
type SyncResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message,omitempty"`
	Slug      string   `json:"slug,omitempty"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// Counts are row counts per entity.
type Counts struct {
	Articles   int `json:"articles"`
	Categories int `json:"categories"`
	Authors    int `json:"authors"`
	Tags       int `json:"tags"`
}

// StatusResponse reports the schema version, or Empty when the datastore
// has never been migrated.
type StatusResponse struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message,omitempty"`
	Empty        bool              `json:"empty"`
	Version      *db.SchemaVersion `json:"version,omitempty"`
	ExpectedHash string            `json:"expected_hash"`
	UpToDate     bool              `json:"up_to_date"`
	Counts       *Counts           `json:"counts,omitempty"`
}

// MigrateRequest selects how a migration runs.
type MigrateRequest struct {
	Force      bool `json:"force"`
	SkipImport bool `json:"skip_import"`
}

// Service implements the administrative operations.
type Service struct {
	syncer   Syncer
	migrator Migrator
	counter  Counter
	logger   *log.Logger
}

// New creates a service. counter may be nil, in which case Status omits
// row counts.
func New(syncer Syncer, migrator Migrator, counter Counter, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[admin] ", log.LstdFlags)
	}
	return &Service{
		syncer:   syncer,
		migrator: migrator,
		counter:  counter,
		logger:   logger,
	}
}

// Sync runs a full sync when slug is empty and a targeted sync otherwise.
func (s *Service) Sync(ctx context.Context, slug string) SyncResponse {
	if slug != "" {
		if s.syncer.SyncOne(ctx, slug) {
			return SyncResponse{Success: true, Slug: slug, Message: fmt.Sprintf("synced %s", slug), Errors: []string{}}
		}
		return SyncResponse{
			Slug:    slug,
			Message: fmt.Sprintf("failed to sync %s: entry missing, invalid or not writable", slug),
			Errors:  []string{},
		}
	}

	res, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.logger.Printf("Error: sync failed: %v", err)
		return SyncResponse{Message: fmt.Sprintf("sync failed: %v", err), Errors: []string{}}
	}

	msg := fmt.Sprintf("created %d, updated %d, unchanged %d, %d error(s)",
		res.Created, res.Updated, res.Unchanged, len(res.Errors))
	if res.Cancelled {
		msg = "cancelled: " + msg
	}
	errs := res.Errors
	if errs == nil {
		errs = []string{}
	}
	return SyncResponse{
		Success:   true,
		Message:   msg,
		Created:   res.Created,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Errors:    errs,
		Cancelled: res.Cancelled,
	}
}

// Status reports the current schema version and row counts.
func (s *Service) Status(ctx context.Context) StatusResponse {
	resp := StatusResponse{ExpectedHash: s.migrator.Fingerprint()}

	v, err := s.migrator.GetSchemaVersion(ctx)
	if err != nil {
		resp.Message = fmt.Sprintf("datastore unavailable: %v", err)
		return resp
	}

	resp.Success = true
	if v == nil {
		resp.Empty = true
		resp.Message = "datastore has not been migrated"
		return resp
	}

	resp.Version = v
	resp.UpToDate = v.ConfigHash == resp.ExpectedHash
	if resp.UpToDate {
		resp.Message = fmt.Sprintf("schema version %d is up to date", v.Version)
	} else {
		resp.Message = fmt.Sprintf("schema version %d is out of date, run migrate", v.Version)
	}

	if s.counter != nil {
		counts, err := s.counts(ctx)
		if err != nil {
			s.logger.Printf("Warning: failed to count rows: %v", err)
		} else {
			resp.Counts = counts
		}
	}
	return resp
}

func (s *Service) counts(ctx context.Context) (*Counts, error) {
	var c Counts
	var err error
	if c.Articles, err = s.counter.CountArticles(ctx); err != nil {
		return nil, err
	}
	if c.Categories, err = s.counter.CountCategories(ctx); err != nil {
		return nil, err
	}
	if c.Authors, err = s.counter.CountAuthors(ctx); err != nil {
		return nil, err
	}
	if c.Tags, err = s.counter.CountTags(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// Migrate runs or forces a migration. Initial data is imported after a
// schema change unless SkipImport is set.
func (s *Service) Migrate(ctx context.Context, req MigrateRequest) migrate.Result {
	populate := !req.SkipImport
	if req.Force {
		return s.migrator.Force(ctx, populate)
	}
	return s.migrator.Run(ctx, populate)
}
