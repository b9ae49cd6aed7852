package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
)

// Change is the kind of write applied to an article.
type Change string

const (
	ChangeCreated Change = "created"
	ChangeUpdated Change = "updated"
	ChangeRemoved Change = "removed"
)

// Notifier is told about every article write and every completed batch.
// Implementations must not block.
type Notifier interface {
	ArticleChanged(slug string, change Change)
	SyncCompleted(res *Result)
}

// Result is the structured outcome of a batch sync.
type Result struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors"`
	Cancelled bool     `json:"cancelled,omitempty"`
}

// Config holds configuration for the engine.
type Config struct {
	// Workers bounds how many entries SyncAll processes at once.
	// Values below 1 mean sequential.
	Workers int

	// Taxonomy supplies categories and authors for ImportTaxonomy.
	// Optional.
	Taxonomy content.TaxonomyReader

	// Notifier, if set, receives write events.
	Notifier Notifier

	// Logger for sync activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Workers: 1,
		Logger:  log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Engine reconciles content entries with the database.
type Engine struct {
	db     *db.DB
	reader content.Reader
	config *Config
	locks  *keyedMutex
}

// outcome is what happened to one entry.
type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

// New creates an engine. The database must already be migrated.
// A nil config uses DefaultConfig.
func New(database *db.DB, reader content.Reader, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Engine{
		db:     database,
		reader: reader,
		config: config,
		locks:  newKeyedMutex(),
	}
}

// SyncAll reconciles every entry the reader enumerates.
//
// Per-entry failures and unresolved references are collected in
// Result.Errors and never stop the batch. The returned error is non-nil
// only when the content tree cannot be enumerated or the datastore itself
// is unavailable. Cancelling ctx yields the partial result with Cancelled
// set and a nil error.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	res := &Result{Errors: []string{}}

	entries, err := e.reader.ReadAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	e.config.Logger.Printf("Starting full sync of %d entries", len(entries))

	type item struct {
		done     bool
		outcome  outcome
		warnings []string
		err      error
	}
	items := make([]item, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Workers)

	for i, r := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			if r.Err != nil {
				items[i] = item{done: true, err: r.Err}
				return nil
			}

			out, warnings, err := e.syncEntry(gctx, r.Slug)
			if errors.Is(err, content.ErrNotFound) {
				// Removed since the listing; nothing to write.
				e.config.Logger.Printf("Skipping %s: entry removed during sync", r.Slug)
				return nil
			}
			if err != nil && gctx.Err() != nil {
				// Interrupted, not failed.
				return nil
			}
			if db.IsUnavailable(err) {
				return fmt.Errorf("datastore unavailable while syncing %s: %w", r.Slug, err)
			}
			items[i] = item{done: true, outcome: out, warnings: warnings, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.config.Logger.Printf("Error: full sync aborted: %v", err)
		return nil, err
	}

	for i, it := range items {
		if !it.done {
			continue
		}
		slug := entries[i].Slug
		res.Errors = append(res.Errors, it.warnings...)
		if it.err != nil {
			res.Errors = append(res.Errors, entryError(slug, it.err))
			continue
		}
		switch it.outcome {
		case outcomeCreated:
			res.Created++
		case outcomeUpdated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}

	if ctx.Err() != nil {
		res.Cancelled = true
		e.config.Logger.Printf("Full sync cancelled: created=%d updated=%d unchanged=%d errors=%d",
			res.Created, res.Updated, res.Unchanged, len(res.Errors))
	} else {
		e.config.Logger.Printf("Full sync complete: created=%d updated=%d unchanged=%d errors=%d",
			res.Created, res.Updated, res.Unchanged, len(res.Errors))
	}

	if e.config.Notifier != nil {
		e.config.Notifier.SyncCompleted(res)
	}
	return res, nil
}

// SyncOne re-reads the entry for slug and creates or updates its article.
// It returns false when the entry does not exist, fails to parse, or the
// write fails.
func (e *Engine) SyncOne(ctx context.Context, slug string) bool {
	unlock := e.locks.Lock(slug)
	defer unlock()

	entry, err := e.reader.Read(ctx, slug)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			e.config.Logger.Printf("Entry not found: %s", slug)
		} else {
			e.config.Logger.Printf("Warning: failed to read entry %s: %v", slug, err)
		}
		return false
	}

	_, warnings, err := e.syncEntryLocked(ctx, entry)
	for _, w := range warnings {
		e.config.Logger.Printf("Warning: %s", w)
	}
	if err != nil {
		e.config.Logger.Printf("Warning: failed to sync %s: %v", slug, err)
		return false
	}
	return true
}

// RemoveBySlug deletes the article for slug with its author and tag
// links. It returns false when no article matched or the delete failed.
func (e *Engine) RemoveBySlug(ctx context.Context, slug string) bool {
	unlock := e.locks.Lock(slug)
	defer unlock()

	ok, err := e.db.DeleteArticleBySlug(ctx, slug)
	if err != nil {
		e.config.Logger.Printf("Warning: failed to remove %s: %v", slug, err)
		return false
	}
	if !ok {
		e.config.Logger.Printf("Nothing to remove for %s", slug)
		return false
	}

	e.config.Logger.Printf("Removed article: %s", slug)
	if e.config.Notifier != nil {
		e.config.Notifier.ArticleChanged(slug, ChangeRemoved)
	}
	return true
}

// ImportInitialData imports categories and authors, then runs a full
// sync. It is the importer the migration runner calls after a schema
// change.
func (e *Engine) ImportInitialData(ctx context.Context) error {
	tax, err := e.ImportTaxonomy(ctx)
	if err != nil {
		return fmt.Errorf("failed to import taxonomy: %w", err)
	}
	res, err := e.SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to sync articles: %w", err)
	}
	if n := len(tax.Errors) + len(res.Errors); n > 0 {
		e.config.Logger.Printf("Initial import finished with %d problem(s)", n)
	}
	return nil
}

// syncEntry re-reads slug under its lock and writes it. The listing
// SyncAll works from may be stale by the time the lock is held.
func (e *Engine) syncEntry(ctx context.Context, slug string) (outcome, []string, error) {
	unlock := e.locks.Lock(slug)
	defer unlock()

	entry, err := e.reader.Read(ctx, slug)
	if err != nil {
		return outcomeUnchanged, nil, err
	}
	return e.syncEntryLocked(ctx, entry)
}

// entryError formats a per-entry failure for Result.Errors.
func entryError(slug string, err error) string {
	if db.IsConstraint(err) {
		return fmt.Sprintf("%s: constraint violation: %v", slug, err)
	}
	return fmt.Sprintf("%s: %v", slug, err)
}

// syncEntryLocked writes one entry inside a single transaction. The
// caller holds the slug lock.
func (e *Engine) syncEntryLocked(ctx context.Context, entry *content.Entry) (outcome, []string, error) {
	var (
		out      outcome
		warnings []string
	)

	err := e.db.WithTx(ctx, func(q *db.Queries) error {
		out, warnings = outcomeUnchanged, nil

		categoryID, authorIDs, tagIDs, w, err := resolveRelations(ctx, q, entry)
		if err != nil {
			return err
		}
		warnings = w

		want := articleFromEntry(entry, categoryID)

		have, err := q.FindArticleBySlug(ctx, entry.Slug)
		if errors.Is(err, db.ErrNotFound) {
			if err := q.CreateArticle(ctx, want); err != nil {
				return err
			}
			if err := q.ReplaceArticleAuthors(ctx, want.ID, authorIDs); err != nil {
				return err
			}
			if err := q.ReplaceArticleTags(ctx, want.ID, tagIDs); err != nil {
				return err
			}
			out = outcomeCreated
			return nil
		}
		if err != nil {
			return err
		}

		changed := false

		if u := diffArticle(have, want); !u.IsEmpty() {
			if _, err := q.UpdateArticleBySlug(ctx, entry.Slug, u); err != nil {
				return err
			}
			changed = true
		}

		currentAuthors, err := q.ArticleAuthorIDs(ctx, have.ID)
		if err != nil {
			return err
		}
		if !sameSet(currentAuthors, authorIDs) {
			if err := q.ReplaceArticleAuthors(ctx, have.ID, authorIDs); err != nil {
				return err
			}
			changed = true
		}

		currentTags, err := q.ArticleTagIDs(ctx, have.ID)
		if err != nil {
			return err
		}
		if !sameSet(currentTags, tagIDs) {
			if err := q.ReplaceArticleTags(ctx, have.ID, tagIDs); err != nil {
				return err
			}
			changed = true
		}

		if changed {
			out = outcomeUpdated
		}
		return nil
	})
	if err != nil {
		return outcomeUnchanged, nil, err
	}

	switch out {
	case outcomeCreated:
		e.config.Logger.Printf("Created article: %s (%s)", entry.Slug, entry.Title)
		e.notify(entry.Slug, ChangeCreated)
	case outcomeUpdated:
		e.config.Logger.Printf("Updated article: %s", entry.Slug)
		e.notify(entry.Slug, ChangeUpdated)
	}
	return out, warnings, nil
}

func (e *Engine) notify(slug string, change Change) {
	if e.config.Notifier != nil {
		e.config.Notifier.ArticleChanged(slug, change)
	}
}

// resolveRelations maps the entry's category, author and tag references
// to ids. Missing categories and authors become warnings; tags are
// created on demand.
func resolveRelations(ctx context.Context, q *db.Queries, entry *content.Entry) (sql.NullString, []string, []string, []string, error) {
	var (
		categoryID sql.NullString
		authorIDs  []string
		tagIDs     []string
		warnings   []string
	)

	if entry.Category != "" {
		cat, err := q.FindCategoryBySlug(ctx, entry.Category)
		switch {
		case errors.Is(err, db.ErrNotFound):
			warnings = append(warnings, fmt.Sprintf("%s: category %q not found", entry.Slug, entry.Category))
		case err != nil:
			return categoryID, nil, nil, nil, err
		default:
			categoryID = sql.NullString{String: cat.ID, Valid: true}
		}
	}

	for _, slug := range entry.Authors {
		au, err := q.FindAuthorBySlug(ctx, slug)
		switch {
		case errors.Is(err, db.ErrNotFound):
			warnings = append(warnings, fmt.Sprintf("%s: author %q not found", entry.Slug, slug))
		case err != nil:
			return categoryID, nil, nil, nil, err
		default:
			authorIDs = append(authorIDs, au.ID)
		}
	}

	seen := make(map[string]bool, len(entry.Tags))
	for _, name := range entry.Tags {
		slug := content.Slugify(name)
		if slug == "" {
			warnings = append(warnings, fmt.Sprintf("%s: tag %q has no usable slug", entry.Slug, name))
			continue
		}
		tag, err := q.EnsureTag(ctx, slug, name)
		if err != nil {
			return categoryID, nil, nil, nil, err
		}
		if !seen[tag.ID] {
			seen[tag.ID] = true
			tagIDs = append(tagIDs, tag.ID)
		}
	}

	return categoryID, authorIDs, tagIDs, warnings, nil
}
