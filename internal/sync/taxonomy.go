package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mschirtzinger/inkpot/internal/content"
	"github.com/mschirtzinger/inkpot/internal/db"
)

// ImportTaxonomy creates or updates categories and authors from their
// content collections, with the same diff policy as articles. Records that
// fail to parse are reported in Result.Errors. Taxonomy rows missing from
// the content tree are left in place.
func (e *Engine) ImportTaxonomy(ctx context.Context) (*Result, error) {
	res := &Result{Errors: []string{}}
	if e.config.Taxonomy == nil {
		return res, nil
	}

	cats, err := e.config.Taxonomy.ReadCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	for _, rec := range cats {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		if rec.Err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("category %s: %v", rec.Slug, rec.Err))
			continue
		}
		out, err := e.importCategory(ctx, rec.Value)
		if db.IsUnavailable(err) {
			return nil, fmt.Errorf("datastore unavailable while importing category %s: %w", rec.Slug, err)
		}
		res.tally(fmt.Sprintf("category %s", rec.Slug), out, err)
	}

	authors, err := e.config.Taxonomy.ReadAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read authors: %w", err)
	}
	for _, rec := range authors {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		if rec.Err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("author %s: %v", rec.Slug, rec.Err))
			continue
		}
		out, err := e.importAuthor(ctx, rec.Value)
		if db.IsUnavailable(err) {
			return nil, fmt.Errorf("datastore unavailable while importing author %s: %w", rec.Slug, err)
		}
		res.tally(fmt.Sprintf("author %s", rec.Slug), out, err)
	}

	e.config.Logger.Printf("Taxonomy import complete: created=%d updated=%d unchanged=%d errors=%d",
		res.Created, res.Updated, res.Unchanged, len(res.Errors))
	return res, nil
}

func (r *Result) tally(label string, out outcome, err error) {
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", label, err))
		return
	}
	switch out {
	case outcomeCreated:
		r.Created++
	case outcomeUpdated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

func (e *Engine) importCategory(ctx context.Context, c *content.Category) (outcome, error) {
	out := outcomeUnchanged
	err := e.db.WithTx(ctx, func(q *db.Queries) error {
		have, err := q.FindCategoryBySlug(ctx, c.Slug)
		if errors.Is(err, db.ErrNotFound) {
			out = outcomeCreated
			return q.CreateCategory(ctx, &db.Category{Slug: c.Slug, Title: c.Title, Description: c.Description})
		}
		if err != nil {
			return err
		}
		if u := diffCategory(have, c); !u.IsEmpty() {
			out = outcomeUpdated
			_, err := q.UpdateCategoryBySlug(ctx, c.Slug, u)
			return err
		}
		return nil
	})
	return out, err
}

func (e *Engine) importAuthor(ctx context.Context, a *content.Author) (outcome, error) {
	out := outcomeUnchanged
	want := make([]db.AuthorSocial, 0, len(a.Socials))
	for _, s := range a.Socials {
		want = append(want, db.AuthorSocial{Platform: s.Platform, URL: s.URL})
	}
	slices.SortFunc(want, func(x, y db.AuthorSocial) int {
		if x.Platform < y.Platform {
			return -1
		}
		if x.Platform > y.Platform {
			return 1
		}
		return 0
	})

	err := e.db.WithTx(ctx, func(q *db.Queries) error {
		have, err := q.FindAuthorBySlug(ctx, a.Slug)
		if errors.Is(err, db.ErrNotFound) {
			out = outcomeCreated
			row := &db.Author{Slug: a.Slug, Name: a.Name, Role: a.Role, Avatar: a.Avatar, Bio: a.Bio}
			if err := q.CreateAuthor(ctx, row); err != nil {
				return err
			}
			return q.ReplaceAuthorSocials(ctx, row.ID, want)
		}
		if err != nil {
			return err
		}

		out = outcomeUnchanged
		if u := diffAuthor(have, a); !u.IsEmpty() {
			if _, err := q.UpdateAuthorBySlug(ctx, a.Slug, u); err != nil {
				return err
			}
			out = outcomeUpdated
		}

		current, err := q.AuthorSocials(ctx, have.ID)
		if err != nil {
			return err
		}
		if !slices.Equal(current, want) {
			if err := q.ReplaceAuthorSocials(ctx, have.ID, want); err != nil {
				return err
			}
			out = outcomeUpdated
		}
		return nil
	})
	return out, err
}
