package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// EnsureTag returns the tag with the given slug, creating it with name if
// it does not exist yet. An existing tag keeps its original name.
func (q *Queries) EnsureTag(ctx context.Context, slug, name string) (*Tag, error) {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO tags (id, slug, name) VALUES (?, ?, ?) ON CONFLICT(slug) DO NOTHING`,
		uuid.NewString(), slug, name)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure tag %s: %w", slug, err)
	}
	return q.FindTagBySlug(ctx, slug)
}

// FindTagBySlug returns the tag with the given slug, or ErrNotFound.
func (q *Queries) FindTagBySlug(ctx context.Context, slug string) (*Tag, error) {
	var t Tag
	err := q.q.QueryRowContext(ctx, `SELECT id, slug, name FROM tags WHERE slug = ?`, slug).
		Scan(&t.ID, &t.Slug, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tag %s: %w", slug, err)
	}
	return &t, nil
}

// FindAllTags returns every tag ordered by slug.
func (q *Queries) FindAllTags(ctx context.Context) ([]*Tag, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, slug, name FROM tags ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	var tags []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// DeleteTagBySlug removes the tag and its article links.
func (q *Queries) DeleteTagBySlug(ctx context.Context, slug string) (bool, error) {
	return q.deleteBySlug(ctx, "tags", slug)
}

// CountTags returns the number of tags.
func (q *Queries) CountTags(ctx context.Context) (int, error) {
	return q.count(ctx, "tags")
}
