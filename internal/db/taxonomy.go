package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CreateCategory inserts c, assigning an id when empty.
func (q *Queries) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO categories (id, slug, title, description) VALUES (?, ?, ?, ?)`,
		c.ID, c.Slug, c.Title, c.Description)
	if err != nil {
		return fmt.Errorf("failed to create category %s: %w", c.Slug, err)
	}
	return nil
}

// FindCategoryBySlug returns the category with the given slug, or
// ErrNotFound.
func (q *Queries) FindCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	var c Category
	err := q.q.QueryRowContext(ctx,
		`SELECT id, slug, title, description FROM categories WHERE slug = ?`, slug,
	).Scan(&c.ID, &c.Slug, &c.Title, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category %s: %w", slug, err)
	}
	return &c, nil
}

// FindAllCategories returns every category ordered by slug.
func (q *Queries) FindAllCategories(ctx context.Context) ([]*Category, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, slug, title, description FROM categories ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var cats []*Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

// UpdateCategoryBySlug applies u and reports whether a row matched.
func (q *Queries) UpdateCategoryBySlug(ctx context.Context, slug string, u CategoryUpdate) (bool, error) {
	var sets []string
	var args []any
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	return q.updateBySlug(ctx, "categories", slug, sets, args)
}

// DeleteCategoryBySlug removes the category. Articles referencing it keep
// existing with a null category.
func (q *Queries) DeleteCategoryBySlug(ctx context.Context, slug string) (bool, error) {
	return q.deleteBySlug(ctx, "categories", slug)
}

// CountCategories returns the number of categories.
func (q *Queries) CountCategories(ctx context.Context) (int, error) {
	return q.count(ctx, "categories")
}

// CreateAuthor inserts a, assigning an id when empty.
func (q *Queries) CreateAuthor(ctx context.Context, a *Author) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO authors (id, slug, name, role, avatar, bio) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Slug, a.Name, a.Role, a.Avatar, a.Bio)
	if err != nil {
		return fmt.Errorf("failed to create author %s: %w", a.Slug, err)
	}
	return nil
}

// FindAuthorBySlug returns the author with the given slug, or ErrNotFound.
func (q *Queries) FindAuthorBySlug(ctx context.Context, slug string) (*Author, error) {
	var a Author
	err := q.q.QueryRowContext(ctx,
		`SELECT id, slug, name, role, avatar, bio FROM authors WHERE slug = ?`, slug,
	).Scan(&a.ID, &a.Slug, &a.Name, &a.Role, &a.Avatar, &a.Bio)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("author %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find author %s: %w", slug, err)
	}
	return &a, nil
}

// FindAllAuthors returns every author ordered by slug.
func (q *Queries) FindAllAuthors(ctx context.Context) ([]*Author, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT id, slug, name, role, avatar, bio FROM authors ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list authors: %w", err)
	}
	defer rows.Close()

	var authors []*Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Slug, &a.Name, &a.Role, &a.Avatar, &a.Bio); err != nil {
			return nil, fmt.Errorf("failed to scan author: %w", err)
		}
		authors = append(authors, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating authors: %w", err)
	}
	return authors, nil
}

// UpdateAuthorBySlug applies u and reports whether a row matched.
func (q *Queries) UpdateAuthorBySlug(ctx context.Context, slug string, u AuthorUpdate) (bool, error) {
	var sets []string
	var args []any
	for _, f := range []struct {
		col string
		v   *string
	}{
		{"name", u.Name},
		{"role", u.Role},
		{"avatar", u.Avatar},
		{"bio", u.Bio},
	} {
		if f.v != nil {
			sets = append(sets, f.col+" = ?")
			args = append(args, *f.v)
		}
	}
	return q.updateBySlug(ctx, "authors", slug, sets, args)
}

// DeleteAuthorBySlug removes the author, its socials and its article
// links. Articles are kept.
func (q *Queries) DeleteAuthorBySlug(ctx context.Context, slug string) (bool, error) {
	return q.deleteBySlug(ctx, "authors", slug)
}

// CountAuthors returns the number of authors.
func (q *Queries) CountAuthors(ctx context.Context) (int, error) {
	return q.count(ctx, "authors")
}

// AuthorSocials returns the social links of an author ordered by platform.
func (q *Queries) AuthorSocials(ctx context.Context, authorID string) ([]AuthorSocial, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT platform, url FROM author_socials WHERE author_id = ? ORDER BY platform`, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list author socials: %w", err)
	}
	defer rows.Close()

	var socials []AuthorSocial
	for rows.Next() {
		var s AuthorSocial
		if err := rows.Scan(&s.Platform, &s.URL); err != nil {
			return nil, fmt.Errorf("failed to scan author social: %w", err)
		}
		socials = append(socials, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating author socials: %w", err)
	}
	return socials, nil
}

// ReplaceAuthorSocials sets the social links of an author.
func (q *Queries) ReplaceAuthorSocials(ctx context.Context, authorID string, socials []AuthorSocial) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM author_socials WHERE author_id = ?`, authorID); err != nil {
		return fmt.Errorf("failed to clear author socials: %w", err)
	}
	for _, s := range socials {
		_, err := q.q.ExecContext(ctx,
			`INSERT INTO author_socials (author_id, platform, url) VALUES (?, ?, ?)`,
			authorID, s.Platform, s.URL)
		if err != nil {
			return fmt.Errorf("failed to add %s social: %w", s.Platform, err)
		}
	}
	return nil
}

// updateBySlug runs a partial update on a slug-keyed table. table is
// never user input.
func (q *Queries) updateBySlug(ctx context.Context, table, slug string, sets []string, args []any) (bool, error) {
	if len(sets) == 0 {
		var n int
		err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE slug = ?", slug).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to check %s %s: %w", table, slug, err)
		}
		return n > 0, nil
	}

	args = append(args, slug)
	res, err := q.q.ExecContext(ctx, "UPDATE "+table+" SET "+strings.Join(sets, ", ")+" WHERE slug = ?", args...)
	if err != nil {
		return false, fmt.Errorf("failed to update %s %s: %w", table, slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update %s %s: %w", table, slug, err)
	}
	return n > 0, nil
}

func (q *Queries) deleteBySlug(ctx context.Context, table, slug string) (bool, error) {
	res, err := q.q.ExecContext(ctx, "DELETE FROM "+table+" WHERE slug = ?", slug)
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", table, slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete %s %s: %w", table, slug, err)
	}
	return n > 0, nil
}
