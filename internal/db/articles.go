package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const articleColumns = `id, slug, title, description, cover, category_id, published_time,
	is_draft, is_main_headline, is_sub_headline, is_category_main_headline, is_category_sub_headline,
	content, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(s rowScanner) (*Article, error) {
	var a Article
	var published, created, updated string
	var draft, main, sub, catMain, catSub int
	err := s.Scan(
		&a.ID, &a.Slug, &a.Title, &a.Description, &a.Cover, &a.CategoryID, &published,
		&draft, &main, &sub, &catMain, &catSub,
		&a.Content, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	a.PublishedTime = parseTime(published)
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	a.IsDraft = draft != 0
	a.IsMainHeadline = main != 0
	a.IsSubHeadline = sub != 0
	a.IsCategoryMainHeadline = catMain != 0
	a.IsCategorySubHeadline = catSub != 0
	return &a, nil
}

// CreateArticle inserts a. ID, CreatedAt and UpdatedAt are assigned when
// empty. A duplicate slug fails with a constraint error (see IsConstraint).
func (q *Queries) CreateArticle(ctx context.Context, a *Article) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Second)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = now
	}

	query := `INSERT INTO articles (` + articleColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.q.ExecContext(ctx, query,
		a.ID, a.Slug, a.Title, a.Description, a.Cover, a.CategoryID, formatTime(a.PublishedTime),
		boolToInt(a.IsDraft), boolToInt(a.IsMainHeadline), boolToInt(a.IsSubHeadline),
		boolToInt(a.IsCategoryMainHeadline), boolToInt(a.IsCategorySubHeadline),
		a.Content, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create article %s: %w", a.Slug, err)
	}
	return nil
}

// FindArticleBySlug returns the article with the given slug, or
// ErrNotFound.
func (q *Queries) FindArticleBySlug(ctx context.Context, slug string) (*Article, error) {
	row := q.q.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE slug = ?`, slug)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("article %s: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article %s: %w", slug, err)
	}
	return a, nil
}

// FindAllArticles returns every article, newest first.
func (q *Queries) FindAllArticles(ctx context.Context) ([]*Article, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY published_time DESC, slug`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var articles []*Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}
	return articles, nil
}

// FindAllArticlesWithRelations returns every article with its category,
// authors and tags resolved, newest first.
func (q *Queries) FindAllArticlesWithRelations(ctx context.Context) ([]*ArticleWithRelations, error) {
	rows, err := q.q.QueryContext(ctx, `
	SELECT a.id, a.slug, a.title, a.description, a.cover, a.category_id, a.published_time,
		a.is_draft, a.is_main_headline, a.is_sub_headline, a.is_category_main_headline, a.is_category_sub_headline,
		a.content, a.created_at, a.updated_at,
		c.id, c.slug, c.title, c.description
	FROM articles a
	LEFT JOIN categories c ON c.id = a.category_id
	ORDER BY a.published_time DESC, a.slug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var result []*ArticleWithRelations
	byID := make(map[string]*ArticleWithRelations)
	for rows.Next() {
		var a Article
		var published, created, updated string
		var draft, main, sub, catMain, catSub int
		var cID, cSlug, cTitle, cDesc sql.NullString
		err := rows.Scan(
			&a.ID, &a.Slug, &a.Title, &a.Description, &a.Cover, &a.CategoryID, &published,
			&draft, &main, &sub, &catMain, &catSub,
			&a.Content, &created, &updated,
			&cID, &cSlug, &cTitle, &cDesc,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.PublishedTime = parseTime(published)
		a.CreatedAt = parseTime(created)
		a.UpdatedAt = parseTime(updated)
		a.IsDraft = draft != 0
		a.IsMainHeadline = main != 0
		a.IsSubHeadline = sub != 0
		a.IsCategoryMainHeadline = catMain != 0
		a.IsCategorySubHeadline = catSub != 0

		awr := &ArticleWithRelations{Article: a, Authors: []*Author{}, Tags: []*Tag{}}
		if cID.Valid {
			awr.Category = &Category{ID: cID.String, Slug: cSlug.String, Title: cTitle.String, Description: cDesc.String}
		}
		result = append(result, awr)
		byID[a.ID] = awr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}
	rows.Close()

	if len(result) == 0 {
		return result, nil
	}

	authorRows, err := q.q.QueryContext(ctx, `
	SELECT aa.article_id, au.id, au.slug, au.name, au.role, au.avatar, au.bio
	FROM article_authors aa
	JOIN authors au ON au.id = aa.author_id
	ORDER BY aa.article_id, aa.position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load article authors: %w", err)
	}
	defer authorRows.Close()
	for authorRows.Next() {
		var articleID string
		var au Author
		if err := authorRows.Scan(&articleID, &au.ID, &au.Slug, &au.Name, &au.Role, &au.Avatar, &au.Bio); err != nil {
			return nil, fmt.Errorf("failed to scan article author: %w", err)
		}
		if awr, ok := byID[articleID]; ok {
			awr.Authors = append(awr.Authors, &au)
		}
	}
	if err := authorRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article authors: %w", err)
	}
	authorRows.Close()

	tagRows, err := q.q.QueryContext(ctx, `
	SELECT at.article_id, t.id, t.slug, t.name
	FROM article_tags at
	JOIN tags t ON t.id = at.tag_id
	ORDER BY at.article_id, t.slug
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load article tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var articleID string
		var t Tag
		if err := tagRows.Scan(&articleID, &t.ID, &t.Slug, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan article tag: %w", err)
		}
		if awr, ok := byID[articleID]; ok {
			awr.Tags = append(awr.Tags, &t)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article tags: %w", err)
	}

	return result, nil
}

// UpdateArticleBySlug applies u to the article with the given slug and
// bumps updated_at. It reports whether a row matched. An empty update is
// a no-op that still reports whether the article exists.
func (q *Queries) UpdateArticleBySlug(ctx context.Context, slug string, u ArticleUpdate) (bool, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Cover != nil {
		add("cover", *u.Cover)
	}
	if u.CategoryID != nil {
		add("category_id", *u.CategoryID)
	}
	if u.PublishedTime != nil {
		add("published_time", formatTime(*u.PublishedTime))
	}
	if u.IsDraft != nil {
		add("is_draft", boolToInt(*u.IsDraft))
	}
	if u.IsMainHeadline != nil {
		add("is_main_headline", boolToInt(*u.IsMainHeadline))
	}
	if u.IsSubHeadline != nil {
		add("is_sub_headline", boolToInt(*u.IsSubHeadline))
	}
	if u.IsCategoryMainHeadline != nil {
		add("is_category_main_headline", boolToInt(*u.IsCategoryMainHeadline))
	}
	if u.IsCategorySubHeadline != nil {
		add("is_category_sub_headline", boolToInt(*u.IsCategorySubHeadline))
	}
	if u.Content != nil {
		add("content", *u.Content)
	}

	if len(sets) == 0 {
		var n int
		err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles WHERE slug = ?`, slug).Scan(&n)
		if err != nil {
			return false, fmt.Errorf("failed to check article %s: %w", slug, err)
		}
		return n > 0, nil
	}

	add("updated_at", formatTime(time.Now()))
	args = append(args, slug)

	query := `UPDATE articles SET ` + strings.Join(sets, ", ") + ` WHERE slug = ?`
	res, err := q.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update article %s: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update article %s: %w", slug, err)
	}
	return n > 0, nil
}

// DeleteArticleBySlug removes the article and its join rows. It reports
// whether a row was deleted.
func (q *Queries) DeleteArticleBySlug(ctx context.Context, slug string) (bool, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM articles WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to delete article %s: %w", slug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete article %s: %w", slug, err)
	}
	return n > 0, nil
}

// ArticleAuthorIDs returns the author ids of an article in display order.
func (q *Queries) ArticleAuthorIDs(ctx context.Context, articleID string) ([]string, error) {
	return q.ids(ctx, `SELECT author_id FROM article_authors WHERE article_id = ? ORDER BY position`, articleID)
}

// ArticleTagIDs returns the tag ids of an article.
func (q *Queries) ArticleTagIDs(ctx context.Context, articleID string) ([]string, error) {
	return q.ids(ctx, `SELECT tag_id FROM article_tags WHERE article_id = ? ORDER BY tag_id`, articleID)
}

func (q *Queries) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return ids, nil
}

// ReplaceArticleAuthors sets the authors of an article. The slice order
// is stored as the display position.
func (q *Queries) ReplaceArticleAuthors(ctx context.Context, articleID string, authorIDs []string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM article_authors WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("failed to clear article authors: %w", err)
	}
	for i, id := range authorIDs {
		_, err := q.q.ExecContext(ctx,
			`INSERT INTO article_authors (article_id, author_id, position) VALUES (?, ?, ?)`,
			articleID, id, i)
		if err != nil {
			return fmt.Errorf("failed to link author %s: %w", id, err)
		}
	}
	return nil
}

// ReplaceArticleTags sets the tags of an article.
func (q *Queries) ReplaceArticleTags(ctx context.Context, articleID string, tagIDs []string) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM article_tags WHERE article_id = ?`, articleID); err != nil {
		return fmt.Errorf("failed to clear article tags: %w", err)
	}
	for _, id := range tagIDs {
		_, err := q.q.ExecContext(ctx,
			`INSERT INTO article_tags (article_id, tag_id) VALUES (?, ?)`,
			articleID, id)
		if err != nil {
			return fmt.Errorf("failed to link tag %s: %w", id, err)
		}
	}
	return nil
}

// CountArticles returns the number of articles.
func (q *Queries) CountArticles(ctx context.Context) (int, error) {
	return q.count(ctx, "articles")
}

// count returns the row count of a table. table is never user input.
func (q *Queries) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
