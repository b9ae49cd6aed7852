package db

import (
	"database/sql"
	"time"
)

// Article is a persisted article row.
type Article struct {
	ID                     string         `json:"id"`
	Slug                   string         `json:"slug"`
	Title                  string         `json:"title"`
	Description            string         `json:"description"`
	Cover                  string         `json:"cover,omitempty"`
	CategoryID             sql.NullString `json:"-"`
	PublishedTime          time.Time      `json:"published_time"`
	IsDraft                bool           `json:"is_draft"`
	IsMainHeadline         bool           `json:"is_main_headline"`
	IsSubHeadline          bool           `json:"is_sub_headline"`
	IsCategoryMainHeadline bool           `json:"is_category_main_headline"`
	IsCategorySubHeadline  bool           `json:"is_category_sub_headline"`
	Content                string         `json:"content"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

// ArticleUpdate is a partial update. Nil fields are left unchanged.
// CategoryID uses an invalid NullString to clear the reference.
type ArticleUpdate struct {
	Title                  *string
	Description            *string
	Cover                  *string
	CategoryID             *sql.NullString
	PublishedTime          *time.Time
	IsDraft                *bool
	IsMainHeadline         *bool
	IsSubHeadline          *bool
	IsCategoryMainHeadline *bool
	IsCategorySubHeadline  *bool
	Content                *string
}

// IsEmpty reports whether the update changes nothing.
func (u ArticleUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Fields returns the names of the fields set in u, in column order.
func (u ArticleUpdate) Fields() []string {
	var f []string
	if u.Title != nil {
		f = append(f, "title")
	}
	if u.Description != nil {
		f = append(f, "description")
	}
	if u.Cover != nil {
		f = append(f, "cover")
	}
	if u.CategoryID != nil {
		f = append(f, "category_id")
	}
	if u.PublishedTime != nil {
		f = append(f, "published_time")
	}
	if u.IsDraft != nil {
		f = append(f, "is_draft")
	}
	if u.IsMainHeadline != nil {
		f = append(f, "is_main_headline")
	}
	if u.IsSubHeadline != nil {
		f = append(f, "is_sub_headline")
	}
	if u.IsCategoryMainHeadline != nil {
		f = append(f, "is_category_main_headline")
	}
	if u.IsCategorySubHeadline != nil {
		f = append(f, "is_category_sub_headline")
	}
	if u.Content != nil {
		f = append(f, "content")
	}
	return f
}

// ArticleWithRelations is an article with its category, authors (in
// display order) and tags resolved.
type ArticleWithRelations struct {
	Article
	Category *Category `json:"category,omitempty"`
	Authors  []*Author `json:"authors"`
	Tags     []*Tag    `json:"tags"`
}

// Category is a persisted category row.
type Category struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CategoryUpdate is a partial category update.
type CategoryUpdate struct {
	Title       *string
	Description *string
}

// IsEmpty reports whether the update changes nothing.
func (u CategoryUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil
}

// Author is a persisted author row.
type Author struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
	Bio    string `json:"bio,omitempty"`
}

// AuthorUpdate is a partial author update.
type AuthorUpdate struct {
	Name   *string
	Role   *string
	Avatar *string
	Bio    *string
}

// IsEmpty reports whether the update changes nothing.
func (u AuthorUpdate) IsEmpty() bool {
	return u.Name == nil && u.Role == nil && u.Avatar == nil && u.Bio == nil
}

// AuthorSocial is one social link of an author.
type AuthorSocial struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Tag is a persisted tag row.
type Tag struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// SchemaVersion is one row of the schema version history.
type SchemaVersion struct {
	Version    int64     `json:"version"`
	AppliedAt  time.Time `json:"applied_at"`
	ConfigHash string    `json:"config_hash"`
}
