// Package content reads file-authored articles, categories and authors from
// a content directory tree.
package content

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entry does not exist on disk.
	ErrNotFound = errors.New("content entry not found")

	// ErrValidation is returned when an entry's front matter is malformed
	// or missing a required field.
	ErrValidation = errors.New("invalid content entry")
)

// Entry is the in-memory projection of one article directory.
// It is derived from articles/<slug>/index.md and is safe to discard.
type Entry struct {
	Slug        string
	Title       string
	Description string
	Cover       string

	// Category is the slug of the referenced category (empty = none).
	Category string

	IsDraft                bool
	IsMainHeadline         bool
	IsSubHeadline          bool
	IsCategoryMainHeadline bool
	IsCategorySubHeadline  bool

	// Authors holds author slugs in display order.
	Authors []string
	// Tags holds human-readable tag names; slugs are derived with Slugify.
	Tags []string

	PublishedTime time.Time

	// Body is the markdown following the front matter.
	Body string
}

// Validate checks that all required fields are present.
func (e *Entry) Validate() error {
	if !ValidSlug(e.Slug) {
		return fmt.Errorf("%w: invalid slug %q", ErrValidation, e.Slug)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(e.Title) > 500 {
		return fmt.Errorf("%w: title must be 500 characters or less (got %d)", ErrValidation, len(e.Title))
	}
	if e.Description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	if e.PublishedTime.IsZero() {
		return fmt.Errorf("%w: publishedTime is required", ErrValidation)
	}
	return nil
}

// Category is a category definition from categories/<slug>.yaml.
type Category struct {
	Slug        string `yaml:"-" toml:"-"`
	Title       string `yaml:"title" toml:"title"`
	Description string `yaml:"description" toml:"description"`
}

// Validate checks that the category has a title.
func (c *Category) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}

// Social is one profile link of an author.
type Social struct {
	Platform string `yaml:"platform" toml:"platform"`
	URL      string `yaml:"url" toml:"url"`
}

// Author is an author definition from authors/<slug>.yaml.
type Author struct {
	Slug    string   `yaml:"-" toml:"-"`
	Name    string   `yaml:"name" toml:"name"`
	Role    string   `yaml:"role" toml:"role"`
	Avatar  string   `yaml:"avatar" toml:"avatar"`
	Bio     string   `yaml:"bio" toml:"bio"`
	Socials []Social `yaml:"socials" toml:"socials"`
}

// Validate checks that the author has a name and well-formed socials.
func (a *Author) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	seen := make(map[string]bool, len(a.Socials))
	for _, s := range a.Socials {
		if s.Platform == "" || s.URL == "" {
			return fmt.Errorf("%w: socials need both platform and url", ErrValidation)
		}
		if seen[s.Platform] {
			return fmt.Errorf("%w: duplicate social platform %q", ErrValidation, s.Platform)
		}
		seen[s.Platform] = true
	}
	return nil
}
