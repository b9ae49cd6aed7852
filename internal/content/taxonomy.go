package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Record is one parsed file of a taxonomy collection. Exactly one of Value
// and Err is set.
type Record[T any] struct {
	Slug  string
	Value *T
	Err   error
}

// ReadCategories implements TaxonomyReader.
func (r *DirReader) ReadCategories(ctx context.Context) ([]Record[Category], error) {
	return readCollection(ctx, filepath.Join(r.root, CategoriesDir), func(slug string, c *Category) error {
		c.Slug = slug
		c.Title = strings.TrimSpace(c.Title)
		c.Description = strings.TrimSpace(c.Description)
		return c.Validate()
	})
}

// ReadAuthors implements TaxonomyReader.
func (r *DirReader) ReadAuthors(ctx context.Context) ([]Record[Author], error) {
	return readCollection(ctx, filepath.Join(r.root, AuthorsDir), func(slug string, a *Author) error {
		a.Slug = slug
		a.Name = strings.TrimSpace(a.Name)
		return a.Validate()
	})
}

// readCollection decodes every <slug>.yaml|.yml|.toml file in dir.
// A missing directory yields an empty collection.
func readCollection[T any](ctx context.Context, dir string, finish func(slug string, v *T) error) ([]Record[T], error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record[T]{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var records []Record[T]
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if f.IsDir() {
			continue
		}

		ext := filepath.Ext(f.Name())
		delim := yamlDelimiter
		switch ext {
		case ".yaml", ".yml":
		case ".toml":
			delim = tomlDelimiter
		default:
			continue
		}

		slug := strings.TrimSuffix(f.Name(), ext)
		if !ValidSlug(slug) {
			continue
		}

		path := filepath.Join(dir, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			records = append(records, Record[T]{Slug: slug, Err: fmt.Errorf("failed to read %s: %w", path, err)})
			continue
		}

		v := new(T)
		if err := decodeHeader(delim, data, v); err != nil {
			records = append(records, Record[T]{Slug: slug, Err: err})
			continue
		}
		if err := finish(slug, v); err != nil {
			records = append(records, Record[T]{Slug: slug, Err: err})
			continue
		}
		records = append(records, Record[T]{Slug: slug, Value: v})
	}

	return records, nil
}
