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

// Directory names under the content root.
const (
	ArticlesDir   = "articles"
	CategoriesDir = "categories"
	AuthorsDir    = "authors"
)

// IndexFiles are the accepted entry file names inside an article directory,
// in lookup order.
var IndexFiles = []string{"index.md", "index.mdx"}

// Result is one item of a ReadAll enumeration. Exactly one of Entry and Err
// is set; Slug is always populated so failures can be attributed.
type Result struct {
	Slug  string
	Entry *Entry
	Err   error
}

// Reader is the capability the sync engine depends on. The markup and
// parsing technology behind it is replaceable.
type Reader interface {
	// Read parses the entry for slug. Returns ErrNotFound if the entry
	// does not exist.
	Read(ctx context.Context, slug string) (*Entry, error)

	// ReadAll enumerates every entry in discovery order. A parse failure
	// on one entry is reported in its Result and does not stop the
	// enumeration; an error is returned only if the tree is unreadable.
	ReadAll(ctx context.Context) ([]Result, error)
}

// TaxonomyReader reads the category and author collections.
type TaxonomyReader interface {
	ReadCategories(ctx context.Context) ([]Record[Category], error)
	ReadAuthors(ctx context.Context) ([]Record[Author], error)
}

// DirReader reads content from a directory tree on the local filesystem:
//
//	<root>/articles/<slug>/index.md
//	<root>/categories/<slug>.yaml
//	<root>/authors/<slug>.yaml
type DirReader struct {
	root string
}

// NewDirReader returns a reader rooted at root.
func NewDirReader(root string) *DirReader {
	return &DirReader{root: root}
}

// Root returns the content root directory.
func (r *DirReader) Root() string {
	return r.root
}

// ArticlesPath returns the directory holding one subdirectory per article.
func (r *DirReader) ArticlesPath() string {
	return filepath.Join(r.root, ArticlesDir)
}

// Read implements Reader.
func (r *DirReader) Read(ctx context.Context, slug string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidSlug(slug) {
		return nil, fmt.Errorf("%w: invalid slug %q", ErrNotFound, slug)
	}

	path, err := r.indexPath(slug)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	entry, err := parseEntry(slug, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entry, nil
}

// ReadAll implements Reader.
func (r *DirReader) ReadAll(ctx context.Context) ([]Result, error) {
	dirs, err := os.ReadDir(r.ArticlesPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Result{}, nil // Empty content tree is valid
		}
		return nil, fmt.Errorf("failed to read articles directory: %w", err)
	}

	results := make([]Result, 0, len(dirs))
	for _, d := range dirs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !d.IsDir() || !ValidSlug(d.Name()) {
			continue
		}

		slug := d.Name()
		entry, err := r.Read(ctx, slug)
		if errors.Is(err, ErrNotFound) {
			// Directory without an index file, e.g. an asset folder.
			continue
		}
		results = append(results, Result{Slug: slug, Entry: entry, Err: err})
	}

	return results, nil
}

// indexPath returns the first existing index file for slug, or the
// default name when none exists so the caller reports ErrNotFound.
func (r *DirReader) indexPath(slug string) (string, error) {
	dir := filepath.Join(r.ArticlesPath(), slug)
	for _, name := range IndexFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return filepath.Join(dir, IndexFiles[0]), nil
}

// IsIndexFile reports whether name is an accepted article index file name.
func IsIndexFile(name string) bool {
	for _, n := range IndexFiles {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
