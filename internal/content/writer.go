package content

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MarshalYAML implements yaml.Marshaler.
func (ts timestamp) MarshalYAML() (any, error) {
	if ts.value.IsZero() {
		return "", nil
	}
	return ts.value.UTC().Format(time.RFC3339), nil
}

// WriteEntry writes e to <root>/articles/<slug>/index.md with YAML front
// matter. The file is written atomically via a temp file.
func WriteEntry(root string, e *Entry) error {
	if !ValidSlug(e.Slug) {
		return fmt.Errorf("cannot write entry with invalid slug %q", e.Slug)
	}

	fm := frontMatter{
		Title:                  e.Title,
		Description:            e.Description,
		Cover:                  e.Cover,
		Category:               e.Category,
		IsDraft:                e.IsDraft,
		IsMainHeadline:         e.IsMainHeadline,
		IsSubHeadline:          e.IsSubHeadline,
		IsCategoryMainHeadline: e.IsCategoryMainHeadline,
		IsCategorySubHeadline:  e.IsCategorySubHeadline,
		Authors:                e.Authors,
		Tags:                   e.Tags,
		PublishedTime:          timestamp{value: e.PublishedTime},
	}

	header, err := yaml.Marshal(&fm)
	if err != nil {
		return fmt.Errorf("failed to marshal front matter for %s: %w", e.Slug, err)
	}

	var buf bytes.Buffer
	buf.WriteString(yamlDelimiter + "\n")
	buf.Write(header)
	buf.WriteString(yamlDelimiter + "\n")
	buf.WriteString(e.Body)

	dir := filepath.Join(root, ArticlesDir, e.Slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	path := filepath.Join(dir, IndexFiles[0])
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
