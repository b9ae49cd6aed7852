package content

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	yamlDelimiter = "---"
	tomlDelimiter = "+++"
)

// frontMatter mirrors the keys authors write at the top of index.md.
type frontMatter struct {
	Title                  string    `yaml:"title" toml:"title"`
	Description            string    `yaml:"description" toml:"description"`
	Cover                  string    `yaml:"cover" toml:"cover"`
	Category               string    `yaml:"category" toml:"category"`
	IsDraft                bool      `yaml:"isDraft" toml:"isDraft"`
	IsMainHeadline         bool      `yaml:"isMainHeadline" toml:"isMainHeadline"`
	IsSubHeadline          bool      `yaml:"isSubHeadline" toml:"isSubHeadline"`
	IsCategoryMainHeadline bool      `yaml:"isCategoryMainHeadline" toml:"isCategoryMainHeadline"`
	IsCategorySubHeadline  bool      `yaml:"isCategorySubHeadline" toml:"isCategorySubHeadline"`
	Authors                []string  `yaml:"authors" toml:"authors"`
	Tags                   []string  `yaml:"tags" toml:"tags"`
	PublishedTime          timestamp `yaml:"publishedTime" toml:"publishedTime"`
}

// timestamp accepts native YAML/TOML datetimes as well as quoted strings.
type timestamp struct {
	value time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (ts *timestamp) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("publishedTime must be a scalar")
	}
	if node.Value == "" {
		return nil
	}
	t, err := parseTimestamp(node.Value)
	if err != nil {
		return err
	}
	ts.value = t
	return nil
}

// UnmarshalTOML implements toml.Unmarshaler.
func (ts *timestamp) UnmarshalTOML(v any) error {
	switch val := v.(type) {
	case time.Time:
		ts.value = val
		return nil
	case string:
		if val == "" {
			return nil
		}
		t, err := parseTimestamp(val)
		if err != nil {
			return err
		}
		ts.value = t
		return nil
	default:
		return fmt.Errorf("publishedTime has unsupported type %T", v)
	}
}

// splitFrontMatter separates the front matter block from the body.
// It returns the delimiter that opened the block so the caller can pick
// a decoder.
func splitFrontMatter(data []byte) (delim string, header []byte, body string, err error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	firstLine, rest, _ := strings.Cut(text, "\n")
	delim = strings.TrimSpace(firstLine)
	if delim != yamlDelimiter && delim != tomlDelimiter {
		return "", nil, "", fmt.Errorf("%w: missing front matter", ErrValidation)
	}

	var hdr bytes.Buffer
	for {
		var line string
		var found bool
		line, rest, found = strings.Cut(rest, "\n")
		if strings.TrimSpace(line) == delim {
			return delim, hdr.Bytes(), rest, nil
		}
		if !found {
			return "", nil, "", fmt.Errorf("%w: unterminated front matter", ErrValidation)
		}
		hdr.WriteString(line)
		hdr.WriteByte('\n')
	}
}

// parseEntry decodes an index.md document into an Entry for slug.
func parseEntry(slug string, data []byte) (*Entry, error) {
	delim, header, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}

	var fm frontMatter
	if err := decodeHeader(delim, header, &fm); err != nil {
		return nil, err
	}

	entry := &Entry{
		Slug:                   slug,
		Title:                  strings.TrimSpace(fm.Title),
		Description:            strings.TrimSpace(fm.Description),
		Cover:                  strings.TrimSpace(fm.Cover),
		Category:               strings.TrimSpace(fm.Category),
		IsDraft:                fm.IsDraft,
		IsMainHeadline:         fm.IsMainHeadline,
		IsSubHeadline:          fm.IsSubHeadline,
		IsCategoryMainHeadline: fm.IsCategoryMainHeadline,
		IsCategorySubHeadline:  fm.IsCategorySubHeadline,
		Authors:                compact(fm.Authors),
		Tags:                   compact(fm.Tags),
		Body:                   body,
	}
	if !fm.PublishedTime.value.IsZero() {
		entry.PublishedTime = fm.PublishedTime.value.UTC().Truncate(time.Second)
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// decodeHeader unmarshals a front matter block or taxonomy file into v.
func decodeHeader(delim string, header []byte, v any) error {
	switch delim {
	case tomlDelimiter:
		if _, err := toml.Decode(string(header), v); err != nil {
			return fmt.Errorf("%w: toml: %v", ErrValidation, err)
		}
	default:
		if err := yaml.Unmarshal(header, v); err != nil {
			return fmt.Errorf("%w: yaml: %v", ErrValidation, err)
		}
	}
	return nil
}

// compact trims whitespace and drops empty and duplicate values,
// preserving first-seen order.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
