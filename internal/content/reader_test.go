package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeFile creates path (and its parents) with the given contents.
func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

const yamlEntry = `---
title: Hello World
description: First post
cover: /img/hello.png
category: news
isDraft: true
isMainHeadline: true
authors:
  - alice
  - bob
  - alice
tags: [Go, " Concurrency "]
publishedTime: 2024-03-05T10:20:30+02:00
---
# Hello

Body text.
`

func TestRead_YAMLFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ArticlesDir, "hello-world", "index.md"), yamlEntry)

	r := NewDirReader(root)
	e, err := r.Read(context.Background(), "hello-world")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}

	if e.Slug != "hello-world" {
		t.Errorf("Slug = %q, want hello-world", e.Slug)
	}
	if e.Title != "Hello World" || e.Description != "First post" {
		t.Errorf("unexpected title/description: %q / %q", e.Title, e.Description)
	}
	if e.Category != "news" || e.Cover != "/img/hello.png" {
		t.Errorf("unexpected category/cover: %q / %q", e.Category, e.Cover)
	}
	if !e.IsDraft || !e.IsMainHeadline || e.IsSubHeadline {
		t.Errorf("unexpected flags: %+v", e)
	}
	if len(e.Authors) != 2 || e.Authors[0] != "alice" || e.Authors[1] != "bob" {
		t.Errorf("Authors = %v, want [alice bob]", e.Authors)
	}
	if len(e.Tags) != 2 || e.Tags[1] != "Concurrency" {
		t.Errorf("Tags = %v", e.Tags)
	}
	want := time.Date(2024, 3, 5, 8, 20, 30, 0, time.UTC)
	if !e.PublishedTime.Equal(want) || e.PublishedTime.Location() != time.UTC {
		t.Errorf("PublishedTime = %v, want %v", e.PublishedTime, want)
	}
	if e.Body != "# Hello\n\nBody text.\n" {
		t.Errorf("Body = %q", e.Body)
	}
}

func TestRead_TOMLFrontMatter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ArticlesDir, "toml-post", "index.mdx"), `+++
title = "TOML Post"
description = "Written in TOML"
isSubHeadline = true
tags = ["a"]
publishedTime = 2024-01-02
+++
body
`)

	e, err := NewDirReader(root).Read(context.Background(), "toml-post")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if e.Title != "TOML Post" || !e.IsSubHeadline {
		t.Errorf("unexpected entry: %+v", e)
	}
	if got := e.PublishedTime.Format("2006-01-02"); got != "2024-01-02" {
		t.Errorf("PublishedTime = %s, want 2024-01-02", got)
	}
}

func TestRead_QuotedDate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ArticlesDir, "quoted", "index.md"),
		"---\r\ntitle: Q\r\ndescription: D\r\npublishedTime: \"2023-12-31\"\r\n---\r\nx\r\n")

	e, err := NewDirReader(root).Read(context.Background(), "quoted")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if e.PublishedTime.Year() != 2023 || e.Body != "x\n" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestRead_NotFound(t *testing.T) {
	r := NewDirReader(t.TempDir())

	for _, slug := range []string{"missing", "../etc", ""} {
		_, err := r.Read(context.Background(), slug)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Read(%q) error = %v, want ErrNotFound", slug, err)
		}
	}
}

func TestRead_Validation(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no front matter", "just text\n"},
		{"unterminated", "---\ntitle: x\n"},
		{"missing title", "---\ndescription: d\npublishedTime: 2024-01-01\n---\n"},
		{"missing description", "---\ntitle: t\npublishedTime: 2024-01-01\n---\n"},
		{"missing published", "---\ntitle: t\ndescription: d\n---\n"},
		{"bad date", "---\ntitle: t\ndescription: d\npublishedTime: soon\n---\n"},
		{"bad yaml", "---\ntitle: [unclosed\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, ArticlesDir, "bad", "index.md"), tt.data)

			_, err := NewDirReader(root).Read(context.Background(), "bad")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestReadAll_ContinuesPastBadEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ArticlesDir, "a", "index.md"), "---\ntitle: A\ndescription: d\npublishedTime: 2024-01-01\n---\n")
	writeFile(t, filepath.Join(root, ArticlesDir, "b", "index.md"), "---\ndescription: no title\npublishedTime: 2024-01-01\n---\n")
	writeFile(t, filepath.Join(root, ArticlesDir, "c", "index.md"), "---\ntitle: C\ndescription: d\npublishedTime: 2024-01-01\n---\n")
	writeFile(t, filepath.Join(root, ArticlesDir, "assets", "logo.svg"), "<svg/>")
	writeFile(t, filepath.Join(root, ArticlesDir, "stray.md"), "ignored")

	results, err := NewDirReader(root).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	order := []string{"a", "b", "c"}
	for i, res := range results {
		if res.Slug != order[i] {
			t.Errorf("results[%d].Slug = %q, want %q", i, res.Slug, order[i])
		}
	}
	if results[0].Err != nil || results[0].Entry == nil {
		t.Errorf("entry a should parse: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, ErrValidation) || results[1].Entry != nil {
		t.Errorf("entry b should fail validation, got %v", results[1].Err)
	}
}

func TestReadAll_MissingRoot(t *testing.T) {
	results, err := NewDirReader(filepath.Join(t.TempDir(), "nope")).ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestWriteEntry_RoundTrip(t *testing.T) {
	root := t.TempDir()
	in := &Entry{
		Slug:          "round-trip",
		Title:         "Round Trip",
		Description:   "desc",
		Category:      "tech",
		IsDraft:       true,
		Authors:       []string{"alice"},
		Tags:          []string{"Go"},
		PublishedTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Body:          "hello\n",
	}
	if err := WriteEntry(root, in); err != nil {
		t.Fatalf("WriteEntry() failed: %v", err)
	}

	out, err := NewDirReader(root).Read(context.Background(), "round-trip")
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if out.Title != in.Title || out.Category != in.Category || !out.IsDraft ||
		!out.PublishedTime.Equal(in.PublishedTime) || out.Body != in.Body {
		t.Errorf("round trip mismatch: got %+v", out)
	}
}

func TestReadTaxonomy(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, CategoriesDir, "news.yaml"), "title: News\ndescription: Daily news\n")
	writeFile(t, filepath.Join(root, CategoriesDir, "tech.toml"), "title = \"Tech\"\n")
	writeFile(t, filepath.Join(root, CategoriesDir, "broken.yml"), "description: no title\n")
	writeFile(t, filepath.Join(root, CategoriesDir, "README.txt"), "ignored")
	writeFile(t, filepath.Join(root, AuthorsDir, "alice.yaml"), `name: Alice
role: Editor
socials:
  - platform: github
    url: https://github.com/alice
`)

	r := NewDirReader(root)
	cats, err := r.ReadCategories(context.Background())
	if err != nil {
		t.Fatalf("ReadCategories() failed: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("expected 3 category records, got %d", len(cats))
	}
	byslug := map[string]Record[Category]{}
	for _, c := range cats {
		byslug[c.Slug] = c
	}
	if byslug["news"].Value == nil || byslug["news"].Value.Title != "News" {
		t.Errorf("news category not parsed: %+v", byslug["news"])
	}
	if byslug["tech"].Value == nil || byslug["tech"].Value.Title != "Tech" {
		t.Errorf("tech category not parsed: %+v", byslug["tech"])
	}
	if !errors.Is(byslug["broken"].Err, ErrValidation) {
		t.Errorf("broken category error = %v, want ErrValidation", byslug["broken"].Err)
	}

	authors, err := r.ReadAuthors(context.Background())
	if err != nil {
		t.Fatalf("ReadAuthors() failed: %v", err)
	}
	if len(authors) != 1 || authors[0].Value == nil {
		t.Fatalf("expected alice, got %+v", authors)
	}
	a := authors[0].Value
	if a.Slug != "alice" || a.Role != "Editor" || len(a.Socials) != 1 || a.Socials[0].Platform != "github" {
		t.Errorf("unexpected author: %+v", a)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Go":                 "go",
		"Go Concurrency!":    "go-concurrency",
		"  multiple   words": "multiple-words",
		"C++ / Rust":         "c-rust",
		"Ünïcode Tag":        "ünïcode-tag",
		"---":                "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
