package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Column declares one table column.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	// Default is a SQL literal, e.g. "0" or "''" (empty = no default).
	Default string
	// References is a foreign key clause, e.g.
	// "categories(id) ON DELETE SET NULL".
	References string
}

// Table declares one table with optional table-level constraints.
type Table struct {
	Name        string
	Columns     []Column
	Constraints []string
}

// Index declares one secondary index.
type Index struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// Definition is the canonical declaration of the relational schema.
// Its fingerprint decides whether a migration is needed.
type Definition struct {
	Tables  []Table
	Indexes []Index
}

// Schema is the schema this build of inkpot expects.
var Schema = Definition{
	Tables: []Table{
		{
			Name: "categories",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "slug", Type: "TEXT", NotNull: true, Unique: true},
				{Name: "title", Type: "TEXT", NotNull: true},
				{Name: "description", Type: "TEXT", NotNull: true, Default: "''"},
			},
		},
		{
			Name: "authors",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "slug", Type: "TEXT", NotNull: true, Unique: true},
				{Name: "name", Type: "TEXT", NotNull: true},
				{Name: "role", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "avatar", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "bio", Type: "TEXT", NotNull: true, Default: "''"},
			},
		},
		{
			Name: "author_socials",
			Columns: []Column{
				{Name: "author_id", Type: "TEXT", NotNull: true, References: "authors(id) ON DELETE CASCADE"},
				{Name: "platform", Type: "TEXT", NotNull: true},
				{Name: "url", Type: "TEXT", NotNull: true},
			},
			Constraints: []string{"PRIMARY KEY (author_id, platform)"},
		},
		{
			Name: "articles",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "slug", Type: "TEXT", NotNull: true, Unique: true},
				{Name: "title", Type: "TEXT", NotNull: true},
				{Name: "description", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "cover", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "category_id", Type: "TEXT", References: "categories(id) ON DELETE SET NULL"},
				{Name: "published_time", Type: "TEXT", NotNull: true},
				{Name: "is_draft", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "is_main_headline", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "is_sub_headline", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "is_category_main_headline", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "is_category_sub_headline", Type: "INTEGER", NotNull: true, Default: "0"},
				{Name: "content", Type: "TEXT", NotNull: true, Default: "''"},
				{Name: "created_at", Type: "TEXT", NotNull: true},
				{Name: "updated_at", Type: "TEXT", NotNull: true},
			},
		},
		{
			Name: "article_authors",
			Columns: []Column{
				{Name: "article_id", Type: "TEXT", NotNull: true, References: "articles(id) ON DELETE CASCADE"},
				{Name: "author_id", Type: "TEXT", NotNull: true, References: "authors(id) ON DELETE CASCADE"},
				{Name: "position", Type: "INTEGER", NotNull: true, Default: "0"},
			},
			Constraints: []string{"PRIMARY KEY (article_id, author_id)"},
		},
		{
			Name: "tags",
			Columns: []Column{
				{Name: "id", Type: "TEXT", PrimaryKey: true},
				{Name: "slug", Type: "TEXT", NotNull: true, Unique: true},
				{Name: "name", Type: "TEXT", NotNull: true},
			},
		},
		{
			Name: "article_tags",
			Columns: []Column{
				{Name: "article_id", Type: "TEXT", NotNull: true, References: "articles(id) ON DELETE CASCADE"},
				{Name: "tag_id", Type: "TEXT", NotNull: true, References: "tags(id) ON DELETE CASCADE"},
			},
			Constraints: []string{"PRIMARY KEY (article_id, tag_id)"},
		},
	},
	Indexes: []Index{
		{Name: "idx_articles_category", Table: "articles", Columns: []string{"category_id"}},
		{Name: "idx_articles_published", Table: "articles", Columns: []string{"published_time"}},
		{Name: "idx_article_authors_author", Table: "article_authors", Columns: []string{"author_id"}},
		{Name: "idx_article_tags_tag", Table: "article_tags", Columns: []string{"tag_id"}},
	},
}

// Canonical returns a stable textual form of the definition. Declaration
// order is preserved since it is part of the schema.
func (d Definition) Canonical() string {
	var b strings.Builder
	for _, t := range d.Tables {
		fmt.Fprintf(&b, "table %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  column %s %s pk=%t notnull=%t unique=%t default=%q references=%q\n",
				c.Name, strings.ToUpper(c.Type), c.PrimaryKey, c.NotNull, c.Unique, c.Default, c.References)
		}
		for _, con := range t.Constraints {
			fmt.Fprintf(&b, "  constraint %s\n", con)
		}
	}
	for _, idx := range d.Indexes {
		fmt.Fprintf(&b, "index %s on %s(%s) unique=%t\n", idx.Name, idx.Table, strings.Join(idx.Columns, ","), idx.Unique)
	}
	return b.String()
}

// Fingerprint returns the SHA-256 digest of the canonical form as
// "sha256:<hex>".
func (d Definition) Fingerprint() string {
	sum := sha256.Sum256([]byte(d.Canonical()))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// columnSQL renders a column declaration for CREATE TABLE / ADD COLUMN.
func columnSQL(c Column) string {
	parts := []string{c.Name, c.Type}
	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}
	if c.Default != "" {
		parts = append(parts, "DEFAULT "+c.Default)
	}
	if c.References != "" {
		parts = append(parts, "REFERENCES "+c.References)
	}
	return strings.Join(parts, " ")
}

// CreateTableSQL renders an idempotent CREATE TABLE statement.
func (t Table) CreateTableSQL() string {
	lines := make([]string, 0, len(t.Columns)+len(t.Constraints))
	for _, c := range t.Columns {
		lines = append(lines, "\t"+columnSQL(c))
	}
	for _, con := range t.Constraints {
		lines = append(lines, "\t"+con)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(lines, ",\n"))
}

// CreateIndexSQL renders an idempotent CREATE INDEX statement.
func (idx Index) CreateIndexSQL() string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s(%s)",
		unique, idx.Name, idx.Table, strings.Join(idx.Columns, ", "))
}

// ApplyDefinition brings the database up to def: missing tables and
// indexes are created and missing columns are added to existing tables.
// Columns are never dropped or retyped. Run it inside WithTx so a failure
// leaves nothing committed.
func (q *Queries) ApplyDefinition(ctx context.Context, def Definition) error {
	for _, t := range def.Tables {
		existing, err := q.TableColumns(ctx, t.Name)
		if err != nil {
			return err
		}

		if len(existing) == 0 {
			if _, err := q.q.ExecContext(ctx, t.CreateTableSQL()); err != nil {
				return fmt.Errorf("failed to create table %s: %w", t.Name, err)
			}
			continue
		}

		have := make(map[string]bool, len(existing))
		for _, name := range existing {
			have[name] = true
		}
		for _, c := range t.Columns {
			if have[c.Name] {
				continue
			}
			if c.PrimaryKey || c.Unique || (c.NotNull && c.Default == "") {
				return fmt.Errorf("cannot add column %s.%s to existing table: needs a default and no key constraint", t.Name, c.Name)
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.Name, columnSQL(c))
			if _, err := q.q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to add column %s.%s: %w", t.Name, c.Name, err)
			}
		}
	}

	for _, idx := range def.Indexes {
		if _, err := q.q.ExecContext(ctx, idx.CreateIndexSQL()); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.Name, err)
		}
	}
	return nil
}

// TableColumns returns the column names of table, or nil if it does not
// exist.
func (q *Queries) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}
	return cols, nil
}
