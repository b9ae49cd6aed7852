package daemon

import (
	"path/filepath"
	"testing"
)

func TestSlugFromPath(t *testing.T) {
	root := filepath.Join("content", "articles")

	tests := []struct {
		name   string
		path   string
		op     EventOp
		want   string
		wantOK bool
	}{
		{"index.md", filepath.Join(root, "hello", "index.md"), OpChanged, "hello", true},
		{"index.mdx", filepath.Join(root, "hello", "index.mdx"), OpAdded, "hello", true},
		{"removed dir", filepath.Join(root, "hello"), OpRemoved, "hello", true},
		{"added dir", filepath.Join(root, "hello"), OpAdded, "", false},
		{"root itself", root, OpRemoved, "", false},
		{"root with slash", root + string(filepath.Separator), OpChanged, "", false},
		{"other file", filepath.Join(root, "hello", "cover.png"), OpChanged, "", false},
		{"nested index", filepath.Join(root, "hello", "drafts", "index.md"), OpChanged, "", false},
		{"outside root", filepath.Join("content", "categories", "news.yaml"), OpChanged, "", false},
		{"hidden dir", filepath.Join(root, ".git", "index.md"), OpChanged, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SlugFromPath(root, tt.path, tt.op)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("SlugFromPath(%q) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
