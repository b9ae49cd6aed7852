package daemon

import (
	"path/filepath"
	"strings"

	"github.com/mschirtzinger/inkpot/internal/content"
)

// SlugFromPath maps a changed path under the articles root to the slug of
// the entry it belongs to:
//
//	<root>/<slug>/index.md   -> slug (any op)
//	<root>/<slug>            -> slug (OpRemoved only)
//
// Everything else, including the root itself, files directly in the root
// and files nested deeper than one level, is ignored.
func SlugFromPath(root, path string, op EventOp) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		if op != OpRemoved || !content.ValidSlug(parts[0]) {
			return "", false
		}
		return parts[0], true
	case 2:
		if !content.IsIndexFile(parts[1]) || !content.ValidSlug(parts[0]) {
			return "", false
		}
		return parts[0], true
	default:
		return "", false
	}
}
