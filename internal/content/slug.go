package content

import (
	"strings"
	"unicode"
)

// Slugify converts a display name into a URL-safe slug:
// lowercase letters and digits separated by single hyphens.
//
//	Slugify("Go Concurrency!") == "go-concurrency"
func Slugify(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// ValidSlug reports whether s can be used as a directory-derived slug.
// Path separators and dot-only names are rejected so a slug never escapes
// the content root.
func ValidSlug(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	return !strings.HasPrefix(s, ".")
}
