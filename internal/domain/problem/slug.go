package problem

import (
	"path/filepath"
	"regexp"
	"strings"
)

// SourceExt is the extension of materialized source files.
const SourceExt = ".cpp"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a filesystem-safe base name: lowercase, runs of
// non-alphanumerics collapsed to one hyphen, hyphens trimmed from both ends.
// Falls back to DefaultTitle when nothing is left. Slugify is idempotent.
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = nonAlnum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return DefaultTitle
	}
	return s
}

// SourcePath is the deterministic target for a payload inside targetDir.
func (p Payload) SourcePath(targetDir string) string {
	return filepath.Join(targetDir, Slugify(p.SuggestedBase)+SourceExt)
}
