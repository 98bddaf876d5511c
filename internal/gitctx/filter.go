package gitctx

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/src-d/enry/v2"
)

// Default per-file limits.
const (
	DefaultMaxFileBytes = 100000
	DefaultMaxFileLines = 4000
)

// Options controls which files are audited. Zero limits disable the check.
type Options struct {
	Include        []string
	Exclude        []string
	MaxFileBytes   int
	MaxFileLines   int
	IncludeVendors bool
}

// Selects reports whether path passes the include, exclude, and vendor
// filters. Content is not inspected.
func (o Options) Selects(path string) bool {
	if len(o.Include) > 0 && !MatchesAny(path, o.Include) {
		return false
	}
	if MatchesAny(path, o.Exclude) {
		return false
	}
	if !o.IncludeVendors && enry.IsVendor(path) {
		return false
	}
	return true
}

// Admit checks content against the size limits. Whitespace-only files count
// as empty. A rejected file with a reason belongs in the skipped list; binary
// files are rejected silently.
func (o Options) Admit(path string, content []byte) (bool, string) {
	switch {
	case len(bytes.TrimSpace(content)) == 0:
		return false, "empty file"
	case enry.IsBinary(content):
		return false, ""
	case o.MaxFileBytes > 0 && len(content) > o.MaxFileBytes:
		return false, fmt.Sprintf("larger than %d bytes (%d)", o.MaxFileBytes, len(content))
	}
	if o.MaxFileLines > 0 {
		if n := countLines(content); n > o.MaxFileLines {
			return false, fmt.Sprintf("more than %d lines (%d)", o.MaxFileLines, n)
		}
	}
	return true, ""
}

func countLines(content []byte) int {
	n := bytes.Count(content, []byte{'\n'})
	if len(content) > 0 && content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// MatchesAny reports whether path matches any of the doublestar patterns.
// A pattern without a slash also matches the base name, so "*.go" selects
// Go files in every directory.
func MatchesAny(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if ok, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && ok {
				return true
			}
		}
	}
	return false
}
