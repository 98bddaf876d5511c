package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSections(t *testing.T) {
	text := strings.Join([]string{
		"Summary: Parses configuration files.",
		"It also validates them.",
		"",
		"**Bugs/Issues:** The error from Close is ignored.",
		"Suggestions:",
		"- Return wrapped errors",
		"Code Example:",
		"```go",
		"if err := f.Close(); err != nil {",
		"\treturn err",
		"}",
		"```",
		"## Code Smells: long function",
		"Security/Performance: none",
		"Test Coverage: not a test file",
	}, "\n")

	s := ParseSections(text)
	assert.Equal(t, "Parses configuration files.\nIt also validates them.", s.Summary)
	assert.Equal(t, "The error from Close is ignored.", s.BugsIssues)
	assert.Equal(t, "- Return wrapped errors", s.Suggestions)
	assert.Equal(t, "if err := f.Close(); err != nil {\n\treturn err\n}", s.CodeExample)
	assert.Equal(t, "long function", s.CodeSmells)
	assert.Equal(t, "none", s.SecurityPerformance)
	assert.Equal(t, "not a test file", s.TestCoverage)
}

func TestParseSections_FreeformFallsBackToSummary(t *testing.T) {
	text := strings.Repeat("word ", 100)
	s := ParseSections(text)
	assert.Equal(t, strings.TrimSpace(text[:summaryFallback]), s.Summary)
	assert.Empty(t, s.BugsIssues)
}

func TestParseSections_FirstHeadingWins(t *testing.T) {
	s := ParseSections("Summary: first\nSummary: second")
	assert.Equal(t, "first", s.Summary)
}
