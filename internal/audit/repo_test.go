package audit

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitReadmeResponse(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		suggestions string
		updated     string
	}{
		{"numbered", "1. Add install steps\n- badges\n2. # Project\nUsage", "Add install steps\n- badges", "# Project\nUsage"},
		{"markers dropped", "1. Add install docs\n2. # Project\nBody", "Add install docs", "# Project\nBody"},
		{"no second item", "Looks fine.", "Looks fine.", ""},
		{"first split only", "1. a\n2. b\n2. c", "a", "b\n2. c"},
		{"version numbers kept", "1. Bump to v1.2\n2. # P", "Bump to v1.2", "# P"},
		{"no leading marker", "Add docs\n2. # P", "Add docs", "# P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, u := SplitReadmeResponse(tt.in)
			assert.Equal(t, tt.suggestions, s)
			assert.Equal(t, tt.updated, u)
		})
	}
}

func TestReadmeAnalysis_NoReadme(t *testing.T) {
	a := &fakeAnalyzer{}
	s, u, err := ReadmeAnalysis(context.Background(), a, "  \n")
	require.NoError(t, err)
	assert.Equal(t, NoReadme, s)
	assert.Empty(t, u)
	assert.Zero(t, a.calls.Load())
}

func TestWholeRepoSections(t *testing.T) {
	a := &fakeAnalyzer{reply: func(_, instruction string) string {
		if strings.Contains(instruction, "BEGIN README") {
			return "1. Add a license section\n2. # Demo\nNow with a license."
		}
		return "Write table tests."
	}}
	got := WholeRepoSections(context.Background(), a, units("a.go", "package a"), "# Demo", nil)

	assert.Equal(t, map[string]string{
		SectionTestStrategy:      "Write table tests.",
		SectionReadmeSuggestions: "Add a license section",
		SectionUpdatedReadme:     "# Demo\nNow with a license.",
	}, got)
	assert.Equal(t, int64(2), a.calls.Load())
}

func TestWholeRepoSections_FailuresBecomePlaceholders(t *testing.T) {
	a := &fakeAnalyzer{fail: map[string]bool{"": true}}
	got := WholeRepoSections(context.Background(), a, units("a.go", "package a"), "# Demo", nil)

	assert.Equal(t, "Analysis failed for Test Strategy: fake: model unavailable", got[SectionTestStrategy])
	assert.Equal(t, "Analysis failed for README Suggestions: fake: model unavailable", got[SectionReadmeSuggestions])
	assert.NotContains(t, got, SectionUpdatedReadme)
}
