package audit

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// NoReadme is the README suggestions text when the repository has none.
const NoReadme = "No README found to analyze."

// TestStrategy asks the analyzer for a repository-wide test strategy.
func TestStrategy(ctx context.Context, a Analyzer, units []FileUnit) (string, error) {
	return a.Analyze(ctx, "", TestStrategyPrompt(units))
}

// ReadmeAnalysis returns README suggestions and an updated README. An empty
// readme returns NoReadme without calling the analyzer.
func ReadmeAnalysis(ctx context.Context, a Analyzer, readme string) (suggestions, updated string, err error) {
	if strings.TrimSpace(readme) == "" {
		return NoReadme, "", nil
	}
	text, err := a.Analyze(ctx, "", ReadmePrompt(readme))
	if err != nil {
		return "", "", err
	}
	suggestions, updated = SplitReadmeResponse(text)
	return suggestions, updated, nil
}

// readmeSplit starts the second numbered item of a README analysis.
const readmeSplit = "\n2."

// SplitReadmeResponse splits a README analysis at the start of its second
// numbered item and drops both item markers. Without a second item the whole
// text is suggestions.
func SplitReadmeResponse(text string) (suggestions, updated string) {
	i := strings.Index(text, readmeSplit)
	if i < 0 {
		return strings.TrimSpace(text), ""
	}
	suggestions = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text[:i]), "1."))
	updated = strings.TrimSpace(text[i+len(readmeSplit):])
	return suggestions, updated
}

// WholeRepoSections runs the test strategy and README analyses concurrently
// and returns their sections. A failed analysis becomes a placeholder
// section; it never fails the audit.
func WholeRepoSections(ctx context.Context, a Analyzer, units []FileUnit, readme string, log *slog.Logger) map[string]string {
	if log == nil {
		log = slog.Default()
	}
	var strategy, suggest, rewritten string

	var g errgroup.Group
	g.Go(func() error {
		text, err := TestStrategy(ctx, a, units)
		if err != nil {
			log.WarnContext(ctx, "test strategy failed", "error", err)
			strategy = repoFailure(SectionTestStrategy, err)
			return nil
		}
		strategy = text
		return nil
	})
	g.Go(func() error {
		s, u, err := ReadmeAnalysis(ctx, a, readme)
		if err != nil {
			log.WarnContext(ctx, "readme analysis failed", "error", err)
			suggest = repoFailure(SectionReadmeSuggestions, err)
			return nil
		}
		suggest, rewritten = s, u
		return nil
	})
	_ = g.Wait()

	sections := map[string]string{
		SectionTestStrategy:      strategy,
		SectionReadmeSuggestions: suggest,
	}
	if rewritten != "" {
		sections[SectionUpdatedReadme] = rewritten
	}
	return sections
}

func repoFailure(section string, err error) string {
	return "Analysis failed for " + section + ": " + err.Error()
}
