package audit

import (
	"fmt"
	"sort"
)

// Whole-repository section names, in report order.
const (
	SectionTestStrategy      = "Test Strategy"
	SectionReadmeSuggestions = "README Suggestions"
	SectionUpdatedReadme     = "Updated README"
)

// SectionOrder is the fixed order of whole-repository sections. Sections
// with other names follow in lexical order.
var SectionOrder = []string{SectionTestStrategy, SectionReadmeSuggestions, SectionUpdatedReadme}

// FailurePlaceholder is the text shown for a file whose analysis failed.
func FailurePlaceholder(path, reason string) string {
	return fmt.Sprintf("Analysis failed for `%s`: %s", path, reason)
}

// Assemble builds a report with one section per entry of orderedPaths, in
// that order, followed by the whole-repository sections. Every ordered path
// must have an outcome and every outcome must be ordered; anything else is
// ErrInvariant.
func Assemble(outcomes map[string]Outcome, orderedPaths []string, wholeRepo map[string]string) (*Report, error) {
	report := &Report{Files: make([]FileSection, 0, len(orderedPaths))}

	seen := make(map[string]struct{}, len(orderedPaths))
	for _, path := range orderedPaths {
		if _, dup := seen[path]; dup {
			return nil, invariantf("path %q listed twice", path)
		}
		seen[path] = struct{}{}

		o, ok := outcomes[path]
		if !ok {
			return nil, invariantf("no outcome for path %q", path)
		}

		sec := FileSection{Path: path, Kind: o.Kind, Text: o.Text}
		switch o.Kind {
		case KindFailure:
			sec.Reason = o.Reason
			sec.Text = FailurePlaceholder(path, o.Reason)
			report.Summary.Failed++
		case KindCacheHit:
			report.Summary.Cached++
		case KindSuccess:
			report.Summary.Analyzed++
		default:
			return nil, invariantf("unknown outcome kind %q for path %q", o.Kind, path)
		}
		report.Files = append(report.Files, sec)
	}
	if len(outcomes) != len(seen) {
		for path := range outcomes {
			if _, ok := seen[path]; !ok {
				return nil, invariantf("outcome for %q missing from ordered paths", path)
			}
		}
	}
	report.Summary.Files = len(report.Files)
	report.Sections = orderSections(wholeRepo)
	return report, nil
}

func orderSections(wholeRepo map[string]string) []NamedSection {
	var out []NamedSection
	known := make(map[string]bool, len(SectionOrder))
	for _, name := range SectionOrder {
		known[name] = true
		if text, ok := wholeRepo[name]; ok {
			out = append(out, NamedSection{Name: name, Text: text})
		}
	}
	var extra []string
	for name := range wholeRepo {
		if !known[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, NamedSection{Name: name, Text: wholeRepo[name]})
	}
	return out
}
