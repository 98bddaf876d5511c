package audit

import (
	"regexp"
	"strings"
)

// Sections are the named parts of a per-file analysis.
type Sections struct {
	Summary             string `json:"summary"`
	BugsIssues          string `json:"bugsIssues,omitempty"`
	Suggestions         string `json:"suggestions,omitempty"`
	CodeExample         string `json:"codeExample,omitempty"`
	CodeSmells          string `json:"codeSmells,omitempty"`
	SecurityPerformance string `json:"securityPerformance,omitempty"`
	TestCoverage        string `json:"testCoverage,omitempty"`
}

var sectionHeading = regexp.MustCompile(`(?i)^[\s#*\-]*(` +
	`summary(?: of what this file does)?|` +
	`bugs?(?: or issues found|/issues| and issues)?|issues|` +
	`suggestions(?: for improvement)?|` +
	`code example|example|` +
	`code smells|anti-patterns|` +
	`security(?: or performance concerns|/performance| and performance)?|` +
	`test coverage(?: and quality)?` +
	`)\s*\**\s*:\s*\**(.*)$`)

var fencedCode = regexp.MustCompile("(?s)```[\\w+-]*\\n?(.*?)```")

// ParseSections splits an analysis into its named sections. Text that does
// not follow the requested layout still yields a summary: the first 300
// bytes of the analysis.
func ParseSections(text string) Sections {
	var (
		s       Sections
		current *string
		buf     []string
	)
	flush := func() {
		if current != nil && *current == "" {
			*current = strings.TrimSpace(strings.Join(buf, "\n"))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		m := sectionHeading.FindStringSubmatch(line)
		if m == nil {
			if current != nil {
				buf = append(buf, line)
			}
			continue
		}
		flush()
		current = s.field(strings.ToLower(m[1]))
		if rest := strings.TrimSpace(m[2]); rest != "" {
			buf = append(buf, rest)
		}
	}
	flush()

	if m := fencedCode.FindStringSubmatch(s.CodeExample); m != nil {
		s.CodeExample = strings.TrimSpace(m[1])
	}
	if s.Summary == "" {
		s.Summary = strings.TrimSpace(Truncate(text, summaryFallback))
	}
	return s
}

func (s *Sections) field(label string) *string {
	switch {
	case strings.HasPrefix(label, "summary"):
		return &s.Summary
	case strings.HasPrefix(label, "bug"), label == "issues":
		return &s.BugsIssues
	case strings.HasPrefix(label, "suggestions"):
		return &s.Suggestions
	case label == "code example", label == "example":
		return &s.CodeExample
	case label == "code smells", label == "anti-patterns":
		return &s.CodeSmells
	case strings.HasPrefix(label, "security"):
		return &s.SecurityPerformance
	default:
		return &s.TestCoverage
	}
}
