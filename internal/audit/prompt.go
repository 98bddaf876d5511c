package audit

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// Prompt size limits, in bytes.
const (
	MaxPromptContent  = 8000
	MaxReadmeExcerpt  = 2000
	MaxCommitsExcerpt = 1000
	MaxReadmePrompt   = 12000
	MaxSampleFiles    = 5
	MaxSampleSize     = 4000
	MaxSampleExcerpt  = 1000
	summaryFallback   = 300
)

// SystemPrompt is sent with every analysis request.
const SystemPrompt = `You are an expert code reviewer auditing a software repository. Be specific and actionable. Refer to functions and lines by name. Do not invent code that is not shown.`

// FilePrompt is the context for one file's analysis instruction.
type FilePrompt struct {
	Path    string
	Content []byte
	Readme  string
	Commits []string
}

// FileInstruction returns the per-file instruction. The file content itself
// is passed separately to the Analyzer.
func FileInstruction(p FilePrompt) string {
	var b strings.Builder

	b.WriteString("Analyze the following file for bugs, code quality, maintainability, and best practices. ")
	b.WriteString("Use the README and recent commit messages as context. ")
	b.WriteString("For small files, include a code example for any suggested improvement.\n\n")

	fmt.Fprintf(&b, "File: %s\n", p.Path)
	if lang := DetectLanguage(p.Path, p.Content); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}

	if readme := strings.TrimSpace(p.Readme); readme != "" {
		fmt.Fprintf(&b, "\nREADME (excerpt):\n%s\n", Truncate(readme, MaxReadmeExcerpt))
	}
	if len(p.Commits) > 0 {
		fmt.Fprintf(&b, "\nRecent commit messages:\n%s\n", Truncate(strings.Join(p.Commits, "\n"), MaxCommitsExcerpt))
	}

	b.WriteString("\nRespond with these sections, each starting with its name followed by a colon:\n")
	b.WriteString("Summary: what this file does\n")
	b.WriteString("Bugs/Issues: bugs or issues found\n")
	b.WriteString("Suggestions: suggestions for improvement\n")
	b.WriteString("Code Example: a fenced code example, if the file is small\n")
	b.WriteString("Code Smells: notable code smells or anti-patterns\n")
	b.WriteString("Security/Performance: security or performance concerns\n")
	b.WriteString("Test Coverage: if the file is a test, comment on coverage and quality\n")
	b.WriteString("\nThe file content follows.")

	return b.String()
}

// PromptContent returns the part of content sent to the model.
func PromptContent(content []byte) string {
	return Truncate(string(content), MaxPromptContent)
}

// TestStrategyPrompt asks for a test strategy given the file list and a few
// small files as samples.
func TestStrategyPrompt(units []FileUnit) string {
	var b strings.Builder
	b.WriteString("You are an expert software test strategist. Given the following codebase, generate a high-level test strategy, ")
	b.WriteString("suggest missing or refinable test cases, and comment on the overall testability of the codebase. ")
	b.WriteString("If possible, provide example test cases for critical or under-tested areas.\n\n")

	b.WriteString("Codebase file list:\n")
	for _, u := range units {
		fmt.Fprintf(&b, "%s\n", u.Path)
	}

	b.WriteString("\nSample file contents:\n")
	samples := 0
	for _, u := range units {
		if samples == MaxSampleFiles {
			break
		}
		if len(u.Content) >= MaxSampleSize {
			continue
		}
		fmt.Fprintf(&b, "\n# %s\n%s\n", u.Path, Truncate(string(u.Content), MaxSampleExcerpt))
		samples++
	}

	b.WriteString("\nPlease provide:\n")
	b.WriteString("- A summary of the recommended test strategy\n")
	b.WriteString("- Suggestions for missing or weak test cases\n")
	b.WriteString("- Example test cases (if possible)\n")
	b.WriteString("- Any notes on test coverage, structure, or improvements\n")
	return b.String()
}

// ReadmePrompt asks for README suggestions followed by a rewritten README.
func ReadmePrompt(readme string) string {
	var b strings.Builder
	b.WriteString("You are an expert technical writer and open source maintainer. Review the following README for clarity, ")
	b.WriteString("completeness, and best practices. Suggest improvements, missing sections, and ways to make it more useful ")
	b.WriteString("for users and contributors. Then, provide an updated version of the README with your suggestions applied.\n\n")
	b.WriteString("--- BEGIN README ---\n")
	b.WriteString(Truncate(readme, MaxReadmePrompt))
	b.WriteString("\n--- END README ---\n\n")
	b.WriteString("Please provide:\n")
	b.WriteString("1. A bullet list of suggested improvements and missing sections.\n")
	b.WriteString("2. The full updated README with your suggestions applied.\n")
	return b.String()
}

// DetectLanguage names the language of a file, or "" when unknown.
func DetectLanguage(path string, content []byte) string {
	return enry.GetLanguage(filepath.Base(path), content)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
