package output

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dshills/repoaudit/internal/audit"
)

const (
	sectionFiles   = "File Analyses"
	sectionSkipped = "Skipped Files"
)

// MarkdownWriter outputs the full audit report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *audit.Report) error {
	ew := &errWriter{w: w}

	ew.println("# Repository Audit Report")
	ew.println("")
	if name := repoLabel(report.Repo); name != "" {
		ew.printf("**Repository:** `%s`  \n", name)
	}
	if report.Repo.Branch != "" {
		ew.printf("**Branch:** `%s`  \n", report.Repo.Branch)
	}
	if report.Repo.PR > 0 {
		ew.printf("**Pull Request:** `%d`  \n", report.Repo.PR)
	}
	if report.Model != "" {
		ew.printf("**Model:** `%s/%s`  \n", report.Provider, report.Model)
	}
	if report.RunID != "" {
		ew.printf("**Run ID:** `%s`  \n", report.RunID)
	}
	if !report.GeneratedAt.IsZero() {
		ew.printf("**Generated:** %s  \n", report.GeneratedAt.Format(time.RFC3339))
	}
	ew.println("\n---\n")

	ew.println("## Table of Contents\n")
	for _, title := range tocEntries(report) {
		ew.printf("- [%s](#%s)\n", title, anchor(title))
	}
	ew.println("\n---\n")

	ew.printf("## %s\n\n", sectionFiles)
	if len(report.Files) == 0 {
		ew.println("No files were analyzed.\n")
	}
	for _, f := range report.Files {
		ew.printf("### `%s`\n\n", f.Path)
		if f.Failed() {
			ew.printf("> %s\n\n", f.Text)
		} else {
			if f.Kind == audit.KindCacheHit {
				ew.println("*cached*\n")
			}
			ew.printf("%s\n\n", strings.TrimSpace(f.Text))
		}
		ew.println("---\n")
	}

	if len(report.Skipped) > 0 {
		ew.printf("## %s\n\n", sectionSkipped)
		tbl := table.NewWriter()
		tbl.AppendHeader(table.Row{"File", "Reason"})
		for _, s := range report.Skipped {
			tbl.AppendRow(table.Row{"`" + s.Path + "`", s.Reason})
		}
		ew.printf("%s\n\n---\n\n", tbl.RenderMarkdown())
	}

	for _, s := range report.Sections {
		ew.printf("## %s\n\n", s.Name)
		if s.Name == audit.SectionUpdatedReadme {
			ew.printf("```markdown\n%s\n```\n\n", strings.TrimSpace(s.Text))
		} else {
			ew.printf("%s\n\n", strings.TrimSpace(s.Text))
		}
		ew.println("---\n")
	}

	ew.printf("*%s*\n", summaryLine(report))
	return ew.err
}

func tocEntries(report *audit.Report) []string {
	entries := []string{sectionFiles}
	if len(report.Skipped) > 0 {
		entries = append(entries, sectionSkipped)
	}
	for _, s := range report.Sections {
		entries = append(entries, s.Name)
	}
	return entries
}

var anchorStrip = regexp.MustCompile(`[^a-z0-9 _-]`)

// anchor returns the heading anchor GitHub generates for title.
func anchor(title string) string {
	a := anchorStrip.ReplaceAllString(strings.ToLower(title), "")
	return strings.ReplaceAll(a, " ", "-")
}

func repoLabel(r audit.RepoInfo) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Root
}

func summaryLine(report *audit.Report) string {
	s := report.Summary
	line := fmt.Sprintf("%d files: %d analyzed, %d cached, %d failed, %d skipped. Cache hit rate %.0f%%.",
		s.Files, s.Analyzed, s.Cached, s.Failed, s.Skipped, report.Stats.HitRate()*100)
	if report.Timing.TotalMs > 0 {
		line += fmt.Sprintf(" Completed in %s.", ms(report.Timing.TotalMs))
	}
	return line
}

// Comment renders the summary posted to a pull request: counts, a status
// table, and the reasons for any failures.
func Comment(report *audit.Report) string {
	var b strings.Builder
	b.WriteString("## Repository Audit\n\n")
	fmt.Fprintf(&b, "%s\n\n", summaryLine(report))

	if len(report.Files) > 0 {
		tbl := table.NewWriter()
		tbl.AppendHeader(table.Row{"File", "Status"})
		for _, f := range report.Files {
			tbl.AppendRow(table.Row{"`" + f.Path + "`", statusLabel(f.Kind)})
		}
		b.WriteString(tbl.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if failed := report.Failed(); len(failed) > 0 {
		b.WriteString("<details>\n<summary>Failures</summary>\n\n")
		for _, f := range failed {
			fmt.Fprintf(&b, "- `%s`: %s\n", f.Path, f.Reason)
		}
		b.WriteString("\n</details>\n")
	}
	return b.String()
}

func statusLabel(k audit.Kind) string {
	switch k {
	case audit.KindSuccess:
		return "analyzed"
	case audit.KindCacheHit:
		return "cached"
	case audit.KindFailure:
		return "failed"
	default:
		return string(k)
	}
}
