package output

import (
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dshills/repoaudit/internal/audit"
)

const noteWidth = 60

// TextWriter outputs a terminal summary of the audit.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *audit.Report) error {
	ew := &errWriter{w: w}

	ew.printf("Repository Audit: %s", repoLabel(report.Repo))
	if report.Repo.Branch != "" {
		ew.printf(" (branch: %s)", report.Repo.Branch)
	}
	if report.Repo.PR > 0 {
		ew.printf(" PR #%d", report.Repo.PR)
	}
	ew.println("")
	if report.Model != "" {
		ew.printf("Model: %s/%s\n", report.Provider, report.Model)
	}
	ew.println(strings.Repeat("─", 60))

	if len(report.Files) == 0 {
		ew.println("No files were analyzed.")
	} else {
		tbl := table.NewWriter()
		tbl.SetStyle(table.StyleLight)
		tbl.Style().Options.DrawBorder = false
		tbl.Style().Options.SeparateColumns = false
		tbl.AppendHeader(table.Row{"File", "Status", "Note"})
		for _, f := range report.Files {
			tbl.AppendRow(table.Row{f.Path, colorStatus(f.Kind), note(f)})
		}
		ew.println(tbl.Render())
	}

	if len(report.Skipped) > 0 {
		ew.printf("\nSkipped %s files:\n", humanize.Comma(int64(len(report.Skipped))))
		for _, s := range report.Skipped {
			ew.printf("  %s  %s\n", s.Path, s.Reason)
		}
	}

	s := report.Summary
	ew.println(strings.Repeat("─", 60))
	ew.printf("Files: %s (%s analyzed, %s cached, %s failed, %s skipped)\n",
		humanize.Comma(int64(s.Files)),
		humanize.Comma(int64(s.Analyzed)),
		humanize.Comma(int64(s.Cached)),
		humanize.Comma(int64(s.Failed)),
		humanize.Comma(int64(s.Skipped)),
	)
	st := report.Stats
	ew.printf("Cache: %s hits, %s misses (%.0f%% hit rate), %s model calls",
		humanize.Comma(st.Hits), humanize.Comma(st.Misses), st.HitRate()*100, humanize.Comma(st.ClientCalls))
	if st.CacheErrors > 0 {
		ew.printf(", %s cache errors", humanize.Comma(st.CacheErrors))
	}
	ew.println("")
	ew.printf("Completed in %s (resolve: %s, analysis: %s, repository: %s)\n",
		ms(report.Timing.TotalMs), ms(report.Timing.ResolveMs), ms(report.Timing.AnalysisMs), ms(report.Timing.RepoMs))

	return ew.err
}

func colorStatus(k audit.Kind) string {
	label := statusLabel(k)
	switch k {
	case audit.KindSuccess:
		return color.New(color.FgGreen).Sprint(label)
	case audit.KindCacheHit:
		return color.New(color.FgCyan).Sprint(label)
	case audit.KindFailure:
		return color.New(color.FgRed).Sprint(label)
	default:
		return label
	}
}

func note(f audit.FileSection) string {
	if f.Failed() {
		return truncateNote(f.Reason)
	}
	return truncateNote(audit.ParseSections(f.Text).Summary)
}

func truncateNote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= noteWidth {
		return s
	}
	return audit.Truncate(s, noteWidth-3) + "..."
}

func ms(v int64) string {
	return (time.Duration(v) * time.Millisecond).String()
}
