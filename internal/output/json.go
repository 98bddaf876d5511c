package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/repoaudit/internal/audit"
)

// JSONWriter outputs the full report as JSON.
type JSONWriter struct{}

type jsonFile struct {
	Path     string          `json:"path"`
	Kind     audit.Kind      `json:"kind"`
	Reason   string          `json:"reason,omitempty"`
	Analysis string          `json:"analysis,omitempty"`
	Sections *audit.Sections `json:"sections,omitempty"`
}

type jsonReport struct {
	*audit.Report
	Files []jsonFile `json:"files"`
}

func (j *JSONWriter) Write(w io.Writer, report *audit.Report) error {
	out := jsonReport{Report: report, Files: make([]jsonFile, 0, len(report.Files))}
	for _, f := range report.Files {
		jf := jsonFile{Path: f.Path, Kind: f.Kind, Reason: f.Reason}
		if !f.Failed() {
			jf.Analysis = f.Text
			sections := audit.ParseSections(f.Text)
			jf.Sections = &sections
		}
		out.Files = append(out.Files, jf)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
