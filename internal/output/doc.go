// Package output renders audit reports.
//
// Three formats are supported:
//   - markdown: the full report with a table of contents, one section per
//     file, skipped files, and the whole-repository sections (default)
//   - json: the report with each analysis also split into named sections
//   - text: a terminal summary table with per-file status and cache stats
//
// Use [GetWriter] to obtain a [Writer] for a format, or [WriteReport] to
// render straight to a file or stdout. [Comment] renders the short summary
// posted to pull requests.
package output
