package audit

import "time"

// FileUnit is one file to analyze.
type FileUnit struct {
	Path    string
	Content []byte
}

// Kind classifies an Outcome.
type Kind string

const (
	KindSuccess  Kind = "success"
	KindCacheHit Kind = "cache_hit"
	KindFailure  Kind = "failure"
)

// Outcome is the terminal result of processing one FileUnit.
type Outcome struct {
	Kind        Kind   `json:"kind"`
	Text        string `json:"text,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Success is a fresh analysis.
func Success(text string) Outcome { return Outcome{Kind: KindSuccess, Text: text} }

// CacheHit is an analysis reused from the cache.
func CacheHit(text string) Outcome { return Outcome{Kind: KindCacheHit, Text: text} }

// Failure is a file that could not be analyzed.
func Failure(reason string) Outcome { return Outcome{Kind: KindFailure, Reason: reason} }

// OK reports whether the outcome carries analysis text.
func (o Outcome) OK() bool { return o.Kind != KindFailure }

// Progress is emitted once per file as it reaches a terminal outcome.
type Progress struct {
	Completed int
	Total     int
	Path      string
	Kind      Kind
}

// ProgressFunc receives progress events. Calls are serialized.
type ProgressFunc func(Progress)

// Stats counts scheduler activity.
type Stats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Successes   int64 `json:"successes"`
	Failures    int64 `json:"failures"`
	CacheErrors int64 `json:"cacheErrors"`
	ClientCalls int64 `json:"clientCalls"`
}

// HitRate returns hits / (hits + misses), or 0 when nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// FileSection is the report entry for one file.
type FileSection struct {
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
	Text   string `json:"text"`
	Reason string `json:"reason,omitempty"`
}

// Failed reports whether the section is a failure placeholder.
func (s FileSection) Failed() bool { return s.Kind == KindFailure }

// NamedSection is a whole-repository section.
type NamedSection struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// SkippedFile is a file the resolver left out of the analysis.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RepoInfo describes the audited code.
type RepoInfo struct {
	Name   string `json:"name,omitempty"`
	Root   string `json:"root,omitempty"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
	PR     int    `json:"pr,omitempty"`
}

// Summary counts file sections by kind.
type Summary struct {
	Files    int `json:"files"`
	Analyzed int `json:"analyzed"`
	Cached   int `json:"cached"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Timing records wall time per phase.
type Timing struct {
	ResolveMs  int64 `json:"resolveMs"`
	AnalysisMs int64 `json:"analysisMs"`
	RepoMs     int64 `json:"repoMs"`
	TotalMs    int64 `json:"totalMs"`
}

// Report is the assembled audit.
type Report struct {
	Tool        string         `json:"tool"`
	Version     string         `json:"version"`
	RunID       string         `json:"runId"`
	GeneratedAt time.Time      `json:"generatedAt"`
	Provider    string         `json:"provider,omitempty"`
	Model       string         `json:"model,omitempty"`
	Repo        RepoInfo       `json:"repo"`
	Summary     Summary        `json:"summary"`
	Files       []FileSection  `json:"files"`
	Skipped     []SkippedFile  `json:"skipped,omitempty"`
	Sections    []NamedSection `json:"sections,omitempty"`
	Stats       Stats          `json:"stats"`
	Timing      Timing         `json:"timing"`
}

// Failed returns the failure sections in report order.
func (r *Report) Failed() []FileSection {
	var out []FileSection
	for _, f := range r.Files {
		if f.Failed() {
			out = append(out, f)
		}
	}
	return out
}

// Section returns the named whole-repository section.
func (r *Report) Section(name string) (string, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s.Text, true
		}
	}
	return "", false
}
