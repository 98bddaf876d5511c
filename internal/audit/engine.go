package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/repoaudit/internal/cache"
	"github.com/dshills/repoaudit/internal/observability"
	"github.com/dshills/repoaudit/internal/redact"
)

// ToolName is recorded in every report.
const ToolName = "repoaudit"

// EngineOptions configures an Engine.
type EngineOptions struct {
	Cache       cache.Store
	Client      Analyzer
	Concurrency int
	Redact      redact.Policy
	// SkipRepoAnalyses leaves out the test strategy and README sections.
	SkipRepoAnalyses bool

	Provider string
	Model    string
	Version  string

	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Progress ProgressFunc
}

// Input is a resolved set of files plus the context used in prompts.
type Input struct {
	Units     []FileUnit
	Skipped   []SkippedFile
	Repo      RepoInfo
	Readme    string
	Commits   []string
	ResolveMs int64
}

// Engine runs a full audit: per-file analysis, whole-repository analyses,
// and report assembly.
type Engine struct {
	opts EngineOptions
	log  *slog.Logger
}

// NewEngine validates opts the same way NewScheduler does.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if _, err := NewScheduler(opts.schedulerOptions(nil)); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{opts: opts, log: log}, nil
}

func (o EngineOptions) schedulerOptions(instr InstructionFunc) Options {
	return Options{
		Cache:       o.Cache,
		Client:      o.Client,
		Instruction: instr,
		Concurrency: o.Concurrency,
		Logger:      o.Logger,
		Metrics:     o.Metrics,
		Progress:    o.Progress,
	}
}

// Run audits in and returns the assembled report. Files that fail are
// reported, not returned as errors.
func (e *Engine) Run(ctx context.Context, in Input) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	readme := e.opts.Redact.Apply("README.md", in.Readme)
	sched, err := NewScheduler(e.opts.schedulerOptions(func(u FileUnit) Payload {
		raw := PromptContent(u.Content)
		content := e.opts.Redact.Apply(u.Path, raw)
		return Payload{
			Content: content,
			Instruction: FileInstruction(FilePrompt{
				Path:    u.Path,
				Content: u.Content,
				Readme:  readme,
				Commits: in.Commits,
			}),
			Private: content != raw,
		}
	}))
	if err != nil {
		return nil, err
	}

	e.log.InfoContext(ctx, "audit started", "files", len(in.Units), "skipped", len(in.Skipped), "concurrency", e.opts.Concurrency)

	analysisStart := time.Now()
	outcomes, err := sched.Run(ctx, in.Units)
	if err != nil {
		return nil, fmt.Errorf("analyzing files: %w", err)
	}
	analysisMs := time.Since(analysisStart).Milliseconds()

	var wholeRepo map[string]string
	var repoMs int64
	if !e.opts.SkipRepoAnalyses && len(in.Units) > 0 {
		repoStart := time.Now()
		wholeRepo = WholeRepoSections(ctx, e.opts.Client, e.redactUnits(in.Units), readme, e.log)
		repoMs = time.Since(repoStart).Milliseconds()
	}

	paths := make([]string, len(in.Units))
	for i, u := range in.Units {
		paths[i] = u.Path
	}
	report, err := Assemble(outcomes, paths, wholeRepo)
	if err != nil {
		return nil, fmt.Errorf("assembling report: %w", err)
	}

	report.Tool = ToolName
	report.Version = e.opts.Version
	report.RunID = runID
	report.GeneratedAt = time.Now().UTC()
	report.Provider = e.opts.Provider
	report.Model = e.opts.Model
	report.Repo = in.Repo
	report.Skipped = in.Skipped
	report.Summary.Skipped = len(in.Skipped)
	report.Stats = sched.Stats()
	report.Timing = Timing{
		ResolveMs:  in.ResolveMs,
		AnalysisMs: analysisMs,
		RepoMs:     repoMs,
		TotalMs:    time.Since(start).Milliseconds() + in.ResolveMs,
	}

	e.log.InfoContext(ctx, "audit finished",
		"analyzed", report.Summary.Analyzed,
		"cached", report.Summary.Cached,
		"failed", report.Summary.Failed,
		"hit_rate", report.Stats.HitRate(),
		"total_ms", report.Timing.TotalMs,
	)
	return report, nil
}

// redactUnits applies the redaction policy to the samples sent with the
// test strategy prompt.
func (e *Engine) redactUnits(units []FileUnit) []FileUnit {
	out := make([]FileUnit, len(units))
	for i, u := range units {
		out[i] = FileUnit{Path: u.Path, Content: []byte(e.opts.Redact.Apply(u.Path, string(u.Content)))}
	}
	return out
}
