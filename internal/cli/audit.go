package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dshills/repoaudit/internal/audit"
	"github.com/dshills/repoaudit/internal/cache"
	"github.com/dshills/repoaudit/internal/config"
	"github.com/dshills/repoaudit/internal/gitctx"
	"github.com/dshills/repoaudit/internal/observability"
	"github.com/dshills/repoaudit/internal/output"
	"github.com/dshills/repoaudit/internal/providers"
	"github.com/dshills/repoaudit/internal/redact"
)

// recentCommits is how many commit subjects are included in prompts.
const recentCommits = 10

// Shared audit flags
var (
	flagProvider         string
	flagModel            string
	flagConcurrency      int
	flagTimeout          string
	flagRetries          int
	flagFormat           string
	flagOut              string
	flagNoCache          bool
	flagCacheBackend     string
	flagNoRedact         bool
	flagFailOnError      bool
	flagMetricsFile      string
	flagSkipRepoAnalyses bool
	flagInclude          []string
	flagExclude          []string
	flagQuiet            bool
)

func addAuditFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagProvider, "provider", "", "LLM provider (ollama, lmstudio, vllm, openai, gemini, anthropic)")
	f.StringVar(&flagModel, "model", "", "Model name")
	f.IntVar(&flagConcurrency, "concurrency", 0, "Maximum concurrent analysis calls")
	f.StringVar(&flagTimeout, "timeout", "", "Per-attempt analysis timeout (e.g. 90s)")
	f.IntVar(&flagRetries, "retries", 0, "Retries after a failed analysis attempt")
	f.StringVar(&flagFormat, "format", "", "Output format (markdown, json, text)")
	f.StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	f.BoolVar(&flagNoCache, "no-cache", false, "Disable the result cache")
	f.StringVar(&flagCacheBackend, "cache-backend", "", "Cache backend (disk, s3, postgres)")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	f.BoolVar(&flagFailOnError, "fail-on-error", false, "Exit 1 when any file analysis failed")
	f.StringVar(&flagMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	f.BoolVar(&flagSkipRepoAnalyses, "skip-repo-analyses", false, "Skip the test strategy and README analyses")
	f.StringSliceVar(&flagInclude, "include", nil, "Include file path globs (comma-separated)")
	f.StringSliceVar(&flagExclude, "exclude", nil, "Additional exclude globs (comma-separated)")
	f.BoolVarP(&flagQuiet, "quiet", "q", false, "Do not print per-file progress")
}

// buildOverrides maps the flags set on cmd to config keys.
func buildOverrides(cmd *cobra.Command) map[string]any {
	f := cmd.Flags()
	m := make(map[string]any)
	set := func(flag, key string, val any) {
		if f.Changed(flag) {
			m[key] = val
		}
	}
	set("provider", "provider", flagProvider)
	set("model", "model", flagModel)
	set("concurrency", "concurrency", flagConcurrency)
	set("timeout", "timeout", flagTimeout)
	set("retries", "retries", flagRetries)
	set("format", "format", flagFormat)
	set("out", "output", flagOut)
	set("cache-backend", "cache.backend", flagCacheBackend)
	set("metrics-file", "metrics_file", flagMetricsFile)
	set("skip-repo-analyses", "skip_repo_analyses", flagSkipRepoAnalyses)
	set("include", "include", flagInclude)
	if flagNoCache {
		set("no-cache", "cache.enabled", false)
	}
	if flagNoRedact {
		set("no-redact", "privacy.redact_secrets", false)
	}
	return m
}

// resolveOptions builds file selection options from cfg. --exclude adds to
// the configured excludes instead of replacing them.
func resolveOptions(cfg config.Config) gitctx.Options {
	exclude := append([]string{}, cfg.Exclude...)
	exclude = append(exclude, flagExclude...)
	return gitctx.Options{
		Include:      cfg.Include,
		Exclude:      exclude,
		MaxFileBytes: cfg.MaxFileBytes,
		MaxFileLines: cfg.MaxFileLines,
	}
}

// auditRun is everything an audit needs besides configuration.
type auditRun struct {
	set     gitctx.FileSet
	readme  string
	commits []string
}

func (r auditRun) input() audit.Input {
	in := audit.Input{
		Units:  make([]audit.FileUnit, len(r.set.Files)),
		Readme: r.readme,
		Repo: audit.RepoInfo{
			Name:   r.set.Repo.Name,
			Root:   r.set.Repo.Root,
			Head:   r.set.Repo.Head,
			Branch: r.set.Repo.Branch,
			PR:     r.set.Repo.PR,
		},
		Commits:   r.commits,
		ResolveMs: r.set.ResolveMs,
	}
	for i, f := range r.set.Files {
		in.Units[i] = audit.FileUnit{Path: f.Path, Content: f.Content}
	}
	for _, s := range r.set.Skipped {
		in.Skipped = append(in.Skipped, audit.SkippedFile{Path: s.Path, Reason: s.Reason})
	}
	return in
}

func (r auditRun) scope() cache.Scope {
	return cache.Scope{Repo: r.set.Repo.Name, Branch: r.set.Repo.Branch, PR: r.set.Repo.PR}
}

// signalContext cancels on interrupt so in-flight calls stop and the
// scheduler drains.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// runAudit analyzes run with cfg and writes the report. Per-file failures
// are part of the report, not errors.
func runAudit(ctx context.Context, cfg config.Config, run auditRun, stderr io.Writer) (*audit.Report, error) {
	log := observability.NewLogger(observability.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: stderr})
	if !cfg.Privacy.RedactSecrets {
		fmt.Fprintln(stderr, "WARNING: secret redaction is disabled")
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	gen, err := providers.New(ctx, cfg.Provider, cfg.Model, providers.Options{Host: cfg.Host, APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}
	client := providers.NewClient(gen, providers.ClientOptions{
		Timeout: cfg.Timeout,
		Retries: cfg.Retries,
		Backoff: cfg.RetryBackoff,
		Logger:  log,
	})

	store, closeStore := openCache(ctx, cfg, run.scope(), log)
	defer closeStore()

	model := cfg.Model
	if model == "" {
		model = providers.DefaultModel(cfg.Provider)
	}
	var progress audit.ProgressFunc
	if !flagQuiet {
		progress = progressPrinter(stderr)
	}

	engine, err := audit.NewEngine(audit.EngineOptions{
		Cache:            store,
		Client:           client,
		Concurrency:      cfg.Concurrency,
		Redact:           redact.Policy{Secrets: cfg.Privacy.RedactSecrets, Paths: cfg.Privacy.RedactPaths},
		SkipRepoAnalyses: cfg.SkipRepoAnalyses,
		Provider:         gen.Name(),
		Model:            model,
		Version:          Version,
		Logger:           log,
		Metrics:          metrics,
		Progress:         progress,
	})
	if err != nil {
		return nil, err
	}

	report, err := engine.Run(ctx, run.input())
	if err != nil {
		return nil, err
	}

	if err := output.WriteReport(report, cfg.Format, cfg.Output); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("writing metrics failed", "path", cfg.MetricsFile, "err", err)
		}
	}
	return report, nil
}

// openCache returns the configured store, or a no-op store when caching is
// disabled or the backend cannot be opened.
func openCache(ctx context.Context, cfg config.Config, scope cache.Scope, log *slog.Logger) (cache.Store, func()) {
	nop := func() {}
	if !cfg.Cache.Enabled {
		return cache.Nop{}, nop
	}
	store, err := cache.Open(ctx, cacheOptions(cfg), scope)
	if err != nil {
		log.Warn("cache unavailable, continuing without it", "backend", cfg.Cache.Backend, "err", err)
		return cache.Nop{}, nop
	}
	if c, ok := store.(io.Closer); ok {
		return store, func() { c.Close() }
	}
	return store, nop
}

func cacheOptions(cfg config.Config) cache.Options {
	return cache.Options{
		Backend: cfg.Cache.Backend,
		Dir:     cfg.Cache.Dir,
		S3: cache.S3Options{
			Endpoint:  cfg.Cache.S3.Endpoint,
			Bucket:    cfg.Cache.S3.Bucket,
			Region:    cfg.Cache.S3.Region,
			Prefix:    cfg.Cache.S3.Prefix,
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
			Secure:    cfg.Cache.S3.Secure,
		},
		PostgresDSN:   cfg.Cache.PostgresDSN,
		MemoryEntries: cfg.Cache.MemoryEntries,
	}
}

var (
	progressHit  = color.New(color.FgCyan).SprintFunc()
	progressOK   = color.New(color.FgGreen).SprintFunc()
	progressFail = color.New(color.FgRed).SprintFunc()
)

func progressPrinter(w io.Writer) audit.ProgressFunc {
	return func(p audit.Progress) {
		var status string
		switch p.Kind {
		case audit.KindCacheHit:
			status = progressHit("cached")
		case audit.KindFailure:
			status = progressFail("failed")
		default:
			status = progressOK("done")
		}
		fmt.Fprintf(w, "[%d/%d] %s %s\n", p.Completed, p.Total, status, p.Path)
	}
}

// finish prints the run summary and sets the exit code.
func finish(w io.Writer, report *audit.Report) {
	s := report.Summary
	fmt.Fprintf(w, "Audited %d files: %d analyzed, %d cached, %d failed, %d skipped (cache hit rate %.0f%%)\n",
		s.Files, s.Analyzed, s.Cached, s.Failed, s.Skipped, report.Stats.HitRate()*100)
	if flagFailOnError && s.Failed > 0 {
		exitCode = ExitFilesFailed
	}
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Analyze repository files",
	Long:  "Analyze files with an LLM provider. Use subcommands to choose which files.",
}

var auditCodebaseCmd = &cobra.Command{
	Use:   "codebase",
	Short: "Audit all tracked files in the repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides(cmd))
		if err != nil {
			return err
		}
		repo, err := gitctx.Open(".")
		if err != nil {
			return fail(err)
		}
		set, err := repo.ResolveFiles(resolveOptions(cfg))
		if err != nil {
			return fail(err)
		}
		return auditLocal(cmd, cfg, repo, set)
	},
}

var flagMergeBase bool

var auditChangedCmd = &cobra.Command{
	Use:   "changed <revRange>",
	Short: "Audit files changed in a revision range (e.g. origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(buildOverrides(cmd))
		if err != nil {
			return err
		}
		repo, err := gitctx.Open(".")
		if err != nil {
			return fail(err)
		}
		set, err := repo.ResolveChanged(args[0], flagMergeBase, resolveOptions(cfg))
		if err != nil {
			return fail(err)
		}
		return auditLocal(cmd, cfg, repo, set)
	},
}

func auditLocal(cmd *cobra.Command, cfg config.Config, repo *gitctx.Repo, set gitctx.FileSet) error {
	stderr := cmd.ErrOrStderr()
	if len(set.Files) == 0 && len(set.Skipped) == 0 {
		fmt.Fprintln(stderr, "No files to audit.")
		return nil
	}
	readme, err := repo.ReadReadme()
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	commits, err := repo.RecentSubjects(recentCommits)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := runAudit(ctx, cfg, auditRun{set: set, readme: readme, commits: commits}, stderr)
	if err != nil {
		return fail(err)
	}
	finish(stderr, report)
	return nil
}

func init() {
	auditCmd.AddCommand(auditCodebaseCmd)
	auditCmd.AddCommand(auditChangedCmd)
	auditCmd.AddCommand(auditGitHubCmd)

	for _, cmd := range []*cobra.Command{auditCodebaseCmd, auditChangedCmd, auditGitHubCmd} {
		addAuditFlags(cmd)
	}

	auditChangedCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Diff against the merge base for a..b ranges")
}
