package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repoaudit/internal/audit"
	"github.com/dshills/repoaudit/internal/cache"
	"github.com/dshills/repoaudit/internal/config"
	"github.com/dshills/repoaudit/internal/fingerprint"
	"github.com/dshills/repoaudit/internal/github"
	"github.com/dshills/repoaudit/internal/gitctx"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// resetFlags resets all package-level flag variables to their zero values.
func resetFlags() {
	flagConfig = ""
	flagProvider = ""
	flagModel = ""
	flagConcurrency = 0
	flagTimeout = ""
	flagRetries = 0
	flagFormat = ""
	flagOut = ""
	flagNoCache = false
	flagCacheBackend = ""
	flagNoRedact = false
	flagFailOnError = false
	flagMetricsFile = ""
	flagSkipRepoAnalyses = false
	flagInclude = nil
	flagExclude = nil
	flagQuiet = false
	flagMergeBase = false
	flagGHPost = false
	flagConfigForce = false
	flagCacheRepo = ""
	flagCacheBranch = ""
	flagCachePR = 0
	exitCode = ExitSuccess
}

func newAuditCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	resetFlags()
	cmd := &cobra.Command{Use: "test"}
	addAuditFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args), "ParseFlags(%v)", args)
	return cmd
}

// --- buildOverrides tests ---

func TestBuildOverrides_NoFlags(t *testing.T) {
	assert.Empty(t, buildOverrides(newAuditCommand(t)))
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	cmd := newAuditCommand(t,
		"--provider", "openai",
		"--model", "gpt-4o",
		"--concurrency", "3",
		"--timeout", "45s",
		"--retries", "1",
		"--format", "json",
		"--out", "report.json",
		"--no-cache",
		"--cache-backend", "s3",
		"--no-redact",
		"--metrics-file", "audit.prom",
		"--skip-repo-analyses",
		"--include", "*.go,*.py",
	)

	assert.Equal(t, map[string]any{
		"provider":               "openai",
		"model":                  "gpt-4o",
		"concurrency":            3,
		"timeout":                "45s",
		"retries":                1,
		"format":                 "json",
		"output":                 "report.json",
		"cache.enabled":          false,
		"cache.backend":          "s3",
		"privacy.redact_secrets": false,
		"metrics_file":           "audit.prom",
		"skip_repo_analyses":     true,
		"include":                []string{"*.go", "*.py"},
	}, buildOverrides(cmd))
}

func TestBuildOverrides_ExplicitZeroIsKept(t *testing.T) {
	m := buildOverrides(newAuditCommand(t, "--retries", "0"))
	require.Contains(t, m, "retries")
	assert.Equal(t, 0, m["retries"])
}

func TestBuildOverrides_LoadsIntoConfig(t *testing.T) {
	cmd := newAuditCommand(t, "--provider", "anthropic", "--timeout", "45s", "--include", "src/**")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"), buildOverrides(cmd))
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "45s", cfg.Timeout.String())
	assert.Equal(t, []string{"src/**"}, cfg.Include)
}

func TestResolveOptions_ExcludeAppends(t *testing.T) {
	newAuditCommand(t, "--exclude", "docs/**")
	cfg := config.Default()

	opts := resolveOptions(cfg)

	assert.Equal(t, append(append([]string{}, cfg.Exclude...), "docs/**"), opts.Exclude)
	assert.Equal(t, cfg.MaxFileBytes, opts.MaxFileBytes)
	assert.Equal(t, cfg.MaxFileLines, opts.MaxFileLines)
}

func TestAuditRun_Input(t *testing.T) {
	run := auditRun{
		set: gitctx.FileSet{
			Files:     []gitctx.File{{Path: "a.go", Content: []byte("package a")}},
			Skipped:   []gitctx.Skipped{{Path: "big.go", Reason: "larger than 10 bytes (20)"}},
			Repo:      gitctx.RepoMeta{Name: "demo", Branch: "main", Head: "abc", PR: 7},
			ResolveMs: 12,
		},
		readme:  "# Demo",
		commits: []string{"init"},
	}

	in := run.input()

	require.Len(t, in.Units, 1)
	assert.Equal(t, "a.go", in.Units[0].Path)
	require.Len(t, in.Skipped, 1)
	assert.Equal(t, "larger than 10 bytes (20)", in.Skipped[0].Reason)
	assert.Equal(t, "demo", in.Repo.Name)
	assert.Equal(t, 7, in.Repo.PR)
	assert.Equal(t, int64(12), in.ResolveMs)
	assert.Equal(t, "# Demo", in.Readme)
	assert.Equal(t, cache.Scope{Repo: "demo", Branch: "main", PR: 7}, run.scope())
}

func TestAuditRun_ScopeKeepsOwner(t *testing.T) {
	fork := auditRun{set: gitctx.FileSet{Repo: gitctx.RepoMeta{Name: "alice/widgets", Branch: "feat", PR: 9}}}
	upstream := auditRun{set: gitctx.FileSet{Repo: gitctx.RepoMeta{Name: "acme/widgets", Branch: "feat", PR: 9}}}

	assert.Equal(t, "alice_widgets_feat_pr9", fork.scope().Name())
	assert.NotEqual(t, fork.scope().Name(), upstream.scope().Name())
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"github auth", fmt.Errorf("resolving: %w", github.ErrAuth), ExitAuthError},
		{"invalid config", fmt.Errorf("%w: concurrency", config.ErrInvalid), ExitUsageError},
		{"engine configuration", &audit.ConfigurationError{Field: "Concurrency", Reason: "must be at least 1"}, ExitUsageError},
		{"other", errors.New("git failed"), ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitFor(tt.err))
		})
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	p(audit.Progress{Completed: 1, Total: 3, Path: "a.go", Kind: audit.KindCacheHit})
	p(audit.Progress{Completed: 2, Total: 3, Path: "b.go", Kind: audit.KindSuccess})
	p(audit.Progress{Completed: 3, Total: 3, Path: "c.go", Kind: audit.KindFailure})

	assert.Equal(t, "[1/3] cached a.go\n[2/3] done b.go\n[3/3] failed c.go\n", buf.String())
}

func TestFinish_ExitCode(t *testing.T) {
	report := &audit.Report{Summary: audit.Summary{Files: 2, Analyzed: 1, Failed: 1}}

	resetFlags()
	finish(&bytes.Buffer{}, report)
	assert.Equal(t, ExitSuccess, exitCode, "without --fail-on-error")

	resetFlags()
	flagFailOnError = true
	var buf bytes.Buffer
	finish(&buf, report)
	assert.Equal(t, ExitFilesFailed, exitCode, "with --fail-on-error")
	assert.Contains(t, buf.String(), "Audited 2 files: 1 analyzed, 0 cached, 1 failed")
}

// ollamaServer answers every generate call with the same analysis.
func ollamaServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintln(w, `{"response":"## Summary\nLooks fine.","done":true}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunAudit_CachesAcrossRuns(t *testing.T) {
	resetFlags()
	var calls atomic.Int64
	server := ollamaServer(t, &calls)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Provider = "ollama"
	cfg.Host = server.URL
	cfg.Retries = 0
	cfg.Concurrency = 2
	cfg.Format = "json"
	cfg.Output = filepath.Join(dir, "out", "report.json")
	cfg.MetricsFile = filepath.Join(dir, "audit.prom")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	cfg.SkipRepoAnalyses = true

	run := auditRun{set: gitctx.FileSet{
		Files: []gitctx.File{
			{Path: "a.go", Content: []byte("package a")},
			{Path: "b.go", Content: []byte("package b")},
		},
		Repo: gitctx.RepoMeta{Name: "demo", Branch: "main"},
	}}

	var stderr bytes.Buffer
	first, err := runAudit(context.Background(), cfg, run, &stderr)
	require.NoError(t, err)
	require.Equal(t, 2, first.Summary.Analyzed)
	require.Equal(t, int64(2), calls.Load())

	second, err := runAudit(context.Background(), cfg, run, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Summary.Cached)
	assert.Equal(t, int64(2), calls.Load(), "second run is served from the cache")

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	var parsed struct {
		Summary audit.Summary `json:"summary"`
		Stats   audit.Stats   `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(data, &parsed), "report is not JSON")
	assert.Equal(t, int64(2), parsed.Stats.Hits)

	metrics, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "repoaudit_cache_lookups_total")
	assert.Contains(t, stderr.String(), "[2/2]", "progress written to stderr")
}

func TestRunAudit_UnknownProvider(t *testing.T) {
	resetFlags()
	cfg := config.Default()
	cfg.Provider = "nope"

	_, err := runAudit(context.Background(), cfg, auditRun{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestOpenCache_DisabledIsNop(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = false

	store, closeStore := openCache(context.Background(), cfg, cache.Scope{Repo: "r"}, nil)
	defer closeStore()

	assert.IsType(t, cache.Nop{}, store)
}

// --- command tests ---

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Contains(t, buf.String(), "repoaudit version "+Version)
}

func TestConfigCommands(t *testing.T) {
	resetFlags()
	flagConfig = filepath.Join(t.TempDir(), "config.yaml")
	var buf bytes.Buffer
	for _, c := range []*cobra.Command{configInitCmd, configSetCmd, configShowCmd} {
		c.SetOut(&buf)
	}

	require.NoError(t, configInitCmd.RunE(configInitCmd, nil))
	require.NoError(t, configSetCmd.RunE(configSetCmd, []string{"concurrency", "3"}))
	require.NoError(t, configSetCmd.RunE(configSetCmd, []string{"api_key", "sk-very-secret"}))
	err := configSetCmd.RunE(configSetCmd, []string{"concurrency", "zero"})
	assert.ErrorIs(t, err, config.ErrInvalid)

	buf.Reset()
	require.NoError(t, configShowCmd.RunE(configShowCmd, nil))
	out := buf.String()
	assert.Contains(t, out, "concurrency: 3")
	assert.NotContains(t, out, "sk-very-secret", "config show leaked the API key")
	assert.Contains(t, out, "timeout: 2m0s", "durations are rendered")
}

func TestCacheCommands(t *testing.T) {
	resetFlags()
	dir := t.TempDir()
	flagConfig = filepath.Join(dir, "config.yaml")
	cacheDir := filepath.Join(dir, "cache")
	require.NoError(t, config.Set(flagConfig, "cache.dir", cacheDir))

	scope := cache.Scope{Repo: "demo", Branch: "main"}
	disk, err := cache.NewDisk(cacheDir, scope)
	require.NoError(t, err)
	for _, content := range []string{"one", "two"} {
		fp, err := fingerprint.OfString(content)
		require.NoError(t, err)
		require.NoError(t, disk.Put(context.Background(), fp, "analysis of "+content))
	}

	var buf bytes.Buffer
	cacheShowCmd.SetOut(&buf)
	require.NoError(t, cacheShowCmd.RunE(cacheShowCmd, nil))
	assert.Contains(t, buf.String(), "Entries:   2")

	buf.Reset()
	cacheClearCmd.SetOut(&buf)
	flagCacheRepo = "other"
	require.NoError(t, cacheClearCmd.RunE(cacheClearCmd, nil))
	assert.Contains(t, buf.String(), "Removed 0 cached analyses.", "clearing another scope")

	buf.Reset()
	flagCacheRepo = ""
	require.NoError(t, cacheClearCmd.RunE(cacheClearCmd, nil))
	assert.Contains(t, buf.String(), "Removed 2 cached analyses.")
}

func TestDiskRoot_OtherBackends(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendS3
	_, err := diskRoot(cfg)
	assert.Error(t, err, "diskRoot() should reject the s3 backend")
}
