package gitctx

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"vendor/lib.go", []string{"vendor/**"}, true},
		{"main.go", []string{"vendor/**"}, false},
		{"foo.gen.go", []string{"**/*.gen.go"}, true},
		{"pkg/foo.gen.go", []string{"**/*.gen.go"}, true},
		{"web/dist/bundle.js", []string{"**/dist/**"}, true},
		{"main.go", []string{"*.go"}, true},
		{"internal/x/main.go", []string{"*.go"}, true},
		{"internal/x/main.go", []string{"cmd/*.go"}, false},
		{"main.go", nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesAny(tt.path, tt.patterns), "MatchesAny(%q, %v)", tt.path, tt.patterns)
	}
}

func TestOptions_Selects(t *testing.T) {
	opts := Options{Include: []string{"**/*.go"}, Exclude: []string{"**/*_test.go"}}
	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"internal/a/a.go", true},
		{"internal/a/a_test.go", false},
		{"README.md", false},
		{"vendor/github.com/x/y.go", false},
		{"node_modules/x/index.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, opts.Selects(tt.path), tt.path)
	}

	opts.IncludeVendors = true
	assert.True(t, opts.Selects("vendor/github.com/x/y.go"), "IncludeVendors should keep vendored files")
}

func TestOptions_Admit(t *testing.T) {
	opts := Options{MaxFileBytes: 20, MaxFileLines: 3}
	tests := []struct {
		name    string
		content []byte
		ok      bool
		reason  string
	}{
		{"ok", []byte("a\nb\nc\n"), true, ""},
		{"no trailing newline", []byte("a\nb\nc"), true, ""},
		{"empty", nil, false, "empty file"},
		{"whitespace only", []byte(" \n\t\n  \r\n"), false, "empty file"},
		{"single newline", []byte("\n"), false, "empty file"},
		{"padded text", []byte("\n  x  \n"), true, ""},
		{"binary", []byte{0x00, 0x01, 0x02, 'a'}, false, ""},
		{"too big", []byte(strings.Repeat("x", 21)), false, "larger than 20 bytes (21)"},
		{"too many lines", []byte("a\nb\nc\nd\n"), false, "more than 3 lines (4)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := opts.Admit("f.txt", tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}

	ok, _ := (Options{}).Admit("big.txt", []byte(strings.Repeat("x\n", 10000)))
	assert.True(t, ok, "zero limits should admit any text file")
}

func TestRepoName(t *testing.T) {
	tests := []struct {
		remote, root, want string
	}{
		{"git@github.com:dshills/repoaudit.git", "/src/x", "repoaudit"},
		{"https://github.com/dshills/repoaudit", "/src/x", "repoaudit"},
		{"https://github.com/dshills/repoaudit/", "/src/x", "repoaudit"},
		{"", "/src/project", "project"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RepoName(tt.remote, tt.root), "RepoName(%q, %q)", tt.remote, tt.root)
	}
}

func TestWithMergeBase(t *testing.T) {
	assert.Equal(t, "main...HEAD", withMergeBase("main..HEAD", true))
	assert.Equal(t, "main...HEAD", withMergeBase("main...HEAD", true))
	assert.Equal(t, "main..HEAD", withMergeBase("main..HEAD", false))
}

type testRepo struct {
	t   *testing.T
	dir string
}

func (r testRepo) run(args ...string) string {
	r.t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test",
		"GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test",
		"GIT_COMMITTER_EMAIL=test@test.com",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(r.t, err, "command %v failed:\n%s", args, out)
	return strings.TrimSpace(string(out))
}

func (r testRepo) write(name, content string) {
	r.t.Helper()
	p := filepath.Join(r.dir, filepath.FromSlash(name))
	require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(r.t, os.WriteFile(p, []byte(content), 0o644))
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func setupTestRepo(t *testing.T) testRepo {
	t.Helper()
	requireGit(t)
	r := testRepo{t: t, dir: t.TempDir()}

	r.run("git", "init")
	r.run("git", "checkout", "-b", "main")

	r.write("main.go", "package main\n\nfunc main() {}\n")
	r.write("util.go", "package main\n\nfunc helper() {}\n")
	r.write("vendor/lib.go", "package vendor\n")
	r.write("empty.txt", "")
	r.write("blank.txt", "\n   \n\t\n")
	r.write("big.txt", strings.Repeat("line\n", 50))
	r.write("README.md", "# Demo\n")

	r.run("git", "add", "-A")
	r.run("git", "commit", "-m", "init")
	return r
}

func TestResolveFiles(t *testing.T) {
	r := setupTestRepo(t)
	repo, err := Open(r.dir)
	require.NoError(t, err)

	set, err := repo.ResolveFiles(Options{MaxFileLines: 10})
	require.NoError(t, err)
	assert.Equal(t, "codebase", set.Mode)

	assert.Equal(t, []string{"README.md", "main.go", "util.go"}, set.Paths())
	assert.Equal(t, "package main\n\nfunc main() {}\n", string(set.Files[1].Content))

	require.Len(t, set.Skipped, 3, "want big.txt, blank.txt and empty.txt skipped")
	assert.Equal(t, "big.txt", set.Skipped[0].Path)
	assert.True(t, strings.HasPrefix(set.Skipped[0].Reason, "more than 10 lines"), set.Skipped[0].Reason)
	assert.Equal(t, Skipped{Path: "blank.txt", Reason: "empty file"}, set.Skipped[1])
	assert.Equal(t, Skipped{Path: "empty.txt", Reason: "empty file"}, set.Skipped[2])

	assert.Equal(t, "main", set.Repo.Branch)
	assert.Len(t, set.Repo.Head, 40)
	assert.Equal(t, filepath.Base(repo.Root()), set.Repo.Name)
}

func TestResolveFiles_IncludeExclude(t *testing.T) {
	r := setupTestRepo(t)
	repo, err := Open(r.dir)
	require.NoError(t, err)

	set, err := repo.ResolveFiles(Options{Include: []string{"*.go"}, Exclude: []string{"util.go"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, set.Paths())
}

func TestResolveChanged(t *testing.T) {
	r := setupTestRepo(t)
	base := r.run("git", "rev-parse", "HEAD")

	r.write("util.go", "package main\n\nfunc helper() int { return 1 }\n")
	r.write("pkg/new.go", "package pkg\n")
	r.run("git", "rm", "-q", "main.go")
	r.run("git", "add", "-A")
	r.run("git", "commit", "-m", "change things")

	repo, err := Open(filepath.Join(r.dir, "vendor"))
	require.NoError(t, err, "Open from subdir")
	set, err := repo.ResolveChanged(base+"..HEAD", false, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"pkg/new.go", "util.go"}, set.Paths())
	assert.Equal(t, "changed", set.Mode)
	assert.Equal(t, base+"..HEAD", set.Range)
}

func TestListCommitsAndSubjects(t *testing.T) {
	r := setupTestRepo(t)
	initSHA := r.run("git", "rev-parse", "HEAD")

	r.write("a.go", "package main\n")
	r.run("git", "add", "a.go")
	r.run("git", "commit", "-m", "add a.go")
	r.write("b.go", "package main\n")
	r.run("git", "add", "b.go")
	r.run("git", "commit", "-m", "add b.go")

	repo, err := Open(r.dir)
	require.NoError(t, err)

	commits, err := repo.ListCommits(initSHA+"..HEAD", false)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "add a.go", commits[0].Subject)
	assert.Equal(t, "add b.go", commits[1].Subject)
	assert.Len(t, commits[0].SHA, 40)

	empty, err := repo.ListCommits("HEAD..HEAD", false)
	require.NoError(t, err)
	assert.Empty(t, empty)

	subjects, err := repo.RecentSubjects(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"add b.go", "add a.go"}, subjects)
}

func TestRecentSubjects_NoCommits(t *testing.T) {
	requireGit(t)
	r := testRepo{t: t, dir: t.TempDir()}
	r.run("git", "init")

	repo, err := Open(r.dir)
	require.NoError(t, err)
	subjects, err := repo.RecentSubjects(5)
	require.NoError(t, err)
	assert.Nil(t, subjects)
	assert.Empty(t, repo.Meta().Head)
}

func TestReadReadmeAndHooksDir(t *testing.T) {
	r := setupTestRepo(t)
	repo, err := Open(r.dir)
	require.NoError(t, err)

	readme, err := repo.ReadReadme()
	require.NoError(t, err)
	assert.Equal(t, "# Demo\n", readme)

	hooks, err := repo.HooksDir()
	require.NoError(t, err)
	assert.Equal(t, "hooks", filepath.Base(hooks))
	assert.True(t, filepath.IsAbs(hooks), hooks)
}

func TestOpen_NotARepo(t *testing.T) {
	requireGit(t)
	_, err := Open(t.TempDir())
	assert.Error(t, err, "expected error outside a repository")
}
