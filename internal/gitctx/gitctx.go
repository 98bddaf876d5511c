package gitctx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Name   string
	Root   string
	Head   string
	Branch string
	Remote string
	PR     int
}

// File is a resolved file with its content.
type File struct {
	Path    string
	Content []byte
}

// Skipped is a file left out of the audit.
type Skipped struct {
	Path   string
	Reason string
}

// FileSet is the result of resolving files.
type FileSet struct {
	Files     []File
	Skipped   []Skipped
	Mode      string
	Range     string
	Repo      RepoMeta
	ResolveMs int64
}

// Paths returns the resolved file paths in order.
func (s FileSet) Paths() []string {
	out := make([]string, len(s.Files))
	for i, f := range s.Files {
		out[i] = f.Path
	}
	return out
}

// Repo runs git commands against one working tree.
type Repo struct {
	root string
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, error) {
	if dir == "" {
		dir = "."
	}
	root, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("not a git repository: %w", err)
	}
	return &Repo{root: strings.TrimSpace(root)}, nil
}

// Root returns the top-level directory of the working tree.
func (r *Repo) Root() string { return r.root }

// Meta collects repository metadata. Missing pieces, such as HEAD in a
// repository with no commits, are left empty.
func (r *Repo) Meta() RepoMeta {
	meta := RepoMeta{Root: r.root}
	if head, err := r.git("rev-parse", "HEAD"); err == nil {
		meta.Head = strings.TrimSpace(head)
	}
	if branch, err := r.git("rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		meta.Branch = strings.TrimSpace(branch)
	}
	if remote, err := r.git("config", "--get", "remote.origin.url"); err == nil {
		meta.Remote = strings.TrimSpace(remote)
	}
	meta.Name = RepoName(meta.Remote, r.root)
	return meta
}

// RepoName derives a short repository name from a remote URL, falling back
// to the base name of root.
func RepoName(remote, root string) string {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), "/")
	if remote != "" {
		if i := strings.LastIndexAny(remote, "/:"); i >= 0 {
			remote = remote[i+1:]
		}
		if name := strings.TrimSuffix(remote, ".git"); name != "" {
			return name
		}
	}
	return filepath.Base(root)
}

// ResolveFiles returns every tracked file that passes opts, sorted by path.
func (r *Repo) ResolveFiles(opts Options) (FileSet, error) {
	start := time.Now()
	out, err := r.git("ls-files", "-z")
	if err != nil {
		return FileSet{}, fmt.Errorf("git ls-files: %w", err)
	}
	set := r.load(splitPaths(out), opts)
	set.Mode = "codebase"
	set.ResolveMs = time.Since(start).Milliseconds()
	return set, nil
}

// ResolveChanged returns files added, copied, modified, or renamed in
// revRange. If mergeBase is true, ".." is converted to "..." so the range
// is compared against the merge base.
func (r *Repo) ResolveChanged(revRange string, mergeBase bool, opts Options) (FileSet, error) {
	start := time.Now()
	diffRange := withMergeBase(revRange, mergeBase)
	out, err := r.git("diff", "-z", "--name-only", "--diff-filter=ACMR", diffRange)
	if err != nil {
		return FileSet{}, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	set := r.load(splitPaths(out), opts)
	set.Mode = "changed"
	set.Range = revRange
	set.ResolveMs = time.Since(start).Milliseconds()
	return set, nil
}

func (r *Repo) load(paths []string, opts Options) FileSet {
	set := FileSet{Repo: r.Meta()}
	sort.Strings(paths)
	for _, p := range paths {
		if !opts.Selects(p) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.root, filepath.FromSlash(p)))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				set.Skipped = append(set.Skipped, Skipped{Path: p, Reason: "unreadable: " + err.Error()})
			}
			continue
		}
		admitted, reason := opts.Admit(p, data)
		switch {
		case admitted:
			set.Files = append(set.Files, File{Path: p, Content: data})
		case reason != "":
			set.Skipped = append(set.Skipped, Skipped{Path: p, Reason: reason})
		}
	}
	return set
}

// CommitInfo holds a commit SHA and its subject line.
type CommitInfo struct {
	SHA     string
	Subject string
}

// ListCommits returns commits in a revision range, oldest first.
func (r *Repo) ListCommits(revRange string, mergeBase bool) ([]CommitInfo, error) {
	listRange := withMergeBase(revRange, mergeBase)

	// Output format: "commit <sha>\n<subject>\n" per commit.
	out, err := r.git("rev-list", "--reverse", "--format=%s", listRange)
	if err != nil {
		return nil, fmt.Errorf("git rev-list %s: %w", revRange, err)
	}

	lines := splitLines(out)
	var commits []CommitInfo
	for i := 0; i < len(lines); i++ {
		sha, ok := strings.CutPrefix(lines[i], "commit ")
		if !ok {
			continue
		}
		var subject string
		if i+1 < len(lines) && !strings.HasPrefix(lines[i+1], "commit ") {
			subject = lines[i+1]
			i++
		}
		commits = append(commits, CommitInfo{SHA: sha, Subject: subject})
	}
	return commits, nil
}

// RecentSubjects returns up to n commit subjects reachable from HEAD,
// newest first. A repository without commits has none.
func (r *Repo) RecentSubjects(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if _, err := r.git("rev-parse", "--verify", "--quiet", "HEAD"); err != nil {
		return nil, nil
	}
	out, err := r.git("log", fmt.Sprintf("-n%d", n), "--format=%s")
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	return splitLines(out), nil
}

var readmeNames = []string{"README.md", "README", "README.rst", "README.txt", "readme.md", "Readme.md"}

// ReadReadme returns the README at the repository root, or "" when there
// is none.
func (r *Repo) ReadReadme() (string, error) {
	for _, name := range readmeNames {
		data, err := os.ReadFile(filepath.Join(r.root, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
	}
	return "", nil
}

// HooksDir returns the directory git runs hooks from.
func (r *Repo) HooksDir() (string, error) {
	out, err := r.git("rev-parse", "--git-path", "hooks")
	if err != nil {
		return "", fmt.Errorf("locating hooks dir: %w", err)
	}
	dir := strings.TrimSpace(out)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.root, dir)
	}
	return dir, nil
}

func withMergeBase(revRange string, mergeBase bool) string {
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		return strings.Replace(revRange, "..", "...", 1)
	}
	return revRange
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitPaths splits NUL-separated path output from git's -z mode.
func splitPaths(out string) []string {
	var paths []string
	for _, p := range strings.Split(out, "\x00") {
		if p != "" {
			paths = append(paths, path.Clean(p))
		}
	}
	return paths
}

func (r *Repo) git(args ...string) (string, error) {
	return gitOutput(r.root, args...)
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}
