package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/repoaudit/internal/gitctx"
)

const (
	defaultAPIURL = "https://api.github.com"
	perPage       = 100
	// maxPages bounds pagination; the files endpoint returns at most 3000.
	maxPages     = 30
	fetchWorkers = 4
)

var (
	// ErrNotFound matches a 404 from the API.
	ErrNotFound = errors.New("not found")
	// ErrAuth matches rejected or missing credentials.
	ErrAuth = errors.New("github authentication failed")
)

// Client provides access to the GitHub REST API.
type Client struct {
	token   string
	apiURL  string
	httpCli *http.Client
}

// NewClient creates a client. An empty token falls back to GITHUB_TOKEN and
// an empty apiURL to GITHUB_API_URL, then the public API.
func NewClient(token, apiURL string) (*Client, error) {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, fmt.Errorf("%w: GITHUB_TOKEN environment variable is not set", ErrAuth)
	}
	if apiURL == "" {
		apiURL = os.Getenv("GITHUB_API_URL")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		token:   token,
		apiURL:  strings.TrimRight(apiURL, "/"),
		httpCli: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// PullRequest is the subset of pull request metadata the audit uses.
type PullRequest struct {
	Number  int
	Title   string
	HeadRef string
	HeadSHA string
	BaseRef string
}

// PullRequest fetches metadata for a pull request.
func (c *Client) PullRequest(ctx context.Context, owner, repo string, number int) (PullRequest, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, repo, number), nil, "application/vnd.github+json", nil)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return PullRequest{}, fmt.Errorf("PR #%d not found in %s/%s: %w", number, owner, repo, err)
		}
		return PullRequest{}, err
	}
	var raw struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		Head   struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return PullRequest{}, fmt.Errorf("parsing pull request: %w", err)
	}
	return PullRequest{
		Number:  raw.Number,
		Title:   raw.Title,
		HeadRef: raw.Head.Ref,
		HeadSHA: raw.Head.SHA,
		BaseRef: raw.Base.Ref,
	}, nil
}

// PRFile represents a file changed in a pull request.
type PRFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// PRFiles lists every file changed in a pull request, following pagination.
func (c *Client) PRFiles(ctx context.Context, owner, repo string, number int) ([]PRFile, error) {
	var files []PRFile
	for page := 1; page <= maxPages; page++ {
		q := url.Values{}
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))
		body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/pulls/%d/files", owner, repo, number), q, "application/vnd.github+json", nil)
		if err != nil {
			return nil, fmt.Errorf("fetching PR files: %w", err)
		}
		var batch []PRFile
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, fmt.Errorf("parsing PR files: %w", err)
		}
		files = append(files, batch...)
		if len(batch) < perPage {
			break
		}
	}
	return files, nil
}

// FileContent returns the raw content of path at ref.
func (c *Client) FileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path)), q, "application/vnd.github.raw", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	return body, nil
}

// Readme returns the repository README at ref, or "" when there is none.
func (c *Client) Readme(ctx context.Context, owner, repo, ref string) (string, error) {
	q := url.Values{}
	if ref != "" {
		q.Set("ref", ref)
	}
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s/readme", owner, repo), q, "application/vnd.github.raw", nil)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("fetching README: %w", err)
	}
	return string(body), nil
}

// PostComment adds a comment to a pull request's conversation.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, text string) error {
	payload, err := json.Marshal(map[string]string{"body": text})
	if err != nil {
		return fmt.Errorf("marshaling comment: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number), nil, "application/vnd.github+json", payload); err != nil {
		return fmt.Errorf("posting comment: %w", err)
	}
	return nil
}

// ResolvePR fetches the files changed in a pull request at its head commit.
// Removed files are ignored; the rest pass through opts like local files.
func (c *Client) ResolvePR(ctx context.Context, owner, repo string, number int, opts gitctx.Options) (gitctx.FileSet, error) {
	start := time.Now()
	pr, err := c.PullRequest(ctx, owner, repo, number)
	if err != nil {
		return gitctx.FileSet{}, err
	}
	changed, err := c.PRFiles(ctx, owner, repo, number)
	if err != nil {
		return gitctx.FileSet{}, err
	}

	set := gitctx.FileSet{
		Mode:  "github",
		Range: pr.BaseRef + "..." + pr.HeadRef,
		Repo: gitctx.RepoMeta{
			Name:   owner + "/" + repo,
			Head:   pr.HeadSHA,
			Branch: pr.HeadRef,
			Remote: fmt.Sprintf("github.com/%s/%s", owner, repo),
			PR:     number,
		},
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(fetchWorkers)
	for _, f := range changed {
		if f.Status == "removed" || !opts.Selects(f.Filename) {
			continue
		}
		g.Go(func() error {
			data, err := c.FileContent(ctx, owner, repo, f.Filename, pr.HeadSHA)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, ErrAuth) {
					return err
				}
				set.Skipped = append(set.Skipped, gitctx.Skipped{Path: f.Filename, Reason: "unreadable: " + err.Error()})
				return nil
			}
			admitted, reason := opts.Admit(f.Filename, data)
			switch {
			case admitted:
				set.Files = append(set.Files, gitctx.File{Path: f.Filename, Content: data})
			case reason != "":
				set.Skipped = append(set.Skipped, gitctx.Skipped{Path: f.Filename, Reason: reason})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return gitctx.FileSet{}, err
	}

	sort.Slice(set.Files, func(i, j int) bool { return set.Files[i].Path < set.Files[j].Path })
	sort.Slice(set.Skipped, func(i, j int) bool { return set.Skipped[i].Path < set.Skipped[j].Path })
	set.ResolveMs = time.Since(start).Milliseconds()
	return set, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, accept string, payload []byte) ([]byte, error) {
	u := c.apiURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(string(data)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/\s]+?)(?:\.git)?/?$`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/\s]+?)(?:\.git)?$`)
	slugRe        = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)
)

// DetectRepo parses owner/repo from the origin remote of the repository at
// dir.
func DetectRepo(dir string) (owner, repo string, err error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}

// ParseSlug splits "owner/repo".
func ParseSlug(slug string) (owner, repo string, err error) {
	m := slugRe.FindStringSubmatch(strings.TrimSpace(slug))
	if m == nil {
		return "", "", fmt.Errorf("invalid repository %q: want owner/repo", slug)
	}
	return m[1], m[2], nil
}
