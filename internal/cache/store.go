package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/repoaudit/internal/fingerprint"
)

// ErrCache matches every storage-layer error returned by a Store.
var ErrCache = errors.New("cache error")

// Error describes a failed cache operation.
type Error struct {
	Op          string
	Backend     string
	Fingerprint string
	Err         error
}

func (e *Error) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("cache %s %s %s: %v", e.Backend, e.Op, e.Fingerprint, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrCache, e.Err} }

// Entry is the persisted form of one cached analysis.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	Analysis    string    `json:"analysis"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is a fingerprint-keyed result cache. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the analysis stored for fp. A miss returns ok == false
	// and a nil error.
	Get(ctx context.Context, fp string) (analysis string, ok bool, err error)
	// Put stores analysis under fp. Storing the same text again is a
	// no-op; storing different text replaces the entry atomically.
	Put(ctx context.Context, fp, analysis string) error
}

// Scope identifies the repository and branch (or pull request) an audit
// belongs to.
type Scope struct {
	Repo   string
	Branch string
	PR     int
}

// Name renders the scope as a single path- and key-safe segment.
func (s Scope) Name() string {
	repo := SafeName(s.Repo)
	if repo == "" {
		repo = "default"
	}
	branch := SafeName(s.Branch)
	if branch == "" {
		branch = "default"
	}
	name := repo + "_" + branch
	if s.PR > 0 {
		name += fmt.Sprintf("_pr%d", s.PR)
	}
	return name
}

var unsafeChars = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_",
	"|", "_", "?", "_", "*", "_", "@", "_", " ", "_",
)

// SafeName replaces characters that are unsafe in file and object names.
func SafeName(s string) string {
	s = unsafeChars.Replace(strings.TrimSpace(s))
	if s == "." || s == ".." {
		return strings.Repeat("_", len(s))
	}
	return s
}

// Nop is a Store that never hits and discards writes. It backs --no-cache runs.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) Put(context.Context, string, string) error { return nil }

func checkFingerprint(backend, op, fp string) error {
	if !fingerprint.Valid(fp) {
		return &Error{Op: op, Backend: backend, Fingerprint: fp, Err: errors.New("malformed fingerprint")}
	}
	return nil
}
