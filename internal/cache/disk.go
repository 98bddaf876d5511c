package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const diskBackend = "disk"

// Disk stores one JSON file per entry under <root>/<scope>/<fingerprint>.json.
type Disk struct {
	root string
	dir  string
}

// NewDisk opens a disk store for scope. If root is empty, the default cache
// directory is used.
func NewDisk(root string, scope Scope) (*Disk, error) {
	if root == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		root = d
	}
	dir := filepath.Join(root, scope.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &Error{Op: "open", Backend: diskBackend, Err: fmt.Errorf("creating cache directory: %w", err)}
	}
	return &Disk{root: root, dir: dir}, nil
}

// Get reads the entry for fp. A missing file is a miss; an unreadable or
// corrupt file is an error.
func (d *Disk) Get(_ context.Context, fp string) (string, bool, error) {
	if err := checkFingerprint(diskBackend, "get", fp); err != nil {
		return "", false, err
	}
	entry, err := d.read(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Op: "get", Backend: diskBackend, Fingerprint: fp, Err: err}
	}
	return entry.Analysis, true, nil
}

// Put writes the entry through a temporary file and a rename, so concurrent
// readers observe either the previous entry or the new one.
func (d *Disk) Put(_ context.Context, fp, analysis string) error {
	if err := checkFingerprint(diskBackend, "put", fp); err != nil {
		return err
	}
	if existing, err := d.read(fp); err == nil && existing.Analysis == analysis {
		return nil
	}

	data, err := json.Marshal(Entry{Fingerprint: fp, Analysis: analysis, CreatedAt: time.Now().UTC()})
	if err != nil {
		return &Error{Op: "put", Backend: diskBackend, Fingerprint: fp, Err: fmt.Errorf("marshaling cache entry: %w", err)}
	}
	if err := writeFileAtomic(d.entryPath(fp), data); err != nil {
		return &Error{Op: "put", Backend: diskBackend, Fingerprint: fp, Err: err}
	}
	return nil
}

// Dir returns the scoped directory holding this store's entries.
func (d *Disk) Dir() string { return d.dir }

// Root returns the cache root shared by all scopes.
func (d *Disk) Root() string { return d.root }

func (d *Disk) read(fp string) (Entry, error) {
	data, err := os.ReadFile(d.entryPath(fp))
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("corrupt cache entry: %w", err)
	}
	if entry.Fingerprint != fp {
		return Entry{}, fmt.Errorf("cache entry fingerprint mismatch: %s", entry.Fingerprint)
	}
	return entry, nil
}

func (d *Disk) entryPath(fp string) string {
	return filepath.Join(d.dir, fp+".json")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("renaming entry: %w", err)
	}
	return nil
}

// Stats summarizes the entries found under a cache root.
type Stats struct {
	Dir        string    `json:"dir"`
	Scopes     int       `json:"scopes"`
	Entries    int       `json:"entries"`
	TotalBytes int64     `json:"totalBytes"`
	Oldest     time.Time `json:"oldest,omitempty"`
	Newest     time.Time `json:"newest,omitempty"`
}

// RootStats walks every scope under root.
func RootStats(root string) (Stats, error) {
	stats := Stats{Dir: root}
	scopes, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading cache directory: %w", err)
	}
	for _, s := range scopes {
		if !s.IsDir() {
			continue
		}
		stats.Scopes++
		entries, err := os.ReadDir(filepath.Join(root, s.Name()))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if filepath.Ext(e.Name()) != ".json" {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			stats.Entries++
			stats.TotalBytes += info.Size()
			mod := info.ModTime()
			if stats.Oldest.IsZero() || mod.Before(stats.Oldest) {
				stats.Oldest = mod
			}
			if mod.After(stats.Newest) {
				stats.Newest = mod
			}
		}
	}
	return stats, nil
}

// Clear removes every entry under root, or only the named scope when scope
// is non-empty. It returns the number of entries removed.
func Clear(root, scope string) (int, error) {
	dirs := []string{}
	if scope != "" {
		dirs = append(dirs, filepath.Join(root, scope))
	} else {
		scopes, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, fmt.Errorf("reading cache directory: %w", err)
		}
		for _, s := range scopes {
			if s.IsDir() {
				dirs = append(dirs, filepath.Join(root, s.Name()))
			}
		}
	}

	var removed int
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("reading cache directory: %w", err)
		}
		for _, e := range entries {
			if filepath.Ext(e.Name()) != ".json" {
				continue
			}
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
		os.Remove(dir)
	}
	return removed, nil
}

// DefaultDir returns the per-user cache root for repoaudit.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "repoaudit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "repoaudit"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "repoaudit", "cache"), nil
		}
		return filepath.Join(home, "AppData", "Local", "repoaudit", "cache"), nil
	default:
		return filepath.Join(home, ".cache", "repoaudit"), nil
	}
}
