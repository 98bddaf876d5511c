package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries is the LRU size used when none is configured.
const DefaultMemoryEntries = 1024

const lockStripes = 64

// LRU keeps recently used entries of another Store in memory. Writes go to
// the inner store first and are only remembered once they succeed. Writes
// and read-through fills of one fingerprint are serialized so memory always
// holds the text the inner store accepted last.
type LRU struct {
	inner   Store
	entries *lru.Cache[string, string]
	locks   [lockStripes]sync.Mutex
}

// NewLRU wraps inner with an in-memory cache holding up to size entries.
func NewLRU(inner Store, size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &LRU{inner: inner, entries: entries}, nil
}

func (l *LRU) Get(ctx context.Context, fp string) (string, bool, error) {
	if v, ok := l.entries.Get(fp); ok {
		return v, true, nil
	}
	mu := l.lockFor(fp)
	mu.Lock()
	defer mu.Unlock()
	if v, ok := l.entries.Get(fp); ok {
		return v, true, nil
	}
	v, ok, err := l.inner.Get(ctx, fp)
	if err != nil || !ok {
		return "", false, err
	}
	l.entries.Add(fp, v)
	return v, true, nil
}

func (l *LRU) Put(ctx context.Context, fp, analysis string) error {
	mu := l.lockFor(fp)
	mu.Lock()
	defer mu.Unlock()
	if v, ok := l.entries.Peek(fp); ok && v == analysis {
		return nil
	}
	if err := l.inner.Put(ctx, fp, analysis); err != nil {
		l.entries.Remove(fp)
		return err
	}
	l.entries.Add(fp, analysis)
	return nil
}

func (l *LRU) lockFor(fp string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = io.WriteString(h, fp)
	return &l.locks[h.Sum32()%lockStripes]
}

// Len reports how many entries are held in memory.
func (l *LRU) Len() int { return l.entries.Len() }

// Close closes the inner store when it holds resources.
func (l *LRU) Close() error {
	if c, ok := l.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
