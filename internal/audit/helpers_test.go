package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// memStore is an in-memory cache.Store with injectable failures.
type memStore struct {
	mu      sync.Mutex
	entries map[string]string
	getErr  error
	putErr  error
	puts    int
}

func newMemStore() *memStore { return &memStore{entries: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, fp string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	text, ok := m.entries[fp]
	return text, ok, nil
}

func (m *memStore) Put(_ context.Context, fp, analysis string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.entries[fp] = analysis
	return nil
}

func (m *memStore) has(fp string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[fp]
	return ok
}

var errModel = errors.New("model unavailable")

// fakeAnalyzer answers "analysis of <content>" unless content is listed in
// fail. It records calls and the peak number of concurrent calls.
type fakeAnalyzer struct {
	fail  map[string]bool
	delay time.Duration
	reply func(content, instruction string) string

	calls    atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64

	mu     sync.Mutex
	byText map[string]int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, content, instruction string) (string, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	if f.byText == nil {
		f.byText = make(map[string]int)
	}
	f.byText[content]++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail[content] {
		return "", fmt.Errorf("fake: %w", errModel)
	}
	if f.reply != nil {
		return f.reply(content, instruction), nil
	}
	return "analysis of " + content, nil
}

func (f *fakeAnalyzer) callsFor(content string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byText[content]
}

func units(pairs ...string) []FileUnit {
	out := make([]FileUnit, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, FileUnit{Path: pairs[i], Content: []byte(pairs[i+1])})
	}
	return out
}
