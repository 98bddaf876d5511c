package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/repoaudit/internal/cache"
	"github.com/dshills/repoaudit/internal/fingerprint"
	"github.com/dshills/repoaudit/internal/observability"
)

// Analyzer produces an analysis of content following instruction.
// *providers.Client satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, content, instruction string) (string, error)
}

// Payload is what the Analyzer receives for one file.
type Payload struct {
	Content     string
	Instruction string
	// Private marks content that was altered before sending, such as a
	// redacted file. Its analysis does not describe the file's bytes, so it
	// is never read from or written to the cache and never shared with
	// other paths.
	Private bool
}

// InstructionFunc prepares the Payload sent to the Analyzer for a file.
type InstructionFunc func(u FileUnit) Payload

// Options configures a Scheduler.
type Options struct {
	Cache       cache.Store
	Client      Analyzer
	Instruction InstructionFunc
	Concurrency int
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Progress    ProgressFunc
}

// Scheduler runs per-file analysis with bounded concurrency.
type Scheduler struct {
	opts Options
	log  *slog.Logger

	hits        atomic.Int64
	misses      atomic.Int64
	successes   atomic.Int64
	failures    atomic.Int64
	cacheErrors atomic.Int64
	clientCalls atomic.Int64
}

// NewScheduler validates opts. A non-positive Concurrency or a missing
// Cache or Client is a *ConfigurationError.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Concurrency <= 0 {
		return nil, &ConfigurationError{Field: "concurrency", Reason: fmt.Sprintf("must be at least 1, got %d", opts.Concurrency)}
	}
	if opts.Cache == nil {
		return nil, &ConfigurationError{Field: "cache", Reason: "is required"}
	}
	if opts.Client == nil {
		return nil, &ConfigurationError{Field: "client", Reason: "is required"}
	}
	if opts.Instruction == nil {
		opts.Instruction = func(u FileUnit) Payload {
			return Payload{
				Content:     string(u.Content),
				Instruction: FileInstruction(FilePrompt{Path: u.Path, Content: u.Content}),
			}
		}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{opts: opts, log: log}, nil
}

// Stats returns counters accumulated over every Run of this scheduler.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Successes:   s.successes.Load(),
		Failures:    s.failures.Load(),
		CacheErrors: s.cacheErrors.Load(),
		ClientCalls: s.clientCalls.Load(),
	}
}

// job is one Analyzer call shared by every unit with the same fingerprint.
// A private job has exactly one unit.
type job struct {
	fp      string
	units   []FileUnit
	payload Payload
}

// Run analyzes units and returns one Outcome per path. Per-file failures are
// recorded, not returned; the only error is a duplicate path.
func (s *Scheduler) Run(ctx context.Context, units []FileUnit) (map[string]Outcome, error) {
	outcomes := make(map[string]Outcome, len(units))
	if len(units) == 0 {
		return outcomes, nil
	}
	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		if _, dup := seen[u.Path]; dup {
			return nil, invariantf("duplicate path %q in run", u.Path)
		}
		seen[u.Path] = struct{}{}
	}

	var (
		mu        sync.Mutex
		completed int
		total     = len(units)
	)
	record := func(u FileUnit, o Outcome) {
		switch o.Kind {
		case KindSuccess:
			s.successes.Add(1)
		case KindCacheHit:
			s.hits.Add(1)
		case KindFailure:
			s.failures.Add(1)
			s.log.WarnContext(ctx, "analysis failed", "path", u.Path, "reason", o.Reason)
		}
		s.opts.Metrics.Outcome(string(o.Kind))

		mu.Lock()
		defer mu.Unlock()
		outcomes[u.Path] = o
		completed++
		s.log.DebugContext(ctx, "file complete", "path", u.Path, "kind", o.Kind, "completed", completed, "total", total)
		if s.opts.Progress != nil {
			s.opts.Progress(Progress{Completed: completed, Total: total, Path: u.Path, Kind: o.Kind})
		}
	}

	// Fingerprints and cache reads happen here, outside the worker pool.
	var (
		jobs  []*job
		byKey = make(map[string]*job)
	)
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			record(u, Failure(err.Error()))
			continue
		}
		fp, err := fingerprint.Of(u.Content)
		if err != nil {
			record(u, Failure(err.Error()))
			continue
		}
		payload := s.opts.Instruction(u)
		if payload.Private {
			s.misses.Add(1)
			jobs = append(jobs, &job{fp: fp, units: []FileUnit{u}, payload: payload})
			continue
		}
		if text, ok := s.lookup(ctx, fp); ok {
			o := CacheHit(text)
			o.Fingerprint = fp
			record(u, o)
			continue
		}
		s.misses.Add(1)
		if j, ok := byKey[fp]; ok {
			j.units = append(j.units, u)
			continue
		}
		j := &job{fp: fp, units: []FileUnit{u}, payload: payload}
		byKey[fp] = j
		jobs = append(jobs, j)
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			o := s.analyze(ctx, j)
			for _, u := range j.units {
				record(u, o)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

func (s *Scheduler) lookup(ctx context.Context, fp string) (string, bool) {
	text, ok, err := s.opts.Cache.Get(ctx, fp)
	if err != nil {
		s.cacheErrors.Add(1)
		s.opts.Metrics.CacheError("get")
		s.log.WarnContext(ctx, "cache lookup failed, treating as miss", "fingerprint", fp, "error", err)
		s.opts.Metrics.CacheLookup(false)
		return "", false
	}
	s.opts.Metrics.CacheLookup(ok)
	return text, ok
}

func (s *Scheduler) analyze(ctx context.Context, j *job) Outcome {
	if err := ctx.Err(); err != nil {
		return Failure(err.Error())
	}

	s.clientCalls.Add(1)
	start := time.Now()
	text, err := s.opts.Client.Analyze(ctx, j.payload.Content, j.payload.Instruction)
	s.opts.Metrics.AnalysisSeconds(time.Since(start).Seconds())
	if err != nil {
		return Failure(err.Error())
	}
	if strings.TrimSpace(text) == "" {
		return Failure("empty analysis")
	}

	if !j.payload.Private {
		if err := s.opts.Cache.Put(ctx, j.fp, text); err != nil {
			s.cacheErrors.Add(1)
			s.opts.Metrics.CacheError("put")
			s.log.WarnContext(ctx, "cache write failed", "fingerprint", j.fp, "path", j.units[0].Path, "error", err)
		}
	}
	o := Success(text)
	o.Fingerprint = j.fp
	return o
}
