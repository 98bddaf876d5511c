package cache

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendDisk     = "disk"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Backend       string
	Dir           string
	S3            S3Options
	PostgresDSN   string
	MemoryEntries int
}

// Open returns the configured backend for scope behind an LRU front.
func Open(ctx context.Context, opts Options, scope Scope) (Store, error) {
	var (
		inner Store
		err   error
	)
	switch opts.Backend {
	case "", BackendDisk:
		inner, err = NewDisk(opts.Dir, scope)
	case BackendS3:
		inner, err = NewS3(opts.S3, scope)
	case BackendPostgres:
		inner, err = OpenPostgres(ctx, opts.PostgresDSN, scope)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewLRU(inner, opts.MemoryEntries)
}
