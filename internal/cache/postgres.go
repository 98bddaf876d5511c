package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresBackend = "postgres"

const schema = `CREATE TABLE IF NOT EXISTS analysis_cache (
	scope       TEXT        NOT NULL,
	fingerprint TEXT        NOT NULL,
	analysis    TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scope, fingerprint)
)`

const (
	selectEntry = `SELECT analysis FROM analysis_cache WHERE scope = $1 AND fingerprint = $2`
	upsertEntry = `INSERT INTO analysis_cache (scope, fingerprint, analysis)
VALUES ($1, $2, $3)
ON CONFLICT (scope, fingerprint) DO UPDATE
SET analysis = EXCLUDED.analysis, created_at = now()
WHERE analysis_cache.analysis IS DISTINCT FROM EXCLUDED.analysis`
)

// Postgres stores entries as rows of the analysis_cache table. Upserts are
// single statements, so concurrent writers of one key are serialized by the
// database.
type Postgres struct {
	db    *sql.DB
	scope string

	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres connects to dsn with the pgx driver and returns a store for
// scope.
func OpenPostgres(ctx context.Context, dsn string, scope Scope) (*Postgres, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPostgres(db, scope), nil
}

// NewPostgres returns a store for scope on an existing connection pool.
func NewPostgres(db *sql.DB, scope Scope) *Postgres {
	return &Postgres{db: db, scope: scope.Name()}
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, schema)
	})
	return p.schemaErr
}

func (p *Postgres) Get(ctx context.Context, fp string) (string, bool, error) {
	if err := checkFingerprint(postgresBackend, "get", fp); err != nil {
		return "", false, err
	}
	if err := p.ensureSchema(ctx); err != nil {
		return "", false, &Error{Op: "get", Backend: postgresBackend, Fingerprint: fp, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	var analysis string
	err := p.db.QueryRowContext(ctx, selectEntry, p.scope, fp).Scan(&analysis)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &Error{Op: "get", Backend: postgresBackend, Fingerprint: fp, Err: err}
	}
	return analysis, true, nil
}

func (p *Postgres) Put(ctx context.Context, fp, analysis string) error {
	if err := checkFingerprint(postgresBackend, "put", fp); err != nil {
		return err
	}
	if err := p.ensureSchema(ctx); err != nil {
		return &Error{Op: "put", Backend: postgresBackend, Fingerprint: fp, Err: fmt.Errorf("ensure schema: %w", err)}
	}
	if _, err := p.db.ExecContext(ctx, upsertEntry, p.scope, fp, analysis); err != nil {
		return &Error{Op: "put", Backend: postgresBackend, Fingerprint: fp, Err: err}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }
