// Package cache persists analysis results keyed by content fingerprint.
//
// A Store maps a fingerprint (see package fingerprint) to the analysis text
// produced for that content. Every store is scoped to one repository and
// branch, or one pull request, so audits of unrelated code never share
// entries. Three durable backends are provided: Disk (the default, one JSON
// file per entry), S3 (any S3-compatible object store through minio-go) and
// Postgres (one row per entry). LRU layers an in-process read cache over any
// of them.
//
// Stores only ever hold successful analyses. Entries do not expire and the
// audit engine never deletes them; removal is an administrative action
// (Clear, or the "repoaudit cache clear" command).
//
// Storage failures are returned as *Error values matching ErrCache. Callers
// are expected to log them and carry on as if the lookup had missed.
package cache
