// Package redact scrubs file content before it leaves the machine.
//
// A Policy replaces likely secrets (API keys, JWTs, private key blocks, AWS
// credentials, bearer tokens, database URLs with passwords, and
// provider-specific tokens) with [REDACTED], and replaces the whole content
// of files whose paths match configured globs. Redaction applies only to
// what is sent to a model; fingerprints are computed on the original bytes.
package redact
