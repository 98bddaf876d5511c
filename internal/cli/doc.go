// Package cli wires together the Cobra command tree for the repoaudit binary.
//
// It defines the root command and all subcommands (audit, cache, config,
// models, hook, version), binds flags, reads configuration, invokes the
// audit engine, and returns deterministic exit codes for CI gating.
package cli
