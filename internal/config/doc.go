// Package config loads and merges repoaudit configuration from multiple
// sources.
//
// Precedence (highest to lowest):
//  1. CLI flags, passed to [Load] as overrides
//  2. Environment variables (REPOAUDIT_PROVIDER, REPOAUDIT_CACHE_BACKEND, ...)
//  3. Config file ($XDG_CONFIG_HOME/repoaudit/config.yaml)
//  4. Built-in defaults
//
// A .env file in the working directory is loaded into the environment
// first by [LoadDotEnv]. Use [Init] to write a default config file and
// [Set] to update a single key in it.
package config
