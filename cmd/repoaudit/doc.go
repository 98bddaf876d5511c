// Repoaudit is a CLI that analyzes the files of a git repository with LLM
// providers, caches each analysis by content fingerprint, and assembles a
// per-file report with whole-repository sections.
//
// Usage:
//
//	repoaudit audit codebase                    # audit all tracked files
//	repoaudit audit changed origin/main..HEAD   # audit files changed in a range
//	repoaudit audit github owner/repo 42 --post # audit a pull request
//	repoaudit cache show                        # cache statistics
//	repoaudit config init                       # write a default config file
//
// Exit codes: 0 success, 1 some files failed (with --fail-on-error),
// 2 usage or configuration error, 3 authentication error, 4 runtime error.
package main
