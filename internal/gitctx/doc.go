// Package gitctx resolves the set of files to audit from a git repository.
//
// [Repo.ResolveFiles] selects every tracked file; [Repo.ResolveChanged]
// selects files added, copied, modified, or renamed in a revision range.
// Both apply include/exclude globs, drop vendored and binary files, and
// move empty or oversized files to the skipped list with a reason.
//
// [Repo.Meta] and [Repo.RecentSubjects] supply the repository metadata and
// commit context used in prompts and as the cache scope.
package gitctx
