// Package audit runs the per-file analysis phase of a repository audit and
// assembles its report.
//
// The Scheduler fingerprints every FileUnit, answers what it can from the
// result cache, and sends the remaining files to an Analyzer on a bounded
// pool of workers. Cache hits never occupy a worker. Files with identical
// content are analyzed once per run. A file whose analysis fails is recorded
// as a Failure and never cached; it does not affect any other file. Run
// returns only after every file has a terminal Outcome.
//
// Assemble turns the outcomes into a Report in the caller's file order,
// rendering failures as visible placeholders and appending the
// whole-repository sections (test strategy, README suggestions, updated
// README) in a fixed order.
//
// Engine ties these together with prompt construction, privacy redaction and
// the whole-repository analyses for the CLI.
package audit
