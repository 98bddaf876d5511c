// Package observability sets up structured logging and run metrics.
//
// NewLogger builds a log/slog logger whose handler stamps every record with
// the service name and, when the context carries one, the audit run ID.
// Metrics registers Prometheus counters for cache lookups and analysis
// outcomes on a private registry; CLI runs export them in the node_exporter
// textfile format with WriteTextfile.
package observability
