package graph

import "context"

// Backend is the minimal surface the orchestrator needs from a graph
// database. The proxy never issues parameterized queries against the
// backend: every query arrives already rendered (and already encrypted)
// as a single Cypher-dialect string, so the interface has exactly one
// query method plus lifecycle and health-check hooks.
type Backend interface {
	// ExecuteQuery runs a single rendered query string against the
	// backend and returns its rows in row-major form, one map per row
	// keyed by return variable name.
	ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error)

	// HealthCheck verifies the backend connection is usable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}
