package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jBackend wraps the Neo4j driver and implements Backend for the
// proxy's single-rendered-query dispatch model.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
}

// NewNeo4jBackend dials Neo4j and verifies connectivity before returning,
// so that a bad URI or bad credentials fail the proxy at startup instead
// of on the first client request.
func NewNeo4jBackend(ctx context.Context, uri, user, password, database string) (*Neo4jBackend, error) {
	if uri == "" || user == "" || password == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%s, user=%s", uri, user)
	}
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri,
		neo4j.BasicAuth(user, password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = 50
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}

	logger := slog.Default().With("component", "neo4j")
	logger.Info("neo4j backend connected", "uri", uri, "user", user, "database", database, "max_pool_size", 50)

	return &Neo4jBackend{driver: driver, logger: logger, database: database}, nil
}

// Close closes the underlying driver connection.
func (b *Neo4jBackend) Close(ctx context.Context) error {
	if err := b.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	b.logger.Info("neo4j backend closed")
	return nil
}

// HealthCheck verifies Neo4j connectivity.
func (b *Neo4jBackend) HealthCheck(ctx context.Context) error {
	if err := b.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// ExecuteQuery runs a single already-rendered, already-encrypted query
// string against Neo4j and returns rows keyed by return variable name.
//
// Read-vs-write routing isn't chosen here: a rendered query can mix a
// MATCH read with a CREATE write (pattern-link), so every query goes
// through the default (leader) route.
func (b *Neo4jBackend) ExecuteQuery(ctx context.Context, query string) ([]map[string]any, error) {
	txConfig := GetConfigForOperation("proxy_query")
	queryCtx := ctx
	if txConfig.Timeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, txConfig.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := neo4j.ExecuteQuery(queryCtx, b.driver, query, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(b.database))
	b.MonitorPoolExhaustion(time.Since(start), "proxy_query")
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}

	b.logger.Debug("query executed", "record_count", len(records))
	return records, nil
}

// Driver returns the underlying Neo4j driver, for use by connection
// pool monitoring.
func (b *Neo4jBackend) Driver() neo4j.DriverWithContext {
	return b.driver
}
