package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TransactionConfig carries a per-operation timeout and transaction
// metadata. Metadata is logged by Neo4j and visible in its query log,
// which helps correlate a slow backend query with the proxy operation
// that issued it.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns the recommended config per proxy
// operation kind.
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		"proxy_query": {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{
				"operation": "proxy_query",
				"type":      "mixed",
			},
		},
		"create": {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{"operation": "create", "type": "write"},
		},
		"read": {
			Timeout: 15 * time.Second,
			Metadata: map[string]any{"operation": "read", "type": "read"},
		},
		"update": {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{"operation": "update", "type": "write"},
		},
		"delete": {
			Timeout: 30 * time.Second,
			Metadata: map[string]any{"operation": "delete", "type": "write"},
		},
		"shortest_path_hop": {
			Timeout: 10 * time.Second,
			Metadata: map[string]any{"operation": "shortest_path_hop", "type": "read"},
		},
		"health_check": {
			Timeout: 5 * time.Second,
			Metadata: map[string]any{"operation": "health_check", "type": "read"},
		},
	}
}

// AsNeo4jConfig converts to Neo4j transaction config functions, for use
// with ExecuteRead/ExecuteWrite.
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}
	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}
	return configs
}

// GetConfigForOperation retrieves the config for a named operation,
// falling back to a generic default if the operation is unrecognized.
func GetConfigForOperation(operation string) TransactionConfig {
	configs := DefaultTransactionConfigs()
	if config, ok := configs[operation]; ok {
		return config
	}
	return TransactionConfig{
		Timeout:  30 * time.Second,
		Metadata: map[string]any{"operation": operation, "type": "unknown"},
	}
}

// WithTimeout returns a copy of the config with a custom timeout.
func (tc TransactionConfig) WithTimeout(timeout time.Duration) TransactionConfig {
	return TransactionConfig{Timeout: timeout, Metadata: tc.Metadata}
}
