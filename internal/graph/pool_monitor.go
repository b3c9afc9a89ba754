package graph

import (
	"context"
	"time"
)

// WatchPoolHealth runs periodic connectivity checks against the backend
// until ctx is cancelled, so a dropped Neo4j connection is logged before
// it surfaces as a client-facing query failure.
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go backend.WatchPoolHealth(ctx, 30*time.Second)
func (b *Neo4jBackend) WatchPoolHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.logger.Info("starting pool health monitor", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("pool health monitor stopped")
			return
		case <-ticker.C:
			if err := b.HealthCheck(ctx); err != nil {
				b.logger.Warn("pool health check failed", "error", err)
			} else {
				b.logger.Debug("pool health check passed")
			}
		}
	}
}

// MonitorPoolExhaustion logs a warning when a backend round trip takes
// long enough to suggest the connection pool is exhausted or a query is
// holding a connection far longer than expected.
func (b *Neo4jBackend) MonitorPoolExhaustion(duration time.Duration, operation string) {
	if duration > 30*time.Second {
		b.logger.Warn("connection acquisition slow - possible pool exhaustion",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"threshold_seconds", 30)
	}
}
