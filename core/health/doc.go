// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: all dependencies are available
//
// Usage:
//
//	mux.HandleFunc("GET /health/live", health.Liveness)
//	mux.Handle("GET /health/ready", health.Readiness(
//		log,
//		pg.Healthcheck(pool),
//		orchestratorListening,
//	))
//
// Dependency checks must follow the func(context.Context) error signature:
//
//	func checkDB(ctx context.Context) error {
//		return pool.Ping(ctx)
//	}
package health
