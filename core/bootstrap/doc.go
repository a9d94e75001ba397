// Package bootstrap brings the backend from a cold start to a serving state.
//
// The boot chain runs strictly in order:
//
//	migrations -> setup -> schema compile -> IP ranges fetch (optional)
//	-> background timers -> listener
//
// Any error before the listener is bound aborts the pass; the error is logged
// and the chain starts again from migrations after DefaultRetryDelay, forever.
// The IP ranges fetch is the exception: its errors are logged and ignored.
// Background timers are armed once per process even if a later phase fails.
//
// Once listening, the orchestrator subscribes to SIGTERM/SIGINT. On a signal
// it closes the listener, waits for in-flight requests, logs "Stopping." and
// Run returns nil so main can exit with status 0.
package bootstrap
