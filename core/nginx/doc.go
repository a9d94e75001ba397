// Package nginx validates and reloads the nginx configuration through a
// shell.Runner.
//
// Reload first runs the configuration test and only signals the master
// process when the test passes:
//
//	r := nginx.NewReloader(shell.NewRunner(), nginx.WithLogger(log))
//	if err := r.Reload(ctx); err != nil {
//		// invalid config or nginx not running
//	}
package nginx
