// Package server wraps http.Server with a two-step lifecycle: Listen binds
// the socket and returns bind errors to the caller, Shutdown closes the
// listener and waits for in-flight requests to finish.
//
//	srv := server.New(":3000", mux, server.WithLogger(log))
//	addr, err := srv.Listen()
//	if err != nil {
//		return err // port in use, permission denied...
//	}
//	log.Info("listening", "addr", addr)
//
//	<-ctx.Done()
//	_ = srv.Shutdown(context.Background())
//
// The drain is unbounded by default. Set SERVER_SHUTDOWN_TIMEOUT or
// WithShutdownTimeout to cap it.
package server
