// Package middleware provides net/http middleware for the backend API:
// request correlation ids, structured request logging and request body
// size limits.
//
//	h := middleware.Chain(mux,
//		middleware.RequestID(),
//		middleware.Logging(log),
//		middleware.BodyLimit(1<<20),
//	)
//
// The first middleware in the list is the outermost one.
package middleware
