package server

import "errors"

var (
	// ErrServerAlreadyRunning is returned by Listen on a bound server.
	ErrServerAlreadyRunning = errors.New("server is already running")

	// ErrBind wraps listener bind failures.
	ErrBind = errors.New("failed to bind listener")

	// ErrMissingAddress is returned when server address is not provided.
	ErrMissingAddress = errors.New("server address is required")
)
