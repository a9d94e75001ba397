package bootstrap

import (
	"context"
	"net"
)

// Migrator applies pending database migrations.
type Migrator interface {
	RunPendingMigrations(ctx context.Context) error
}

// SetupRunner performs first-run and per-boot setup.
type SetupRunner interface {
	PerformSetup(ctx context.Context) error
}

// SchemaCompiler builds the API schema.
type SchemaCompiler interface {
	Compile(ctx context.Context) error
}

// Timer arms a recurring background task. It must not block.
type Timer interface {
	InitTimer(ctx context.Context)
}

// RangeFetcher downloads IP range reference data and owns its refresh timer.
type RangeFetcher interface {
	Timer
	Fetch(ctx context.Context) error
}

// Server is the listening endpoint owned by the orchestrator.
type Server interface {
	Listen() (net.Addr, error)
	Shutdown(ctx context.Context) error
}
