package nginx

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

const (
	// DefaultBinary is the nginx executable looked up in PATH.
	DefaultBinary = "nginx"

	testArgs   = ` -t -g "error_log off;"`
	reloadArgs = " -s reload"
)

var (
	ErrConfigTest = errors.New("nginx config test failed")
	ErrReload     = errors.New("nginx reload failed")
)

// Reloader runs nginx config test and reload commands.
// Calls are serialized so two reloads never race each other.
type Reloader struct {
	runner shell.Runner
	binary string
	logger *slog.Logger
	mu     sync.Mutex
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithBinary overrides the nginx executable.
func WithBinary(path string) Option {
	return func(r *Reloader) {
		if path != "" {
			r.binary = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReloader creates a Reloader on top of runner.
func NewReloader(runner shell.Runner, opts ...Option) *Reloader {
	r := &Reloader{
		runner: runner,
		binary: DefaultBinary,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Test checks the configuration without touching the running server.
func (r *Reloader) Test(ctx context.Context) error {
	if _, err := r.runner.Exec(ctx, r.binary+testArgs, shell.Options{}); err != nil {
		return errors.Join(ErrConfigTest, err)
	}
	return nil
}

// Reload tests the configuration and then asks nginx to reload it.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Test(ctx); err != nil {
		r.logger.ErrorContext(ctx, "nginx config test failed", logger.Error(err))
		return err
	}
	if _, err := r.runner.Exec(ctx, r.binary+reloadArgs, shell.Options{}); err != nil {
		r.logger.ErrorContext(ctx, "nginx reload failed", logger.Error(err))
		return errors.Join(ErrReload, err)
	}

	r.logger.InfoContext(ctx, "Reloading Nginx")
	return nil
}
