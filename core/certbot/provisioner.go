package certbot

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

// PluginInstaller installs one plugin by key.
type PluginInstaller interface {
	Install(ctx context.Context, key string) (shell.Result, error)
}

// Outcome is the result of one install attempt.
type Outcome struct {
	Key       string
	Succeeded bool
	Err       error
}

// BatchResult holds outcomes in input order.
type BatchResult struct {
	Outcomes []Outcome
}

// AnyFailed reports whether at least one outcome failed.
func (r BatchResult) AnyFailed() bool {
	failed := false
	for _, o := range r.Outcomes {
		failed = failed || !o.Succeeded
	}
	return failed
}

// Failed returns the outcomes that did not succeed.
func (r BatchResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded {
			out = append(out, o)
		}
	}
	return out
}

// Provisioner installs plugins one after another and reports failures at the end.
type Provisioner struct {
	installer PluginInstaller
	logger    *slog.Logger
}

// NewProvisioner creates a Provisioner. A nil logger discards output.
func NewProvisioner(installer PluginInstaller, log *slog.Logger) *Provisioner {
	if log == nil {
		log = logger.Nop()
	}
	return &Provisioner{installer: installer, logger: log}
}

// Run attempts every key in order. A failing key never stops the ones after it.
// Each failure is logged when it happens.
func (p *Provisioner) Run(ctx context.Context, keys []string) BatchResult {
	result := BatchResult{Outcomes: make([]Outcome, 0, len(keys))}
	if len(keys) == 0 {
		return result
	}

	runID := uuid.NewString()
	for _, key := range keys {
		_, err := p.installer.Install(ctx, key)
		if err != nil {
			p.logger.ErrorContext(ctx, err.Error(),
				logger.Plugin(key),
				logger.ID("run_id", runID),
				logger.Error(err),
			)
		}
		result.Outcomes = append(result.Outcomes, Outcome{Key: key, Succeeded: err == nil, Err: err})
	}

	return result
}

// InstallAll installs keys sequentially. Once the whole list was attempted
// it returns a *CommandError matching ErrSomePluginsFailed if any failed.
func (p *Provisioner) InstallAll(ctx context.Context, keys []string) error {
	if p.Run(ctx, keys).AnyFailed() {
		return NewSomePluginsFailedError()
	}
	return nil
}
