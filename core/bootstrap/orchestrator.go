package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/certdesk/core/logger"
)

// DefaultRetryDelay is the pause between a failed boot attempt and the next one.
const DefaultRetryDelay = 1000 * time.Millisecond

// Dependencies are the collaborators driven by the boot chain.
type Dependencies struct {
	Migrator     Migrator
	Setup        SetupRunner
	Schema       SchemaCompiler
	IPRanges     RangeFetcher
	Certificates Timer
	Server       Server
}

func (d Dependencies) validate() error {
	switch {
	case d.Migrator == nil:
		return fmt.Errorf("%w: migrator", ErrMissingDependency)
	case d.Setup == nil:
		return fmt.Errorf("%w: setup", ErrMissingDependency)
	case d.Schema == nil:
		return fmt.Errorf("%w: schema compiler", ErrMissingDependency)
	case d.IPRanges == nil:
		return fmt.Errorf("%w: ip ranges fetcher", ErrMissingDependency)
	case d.Certificates == nil:
		return fmt.Errorf("%w: certificate timer", ErrMissingDependency)
	case d.Server == nil:
		return fmt.Errorf("%w: server", ErrMissingDependency)
	}
	return nil
}

// SignalSource subscribes to termination signals.
// It returns the delivery channel and a function that unsubscribes.
type SignalSource func() (<-chan os.Signal, func())

// OSSignals subscribes to SIGTERM and SIGINT.
func OSSignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, os.Interrupt)
	return ch, func() { signal.Stop(ch) }
}

// Orchestrator runs the boot chain until the listener is up, retrying the
// whole chain after a fixed delay on failure, then serves until a
// termination signal arrives and drains the server.
type Orchestrator struct {
	deps         Dependencies
	fetchEnabled bool
	retryDelay   time.Duration
	signals      SignalSource
	pid          int
	logger       *slog.Logger

	state   atomic.Int32
	running atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIPRangesFetch toggles the IP range fetch phase. Enabled by default.
func WithIPRangesFetch(enabled bool) Option {
	return func(o *Orchestrator) { o.fetchEnabled = enabled }
}

// WithRetryDelay overrides the delay between boot attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithSignalSource replaces the OS signal subscription.
func WithSignalSource(src SignalSource) Option {
	return func(o *Orchestrator) {
		if src != nil {
			o.signals = src
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New validates deps and returns an Orchestrator.
func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		deps:         deps,
		fetchEnabled: true,
		retryDelay:   DefaultRetryDelay,
		signals:      OSSignals,
		pid:          os.Getpid(),
		logger:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(logger.Component("bootstrap"))

	return o, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	prev := State(o.state.Swap(int32(s)))
	if prev != s {
		o.logger.Debug("state changed", slog.String("from", prev.String()), slog.String("to", s.String()))
	}
}

// process is owned by Run for the lifetime of the process and handed to
// the shutdown path.
type process struct {
	pid         int
	server      Server
	addr        net.Addr
	timersArmed bool
}

// Run boots the service and blocks until it has drained after a termination
// signal or ctx is cancelled. A failed boot attempt is logged and the chain
// restarts from the first phase after the retry delay, without limit.
// Run returns nil after a clean drain and ctx.Err() if ctx ends before the
// listener is up.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	timersCtx, stopTimers := context.WithCancel(ctx)
	defer stopTimers()

	proc := &process{pid: o.pid, server: o.deps.Server}
	attempt := 0

	err := retry.Do(ctx, retry.NewConstant(o.retryDelay), func(ctx context.Context) error {
		attempt++
		if err := o.boot(ctx, timersCtx, proc); err != nil {
			o.setState(StateCold)
			o.logger.ErrorContext(ctx, err.Error(),
				logger.Error(err),
				logger.RetryCount(attempt),
				slog.Duration("retry_in", o.retryDelay),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		o.setState(StateStopped)
		return err
	}

	return o.serve(ctx, proc)
}

// boot runs one pass of the phase chain.
func (o *Orchestrator) boot(ctx, timersCtx context.Context, proc *process) error {
	fetchEnabled := o.fetchEnabled

	o.setState(StateMigrating)
	if err := o.deps.Migrator.RunPendingMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	o.setState(StateSettingUp)
	if err := o.deps.Setup.PerformSetup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	o.setState(StateCompilingSchema)
	if err := o.deps.Schema.Compile(ctx); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	if fetchEnabled {
		o.setState(StateFetchingRanges)
		o.logger.InfoContext(ctx, "IP Ranges fetch is enabled")
		if err := o.deps.IPRanges.Fetch(ctx); err != nil {
			o.logger.ErrorContext(ctx, "IP Ranges fetch failed, continuing anyway: "+err.Error(), logger.Error(err))
		}
	} else {
		o.logger.InfoContext(ctx, "IP Ranges fetch is disabled by environment variable")
	}

	if !proc.timersArmed {
		o.deps.Certificates.InitTimer(timersCtx)
		o.deps.IPRanges.InitTimer(timersCtx)
		proc.timersArmed = true
	}
	o.setState(StateTimersArmed)

	addr, err := proc.server.Listen()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	proc.addr = addr
	o.setState(StateListening)

	o.logger.InfoContext(ctx, fmt.Sprintf("Backend PID %d listening on port %s ...", proc.pid, portOf(addr)),
		logger.PID(proc.pid),
		slog.String("addr", addr.String()),
	)
	return nil
}

// serve waits for a termination signal and drains the server.
func (o *Orchestrator) serve(ctx context.Context, proc *process) error {
	sigs, release := o.signals()
	defer release()

	select {
	case sig := <-sigs:
		o.logger.Info(fmt.Sprintf("PID %d received %s", proc.pid, signalName(sig)))
	case <-ctx.Done():
		o.logger.Info(fmt.Sprintf("PID %d context done", proc.pid), logger.Error(ctx.Err()))
	}

	o.setState(StateDraining)
	err := proc.server.Shutdown(context.WithoutCancel(ctx))
	o.setState(StateStopped)
	if err != nil {
		o.logger.Error("drain failed", logger.Error(err))
		return err
	}

	o.logger.Info("Stopping.")
	return nil
}

func portOf(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprint(tcp.Port)
	}
	if _, port, err := net.SplitHostPort(addr.String()); err == nil {
		return port
	}
	return addr.String()
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case os.Interrupt:
		return "SIGINT"
	default:
		return sig.String()
	}
}
