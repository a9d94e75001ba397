package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/certdesk/core/bootstrap"
	"github.com/dmitrymomot/certdesk/core/certbot"
	"github.com/dmitrymomot/certdesk/core/certificate"
	"github.com/dmitrymomot/certdesk/core/ipranges"
	"github.com/dmitrymomot/certdesk/core/logger"
	"github.com/dmitrymomot/certdesk/core/nginx"
	"github.com/dmitrymomot/certdesk/core/schema"
	"github.com/dmitrymomot/certdesk/core/server"
	"github.com/dmitrymomot/certdesk/core/setup"
	"github.com/dmitrymomot/certdesk/integration/database/pg"
	"github.com/dmitrymomot/certdesk/pkg/shell"
)

// App is the assembled backend process.
type App struct {
	config       Config
	logger       *slog.Logger
	pool         *pgxpool.Pool
	runner       shell.Runner
	registry     *certbot.Registry
	orchestrator *bootstrap.Orchestrator
	bootOpts     []bootstrap.Option
}

type AppOption func(*App) error

func WithLogger(logger *slog.Logger) AppOption {
	return func(app *App) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		app.logger = logger
		return nil
	}
}

func WithRunner(runner shell.Runner) AppOption {
	return func(app *App) error {
		if runner == nil {
			return errors.New("runner cannot be nil")
		}
		app.runner = runner
		return nil
	}
}

func WithRegistry(registry *certbot.Registry) AppOption {
	return func(app *App) error {
		if registry == nil {
			return errors.New("registry cannot be nil")
		}
		app.registry = registry
		return nil
	}
}

// WithBootstrapOptions passes extra options to the startup orchestrator.
func WithBootstrapOptions(opts ...bootstrap.Option) AppOption {
	return func(app *App) error {
		app.bootOpts = append(app.bootOpts, opts...)
		return nil
	}
}

// NewApp wires every component. Nothing here touches the network or the
// filesystem; all fallible work happens inside Run.
func NewApp(ctx context.Context, cfg Config, opts ...AppOption) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger.New(),
	}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}
	if app.runner == nil {
		app.runner = shell.NewRunner()
	}
	if app.registry == nil {
		app.registry = certbot.DefaultRegistry()
	}

	pool, err := pg.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	app.pool = pool

	installer := certbot.NewInstaller(app.registry, app.runner,
		certbot.WithVenvDir(cfg.CertbotVenvDir),
		certbot.WithInstallerLogger(app.logger.With(logger.Component("certbot"))),
	)
	provisioner := certbot.NewProvisioner(installer, app.logger.With(logger.Component("certbot")))

	reloader := nginx.NewReloader(app.runner,
		nginx.WithBinary(cfg.NginxBinary),
		nginx.WithLogger(app.logger.With(logger.Component("nginx"))),
	)
	compiler := schema.Default()

	srv, err := server.NewFromConfig(ListenAddr, app.routes(compiler, provisioner), cfg.Server,
		server.WithLogger(app.logger),
	)
	if err != nil {
		pool.Close()
		return nil, err
	}

	orch, err := bootstrap.New(bootstrap.Dependencies{
		Migrator: pg.NewMigrator(pool, cfg.DB, app.logger),
		Setup:    setup.New(setup.NewPostgresStore(pool), provisioner, cfg.Setup, app.logger),
		Schema:   compiler,
		IPRanges: ipranges.New(cfg.IPRanges, reloader, ipranges.WithLogger(app.logger)),
		Certificates: certificate.NewManager(cfg.Certificate, certificate.NewPostgresStore(pool), app.runner,
			certificate.WithReloader(reloader),
			certificate.WithLogger(app.logger),
		),
		Server: srv,
	}, append([]bootstrap.Option{
		bootstrap.WithIPRangesFetch(cfg.IPRangesFetchEnabled()),
		bootstrap.WithLogger(app.logger),
	}, app.bootOpts...)...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	app.orchestrator = orch

	return app, nil
}

func (app *App) routes(compiler *schema.Compiler, provisioner BatchInstaller) http.Handler {
	h := &handlers{
		logger:      app.logger,
		registry:    app.registry,
		provisioner: provisioner,
	}
	return newMux(h, compiler, app.ready)
}

func (app *App) ready(ctx context.Context) error {
	if app.orchestrator.State() != bootstrap.StateListening {
		return errNotListening
	}
	return pg.Healthcheck(app.pool)(ctx)
}

// Run drives the startup chain until the process is told to stop.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()
	return app.orchestrator.Run(ctx)
}

// Close releases the database pool. Safe to call more than once.
func (app *App) Close() {
	app.pool.Close()
}

// State reports the orchestrator state.
func (app *App) State() bootstrap.State {
	return app.orchestrator.State()
}
