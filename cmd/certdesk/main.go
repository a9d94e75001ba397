package main

import (
	"context"
	"os"

	"github.com/dmitrymomot/certdesk/app/backend"
	"github.com/dmitrymomot/certdesk/core/config"
	"github.com/dmitrymomot/certdesk/core/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var cfg backend.Config
	if err := config.Load(&cfg); err != nil {
		logger.New().Error("failed to load config", logger.Error(err))
		return 1
	}

	opts := []logger.Option{logger.WithEnvironment(cfg.Env, cfg.AppName)}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)

	ctx := context.Background()
	app, err := backend.NewApp(ctx, cfg, backend.WithLogger(log))
	if err != nil {
		log.Error("startup failed", logger.Error(err))
		return 1
	}

	if err := app.Run(ctx); err != nil {
		log.Error("backend stopped with error", logger.Error(err))
		return 1
	}
	return 0
}
