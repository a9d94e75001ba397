// Package logger builds slog loggers and offers attribute helpers so log
// records across the backend use the same keys.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "certdesk"),
//		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
//	)
//
//	log.Error("plugin install failed",
//		logger.Plugin("cloudflare"),
//		logger.Error(err),
//	)
//
// Tests capture output with WithOutput(&buf) and usually WithJSONFormatter.
package logger
