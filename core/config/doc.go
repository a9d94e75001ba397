// Package config loads environment variables into typed structs with
// caarlos0/env. A .env file in the working directory is read once on first
// use through godotenv; variables already set in the process win.
//
//	var cfg backend.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Each struct type is parsed once and cached, so later Load calls for the
// same type return the first result even if the environment changed.
// MustLoad panics instead of returning the error.
package config
