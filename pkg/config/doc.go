// Package config loads environment-driven configuration structs with
// github.com/caarlos0/env, optionally reading dotenv files first through
// github.com/joho/godotenv.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
// Structs that implement Validator are validated right after parsing, so a
// misconfigured process fails at startup.
package config
