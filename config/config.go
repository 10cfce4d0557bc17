/*
Package config loads server configuration from the environment.

A .env file in the working directory is loaded first when present, so
local development does not need exported variables. Every value has a
sensible default; the server runs with no configuration at all.
*/
package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// DBPath is the SQLite database file. ":memory:" is rejected by the
	// store because each pooled connection would get its own database.
	DBPath string

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from .env (if present) and the environment.
func Load() *Config {
	// Missing .env is fine; real deployments export variables directly.
	_ = godotenv.Load()

	return &Config{
		Addr:     getEnv("LEDGER_ADDR", ":8080"),
		DBPath:   getEnv("LEDGER_DB", "ledger.db"),
		LogLevel: getEnv("LEDGER_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewLogger builds the process-wide structured logger.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
