// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by sqlitedesk.
const EnvPrefix = "SQLITEDESK_"

// ParseEnv loads configuration from environment variables.
//
// Struct tags name variables without the shared prefix, so a field tagged
// `env:"CARS_DB_PATH"` reads SQLITEDESK_CARS_DB_PATH.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Lookup returns the prefixed environment variable value.
func Lookup(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
