// Package cmd holds startup helpers shared by the sqlitedesk commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/sqlitedesk/internal/platform/config"
	"github.com/louisbranch/sqlitedesk/internal/platform/otel"
)

// telemetryFlushTimeout bounds the final span export on exit.
const telemetryFlushTimeout = 5 * time.Second

// Service identifiers used for telemetry resources and log prefixes.
const (
	ServiceCars     = "cars"
	ServiceExplorer = "explorer"
)

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// LogPrefix returns the bracketed log prefix for a service, e.g. "[CARS] ".
func LogPrefix(service string) string {
	service = strings.TrimSpace(service)
	if service == "" {
		return ""
	}
	return "[" + strings.ToUpper(service) + "] "
}

// RunWithTelemetry installs the tracer provider for service, then runs run.
// Pending spans are flushed after run returns, even when ctx was canceled.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case run == nil:
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup %s telemetry: %w", service, err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryFlushTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("flush %s telemetry: %v", service, err)
		}
	}()
	return run(ctx)
}
