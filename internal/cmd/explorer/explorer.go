// Package explorer parses dataset explorer flags and launches the service.
package explorer

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/sqlitedesk/internal/platform/cmd"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer"
)

// Config holds explorer command configuration.
type Config struct {
	HTTPAddr       string        `env:"EXPLORER_HTTP_ADDR" envDefault:":8081"`
	UploadDir      string        `env:"EXPLORER_UPLOAD_DIR"`
	MaxUploadBytes int64         `env:"EXPLORER_MAX_UPLOAD_BYTES" envDefault:"67108864"`
	SessionTTL     time.Duration `env:"EXPLORER_SESSION_TTL" envDefault:"1h"`
}

// DefaultUploadDir is where database uploads are written when no directory
// is configured.
func DefaultUploadDir() string {
	return filepath.Join(os.TempDir(), "sqlitedesk")
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.UploadDir) == "" {
		cfg.UploadDir = DefaultUploadDir()
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "directory for uploaded database files")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "maximum upload size in bytes")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "idle time before a session's dataset is discarded")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("max upload bytes must be positive")
	}
	return cfg, nil
}

// Run starts the dataset explorer web app.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceExplorer, func(ctx context.Context) error {
		server, err := explorer.NewServer(explorer.Config{
			HTTPAddr:       cfg.HTTPAddr,
			UploadDir:      cfg.UploadDir,
			MaxUploadBytes: cfg.MaxUploadBytes,
			SessionTTL:     cfg.SessionTTL,
		})
		if err != nil {
			return fmt.Errorf("init explorer server: %w", err)
		}
		defer server.Close()

		if err := server.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve explorer: %w", err)
		}
		return nil
	})
}
