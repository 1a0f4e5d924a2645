// Package cars parses cars web app flags and launches the service.
package cars

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/sqlitedesk/internal/platform/cmd"
	"github.com/louisbranch/sqlitedesk/internal/services/cars"
)

// Config holds cars command configuration.
type Config struct {
	HTTPAddr       string `env:"CARS_HTTP_ADDR" envDefault:":8080"`
	DBPath         string `env:"CARS_DB_PATH" envDefault:"cars.db"`
	Table          string `env:"CARS_TABLE" envDefault:"cars_master"`
	IDColumn       string `env:"CARS_ID_COLUMN" envDefault:"car_id"`
	CategoryColumn string `env:"CARS_CATEGORY_COLUMN" envDefault:"category"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to an existing SQLite database")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "table to manage")
	fs.StringVar(&cfg.IDColumn, "id-column", cfg.IDColumn, "integer identity column")
	fs.StringVar(&cfg.CategoryColumn, "category-column", cfg.CategoryColumn, "column used by the category filter")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the cars web app.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCars, func(ctx context.Context) error {
		server, err := cars.NewServer(ctx, cars.Config{
			HTTPAddr:       cfg.HTTPAddr,
			DBPath:         cfg.DBPath,
			Table:          cfg.Table,
			IDColumn:       cfg.IDColumn,
			CategoryColumn: cfg.CategoryColumn,
		})
		if err != nil {
			return fmt.Errorf("init cars server: %w", err)
		}
		defer server.Close()

		if err := server.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve cars: %w", err)
		}
		return nil
	})
}
