package cars

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/louisbranch/sqlitedesk/internal/platform/timeouts"
	carssqlite "github.com/louisbranch/sqlitedesk/internal/services/cars/storage/sqlite"
)

// Config defines the inputs for the cars web process.
type Config struct {
	HTTPAddr       string
	DBPath         string
	Table          string
	IDColumn       string
	CategoryColumn string
}

// Server hosts the cars web app.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

// NewServer checks the configured database and builds the HTTP server. It
// fails when the database file or table is missing.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := carssqlite.Open(ctx, carssqlite.Config{
		Path:           config.DBPath,
		Table:          config.Table,
		IDColumn:       config.IDColumn,
		CategoryColumn: config.CategoryColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("open cars store: %w", err)
	}

	handler := NewHandler(HandlerConfig{
		Store:    store,
		IDColumn: config.IDColumn,
	})
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
		ReadTimeout:       timeouts.Read,
	}
	return &Server{
		httpAddr:   httpAddr,
		httpServer: httpServer,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("cars server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("cars listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close stops the HTTP server immediately.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	if err := s.httpServer.Close(); err != nil {
		log.Printf("close cars http server: %v", err)
	}
}
