package explorer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/sqlitedesk/internal/platform/timeouts"
	"github.com/louisbranch/sqlitedesk/internal/services/explorer/session"
)

// Config defines the inputs for the explorer web process.
type Config struct {
	HTTPAddr       string
	UploadDir      string
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

// Server hosts the explorer web app and owns the session registry.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	registry   *session.Registry
}

// NewServer prepares the upload directory and builds the HTTP server.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	uploadDir := strings.TrimSpace(config.UploadDir)
	if uploadDir == "" {
		return nil, errors.New("upload dir is required")
	}
	if err := os.MkdirAll(uploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	registry := session.NewRegistry(config.SessionTTL)
	handler := NewHandler(HandlerConfig{
		Registry:       registry,
		UploadDir:      uploadDir,
		MaxUploadBytes: config.MaxUploadBytes,
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
		registry:   registry,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends, then closes
// every session dataset.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("explorer server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeRegistry()

	serveErr := make(chan error, 1)
	log.Printf("explorer listening on %s", s.httpAddr)
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

// Close stops the HTTP server and releases session datasets.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		if err := s.httpServer.Close(); err != nil {
			log.Printf("close explorer http server: %v", err)
		}
	}
	s.closeRegistry()
}

func (s *Server) closeRegistry() {
	if s.registry == nil {
		return
	}
	if err := s.registry.Close(); err != nil {
		log.Printf("close explorer sessions: %v", err)
	}
}
