package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/accessd/accessd/internal/db"
)

type Server struct {
	config   *Config
	server   *http.Server
	services *Services
}

func New(config *Config) (*Server, error) {
	database, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	services, err := NewServices(database)
	if err != nil {
		database.Close()
		return nil, err
	}

	addr := config.HTTP.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	return &Server{
		config:   config,
		services: services,
		server: &http.Server{
			Addr:    addr,
			Handler: SetupRoutes(services),
		},
	}, nil
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("accessd server start", "addr", s.server.Addr)
	defer slog.Info("accessd server stop")

	if err := s.services.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.listenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	return s.Stop(context.Background())
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return s.services.Shutdown(shutdownCtx)
}

func (s *Server) listenAndServe() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	return s.server.ListenAndServe()
}
