// Package server runs a development ledger over HTTP, backed by ledger.MemLedger.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/openmined/sitesync/internal/ledger"
)

type Server struct {
	config *Config
	ledger *ledger.MemLedger
	server *http.Server
}

func New(config *Config, l *ledger.MemLedger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		ledger: l,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           SetupRoutes(l, config),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("ledger server start", "addr", s.config.Addr)
	defer slog.Info("ledger server stop")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.runHttpServer()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Stop(context.Background())
	}
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) runHttpServer() error {
	if s.config.CertFile != "" && s.config.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.Addr, "cert", s.config.CertFile)
		return s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	}
	return s.server.ListenAndServe()
}
