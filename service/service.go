// Package service runs the optional sidecar HTTP servers of a test run:
// a healthz endpoint and a Prometheus metrics endpoint. Both are disabled
// unless an address is configured.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sirlabs/systest/metrics"
)

type httpServer struct {
	name   string
	log    *slog.Logger
	server *http.Server
}

func (s *httpServer) start() {
	s.log.Info("starting server", "server", s.name, "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("server failed", "server", s.name, "err", err)
		metrics.RecordError(s.name + "_server")
	}
}

func (s *httpServer) shutdown(ctx context.Context) {
	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Error("server shutdown failed", "server", s.name, "err", err)
	}
	s.log.Info("server stopped", "server", s.name)
}

// Service owns the sidecar servers of one run.
type Service struct {
	log     *slog.Logger
	servers []*httpServer
}

// New assembles the sidecar servers for the configured addresses. An empty
// address disables the corresponding server.
func New(healthzAddr, metricsAddr string, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{log: log}

	if healthzAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			log.Debug("health check", "path", r.URL.Path)
			w.Write([]byte("OK")) //nolint:errcheck
		})
		handler := cors.New(cors.Options{AllowedOrigins: []string{"*"}}).Handler(mux)
		s.servers = append(s.servers, &httpServer{
			name:   "healthz",
			log:    log,
			server: &http.Server{Addr: healthzAddr, Handler: handler},
		})
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.servers = append(s.servers, &httpServer{
			name:   "metrics",
			log:    log,
			server: &http.Server{Addr: metricsAddr, Handler: mux},
		})
	}
	return s
}

// Start launches the configured servers in the background.
func (s *Service) Start() {
	for _, server := range s.servers {
		go server.start()
	}
}

// Shutdown stops every running server gracefully.
func (s *Service) Shutdown(ctx context.Context) {
	for _, server := range s.servers {
		server.shutdown(ctx)
	}
}
