package transport

import (
	"context"
	"net"
	"net/http"
	"time"

	"chatd/internal/config"
	"chatd/internal/metrics"
	"chatd/internal/room"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server ties together the room registry, worker pool, dispatcher, and
// admission guard into a runnable chat server.
type Server struct {
	cfg      config.Config
	logger   zerolog.Logger
	registry *room.Registry
	workers  []*Worker
	guard    *AdmissionGuard

	listener   net.Listener
	dispatcher *Dispatcher
	metricsSrv *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a Server from cfg. It does not bind any socket until Start is
// called.
func New(cfg config.Config, logger zerolog.Logger) *Server {
	registry := room.NewRegistry(cfg.MaxRooms, cfg.MaxClientsPerRoom)

	workers := make([]*Worker, cfg.MaxThreads)
	for i := range workers {
		workers[i] = NewWorker(i, cfg.MaxClientsPerThread, registry, logger)
	}

	var guard *AdmissionGuard
	if cfg.AdmissionGuardEnabled {
		guard = NewAdmissionGuard(cfg.CPURejectThreshold, cfg.MetricsInterval, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		workers:  workers,
		guard:    guard,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds the TCP listener, launches the worker pool, the admission
// guard, the metrics HTTP server, and the dispatcher's accept loop, then
// returns.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.dispatcher = NewDispatcher(ln, s.workers, s.guard, s.logger)

	for _, w := range s.workers {
		go w.Run()
	}
	if s.guard != nil {
		go s.guard.Run(s.ctx)
	}
	go s.sampleRoomMetrics()

	if s.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		s.metricsSrv = &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux}
		go func() {
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	go func() {
		if err := s.dispatcher.Run(s.ctx); err != nil {
			s.logger.Error().Err(err).Msg("dispatcher stopped")
		}
	}()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Int("workers", len(s.workers)).
		Msg("chatd listening")
	return nil
}

func (s *Server) sampleRoomMetrics() {
	interval := s.cfg.MetricsInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			metrics.SetRoomsActive(s.registry.ActiveCount())
		}
	}
}

// Addr returns the listener's bound address, useful in tests that bind to
// ":0".
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting new connections, signals every worker to drain,
// and stops the metrics server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	for _, w := range s.workers {
		w.Shutdown()
	}
	if s.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.metricsSrv.Shutdown(ctx)
	}
}
