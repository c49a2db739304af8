// Package server wires the HTTP listener: health and metrics endpoints,
// the dashboard, and the middleware chain in front of them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/sithafal/sithafal/internal/config"
	"github.com/sithafal/sithafal/internal/dashboard"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/source"
	"github.com/sithafal/sithafal/internal/telemetry"
)

// Deps are the collaborators built by the caller. The server does not own
// them; closing the source and sinks stays with whoever opened them.
type Deps struct {
	Source  source.Source
	Sinks   []notify.Sink
	Metrics *telemetry.Metrics // nil disables /metrics
	Version string
	Logger  *slog.Logger
}

// Server is the sithafal HTTP server.
type Server struct {
	cfg       *config.Config
	srv       *http.Server
	ln        net.Listener
	dashboard *dashboard.Server
	logger    *slog.Logger

	mu        sync.Mutex
	runCancel context.CancelFunc
	runDone   chan struct{}
}

// NewServer creates the server and binds its listener.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	logger := deps.Logger

	dash, err := dashboard.NewServer(cfg, dashboard.Deps{
		Source:  deps.Source,
		Metrics: deps.Metrics,
		Sinks:   deps.Sinks,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dashboard: %w", err)
	}

	h := newHandler(cfg, dash, deps)

	// Bind to 127.0.0.1 by default (localhost only).
	bind := cfg.Server.Bind
	if bind == "" {
		bind = "127.0.0.1"
	}
	ln, actualPort, err := listenAutoPort(bind, cfg.Server.Port, logger)
	if err != nil {
		return nil, fmt.Errorf("binding port: %w", err)
	}
	cfg.Server.Port = actualPort

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Handler:        h,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		ln:        ln,
		dashboard: dash,
		logger:    logger,
	}, nil
}

// newHandler builds the routes and middleware chain.
func newHandler(cfg *config.Config, dash *dashboard.Server, deps Deps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"version":  deps.Version,
			"source":   deps.Source.Name(),
			"sessions": dash.Sessions(),
		})
	})
	if deps.Metrics != nil && cfg.Telemetry.Metrics {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})

	// Mount dashboard (auth middleware applied internally)
	mux.Handle("/dashboard/", dash.Handler())
	mux.Handle("/dashboard", dash.Handler())

	var h http.Handler = mux
	h = securityHeaders(h)
	h = logging(deps.Logger)(h)
	h = recovery(deps.Logger)(h)
	h = requestID(h)
	if cfg.Telemetry.Tracing {
		h = telemetry.InstrumentHandler(h, "sithafal")
	}
	return h
}

// listenAutoPort tries the configured port; if busy, scans up to 10 higher ports.
func listenAutoPort(bind string, port int, logger *slog.Logger) (net.Listener, int, error) {
	addr := net.JoinHostPort(bind, fmt.Sprint(port))
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		// Port 0 means the OS picked one.
		actual := ln.Addr().(*net.TCPAddr).Port
		return ln, actual, nil
	}
	if !isAddrInUse(err) {
		return nil, 0, err
	}

	logger.Warn("port in use, searching for available port", "port", port)
	for offset := 1; offset <= 10; offset++ {
		tryPort := port + offset
		ln, err = net.Listen("tcp", net.JoinHostPort(bind, fmt.Sprint(tryPort)))
		if err == nil {
			logger.Info("using alternative port", "original", port, "actual", tryPort)
			return ln, tryPort, nil
		}
	}
	return nil, 0, fmt.Errorf("port %d and next 10 ports are all in use", port)
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EADDRINUSE)
}

// DashboardCode returns the one-time access code for the dashboard.
func (s *Server) DashboardCode() string {
	return s.dashboard.AccessCode()
}

// Port returns the actual port the server is bound to.
func (s *Server) Port() int {
	return s.cfg.Server.Port
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Start runs the dashboard background loop and serves until Shutdown.
// It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("sithafal starting",
		"addr", s.Addr(),
		"drift", s.cfg.DriftInterval(),
		"toggle_all", s.cfg.Quarantine.ToggleAll,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.runCancel, s.runDone = cancel, done
	s.mu.Unlock()
	go func() {
		defer close(done)
		s.dashboard.Run(ctx, s.cfg.DriftInterval())
	}()

	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and releases every dashboard session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	err := s.srv.Shutdown(ctx)
	s.mu.Lock()
	cancel, done := s.runCancel, s.runDone
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	} else {
		// Never started: Serve did not take the listener.
		_ = s.ln.Close()
		s.dashboard.Close()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
