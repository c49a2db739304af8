package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sithafal/sithafal/internal/app"
	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/config"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/source"
	"github.com/sithafal/sithafal/internal/telemetry"
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Source  source.Source
	Metrics *telemetry.Metrics // optional
	Sinks   []notify.Sink
	Logger  *slog.Logger
}

// Server serves the sithafal dashboard UI.
type Server struct {
	auth     *Auth
	cfg      *config.Config
	palette  charts.Palette
	policy   quarantine.ToggleAllPolicy
	src      source.Source
	metrics  *telemetry.Metrics
	sinks    []notify.Sink
	sessions *sessionStore
	logger   *slog.Logger
	mux      *http.ServeMux
}

// NewServer creates a dashboard server with access-code authentication.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("dashboard: row source is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	palette, err := charts.DefaultPalette().With(cfg.Dashboard.ChartColors)
	if err != nil {
		return nil, fmt.Errorf("chart colours: %w", err)
	}
	policy, err := quarantine.ParseToggleAllPolicy(cfg.Quarantine.ToggleAll)
	if err != nil {
		return nil, err
	}

	s := &Server{
		auth: NewAuth(
			WithAccessCode(cfg.Dashboard.AccessCode),
			WithLoginLimit(cfg.Dashboard.LoginRate, cfg.Dashboard.LoginBurst),
		),
		cfg:     cfg,
		palette: palette,
		policy:  policy,
		src:     deps.Source,
		metrics: deps.Metrics,
		sinks:   deps.Sinks,
		logger:  deps.Logger,
		mux:     http.NewServeMux(),
	}
	s.sessions = newSessionStore(s.newState)
	if s.metrics != nil {
		s.sinks = append(s.sinks, s.metrics)
		s.sessions.onOpen = s.metrics.SessionOpened
		s.sessions.onClose = s.metrics.SessionClosed
	}
	s.routes()
	return s, nil
}

func (s *Server) newState() (*app.State, error) {
	opts := app.Options{
		Source:       s.src,
		Palette:      s.palette,
		Theme:        charts.ParseTheme(s.cfg.Dashboard.Theme),
		AnimationMS:  s.cfg.Dashboard.AnimationMS,
		Policy:       s.policy,
		DismissAfter: s.cfg.DismissAfter(),
		Sinks:        s.sinks,
		Logger:       s.logger,
	}
	if s.metrics != nil {
		opts.Observer = s.metrics
		opts.Pages = s.metrics
	}
	return app.New(opts)
}

// AccessCode returns the one-time access code displayed in the terminal.
func (s *Server) AccessCode() string {
	return s.auth.AccessCode()
}

// Handler returns the dashboard HTTP handler with auth middleware applied.
func (s *Server) Handler() http.Handler {
	return s.auth.Middleware(s.mux)
}

// Sessions reports how many sessions hold live state.
func (s *Server) Sessions() int {
	return s.sessions.count()
}

// Run drives the periodic work of the dashboard until ctx is done: chart
// drift on every session and reaping of expired sessions. A zero drift
// interval disables drift.
func (s *Server) Run(ctx context.Context, drift time.Duration) {
	var driftC <-chan time.Time
	if drift > 0 {
		t := time.NewTicker(drift)
		defer t.Stop()
		driftC = t.C
	}
	reap := time.NewTicker(time.Minute)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			s.sessions.closeAll()
			return
		case <-driftC:
			s.sessions.each(func(st *app.State) { st.Drift() })
		case <-reap.C:
			for _, tok := range s.auth.Expired() {
				s.sessions.drop(tok)
			}
		}
	}
}

// Close releases every session.
func (s *Server) Close() {
	s.sessions.closeAll()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /dashboard/login", s.handleLoginPage)
	s.mux.HandleFunc("POST /dashboard/login", s.handleLoginSubmit)
	s.mux.HandleFunc("POST /dashboard/logout", s.handleLogout)

	// Pages
	s.mux.HandleFunc("GET /dashboard", s.handlePage)
	s.mux.HandleFunc("GET /dashboard/{page}", s.handlePage)

	// Charts and dashboard data
	s.mux.HandleFunc("GET /dashboard/api/charts", s.handleCharts)
	s.mux.HandleFunc("GET /dashboard/api/charts/{id}", s.handleChart)
	s.mux.HandleFunc("POST /dashboard/api/period", s.handlePeriod)
	s.mux.HandleFunc("POST /dashboard/api/theme", s.handleTheme)
	s.mux.HandleFunc("POST /dashboard/api/viewport", s.handleViewport)
	s.mux.HandleFunc("POST /dashboard/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /dashboard/api/stats", s.handleStats)
	s.mux.HandleFunc("GET /dashboard/api/export", s.handleExport)
	s.mux.HandleFunc("GET /dashboard/api/search", s.handleSearch)

	// Quarantine (htmx partials)
	s.mux.HandleFunc("GET /dashboard/quarantine/table", s.handleQuarantineTable)
	s.mux.HandleFunc("POST /dashboard/quarantine/filter", s.handleQuarantineFilter)
	s.mux.HandleFunc("POST /dashboard/quarantine/search", s.handleQuarantineSearch)
	s.mux.HandleFunc("POST /dashboard/quarantine/select-all", s.handleSelectAll)
	s.mux.HandleFunc("POST /dashboard/quarantine/rows/{id}/select", s.handleSelectRow)
	s.mux.HandleFunc("POST /dashboard/quarantine/rows/{id}/release", s.handleRelease)
	s.mux.HandleFunc("DELETE /dashboard/quarantine/rows/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /dashboard/quarantine/rows/{id}/preview", s.handlePreview)
	s.mux.HandleFunc("POST /dashboard/quarantine/bulk/release", s.handleBulkRelease)
	s.mux.HandleFunc("POST /dashboard/quarantine/bulk/delete", s.handleBulkDelete)

	// Notifications
	s.mux.HandleFunc("GET /dashboard/api/events", s.handleSSE)
	s.mux.HandleFunc("GET /dashboard/api/notifications", s.handleNotifications)
	s.mux.HandleFunc("POST /dashboard/api/notifications/{id}/dismiss", s.handleDismiss)
}
