// Package app holds the per-session dashboard state: the current page, the
// live chart instances, the notification centre and, while the quarantine
// page is open, the quarantine controller. One State is created per
// dashboard session and torn down explicitly with Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/source"
)

// ErrClosed is returned by operations on a closed State.
var ErrClosed = errors.New("session closed")

// Page is a navigable dashboard page.
type Page string

const (
	PageDashboard   Page = "dashboard"
	PageQuarantine  Page = "quarantine"
	PageAnalytics   Page = "analytics"
	PageThreatIntel Page = "threat-intel"
	PageReports     Page = "reports"
	PageSettings    Page = "settings"
)

// comingSoon maps placeholder pages to the name used in their notice.
var comingSoon = map[Page]string{
	PageAnalytics:   "Analytics",
	PageThreatIntel: "Threat Intelligence",
	PageReports:     "Reports",
	PageSettings:    "Settings",
}

// Pages lists the sidebar entries in order.
var Pages = []Page{PageDashboard, PageQuarantine, PageAnalytics, PageThreatIntel, PageReports, PageSettings}

// Title is the sidebar label of the page.
func (p Page) Title() string {
	if name, ok := comingSoon[p]; ok {
		return name
	}
	if p == PageQuarantine {
		return "Quarantine"
	}
	return "Dashboard"
}

// MinSearchLength is the shortest dashboard search query that runs.
const MinSearchLength = 3

// Stats are the four dashboard stat cards.
type Stats struct {
	TotalEmails    int `json:"totalEmails"`
	Quarantine     int `json:"quarantine"`
	CleanedEmails  int `json:"cleanedEmails"`
	UsersProtected int `json:"usersProtected"`
}

// DefaultStats are the stat card values of a fresh session.
var DefaultStats = Stats{TotalEmails: 40, Quarantine: 10, CleanedEmails: 30, UsersProtected: 30}

func (s Stats) values() []int {
	return []int{s.TotalEmails, s.Quarantine, s.CleanedEmails, s.UsersProtected}
}

func statsOf(v []int) Stats {
	return Stats{TotalEmails: v[0], Quarantine: v[1], CleanedEmails: v[2], UsersProtected: v[3]}
}

// PageObserver is told about every resolved navigation.
type PageObserver interface {
	PageView(page string)
}

// Options configures a State. Source is required.
type Options struct {
	Source         source.Source
	Palette        charts.Palette
	Theme          charts.Theme
	AnimationMS    int
	Width          int
	Policy         quarantine.ToggleAllPolicy
	DismissAfter   time.Duration
	Sinks          []notify.Sink
	Observer       quarantine.Observer
	Pages          PageObserver
	TracerProvider trace.TracerProvider
	Rand           *rand.Rand
	Logger         *slog.Logger
}

// State is the application state of one dashboard session. It is safe for
// concurrent use.
type State struct {
	mu sync.Mutex

	id      string
	opts    Options
	logger  *slog.Logger
	notes   *notify.Center
	charts  *charts.Registry
	builder *charts.Builder

	page   Page
	period charts.Period
	width  int
	threat []int
	stats  Stats
	ctrl   *quarantine.Controller
	closed bool
}

// New creates a session on the dashboard page with its charts live.
func New(opts Options) (*State, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("app: row source is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Palette == (charts.Palette{}) {
		opts.Palette = charts.DefaultPalette()
	}
	if opts.Policy == "" {
		opts.Policy = quarantine.ToggleAllRows
	}
	if opts.AnimationMS == 0 {
		opts.AnimationMS = charts.DefaultAnimationMS
	}

	builderOpts := []charts.BuilderOption{
		charts.WithTheme(charts.ParseTheme(string(opts.Theme))),
		charts.WithAnimation(opts.AnimationMS),
	}
	if opts.Rand != nil {
		builderOpts = append(builderOpts, charts.WithRand(opts.Rand))
	}

	id := uuid.NewString()
	logger := opts.Logger.With("session", id[:8])
	s := &State{
		id:      id,
		opts:    opts,
		logger:  logger,
		notes:   notify.NewCenter(opts.DismissAfter, logger, opts.Sinks...),
		charts:  charts.NewRegistry(),
		builder: charts.NewBuilder(opts.Palette, builderOpts...),
		page:    PageDashboard,
		period:  charts.PeriodToday,
		width:   opts.Width,
		threat:  charts.ThreatSeries(charts.PeriodToday),
		stats:   DefaultStats,
	}
	if err := s.createChartsLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *State) ID() string { return s.id }

// Notifications is the session's notification centre.
func (s *State) Notifications() *notify.Center { return s.notes }

// Charts is the registry of live chart instances.
func (s *State) Charts() *charts.Registry { return s.charts }

func (s *State) Page() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

func (s *State) Period() charts.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}

func (s *State) Theme() charts.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Theme()
}

func (s *State) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Threat returns the current threat breakdown.
func (s *State) Threat() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.threat...)
}

// Controller returns the quarantine controller. It is nil until the
// quarantine page has been opened.
func (s *State) Controller() *quarantine.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// ParsePage resolves a page name. Unknown names resolve to the dashboard.
func ParsePage(name string) Page {
	p := Page(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case PageQuarantine, PageAnalytics, PageThreatIntel, PageReports, PageSettings:
		return p
	default:
		return PageDashboard
	}
}

// Navigate switches to the named page and returns the page actually shown.
// Placeholder pages announce themselves and fall back to the dashboard.
// Entering the quarantine page reloads the rows into a fresh controller,
// so removals from an earlier visit are reverted. Leaving the dashboard
// destroys its chart instances.
func (s *State) Navigate(ctx context.Context, name string) (Page, error) {
	requested := ParsePage(name)
	if label, ok := comingSoon[requested]; ok {
		s.notes.NotifyContext(ctx, notify.LevelInfo, label+" page coming soon!")
	}
	target := requested
	if target != PageQuarantine {
		target = PageDashboard
	}

	var ctrl *quarantine.Controller
	if target == PageQuarantine {
		rows, err := s.opts.Source.Load(ctx)
		if err != nil {
			s.notes.NotifyContext(ctx, notify.LevelError, "Failed to load quarantined emails")
			return s.Page(), fmt.Errorf("loading quarantine rows: %w", err)
		}
		ctrl = s.newController(rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.page, ErrClosed
	}

	prev := s.page
	s.page = target
	switch target {
	case PageQuarantine:
		s.ctrl = ctrl
	case PageDashboard:
		s.ctrl = nil
		if prev != PageDashboard || s.charts.Len() == 0 {
			if err := s.createChartsLocked(); err != nil {
				return s.page, err
			}
		}
	}
	if prev == PageDashboard && target != PageDashboard {
		n := s.charts.DestroyAll()
		s.logger.Debug("charts destroyed", "count", n)
	}
	if s.opts.Pages != nil {
		s.opts.Pages.PageView(string(target))
	}
	s.logger.Debug("navigated", "requested", name, "page", target)
	return target, nil
}

func (s *State) newController(rows []quarantine.Row) *quarantine.Controller {
	opts := []quarantine.Option{
		quarantine.WithNotifier(s.notes),
		quarantine.WithConfirmer(quarantine.ContextConfirmer),
		quarantine.WithLogger(s.logger),
		quarantine.WithPolicy(s.opts.Policy),
	}
	if s.opts.Observer != nil {
		opts = append(opts, quarantine.WithObserver(s.opts.Observer))
	}
	if s.opts.TracerProvider != nil {
		opts = append(opts, quarantine.WithTracerProvider(s.opts.TracerProvider))
	}
	return quarantine.New(rows, opts...)
}

// createChartsLocked (re)creates every dashboard chart from the current
// session data.
func (s *State) createChartsLocked() error {
	ids := append([]string{charts.ThreatChart, charts.TrafficChart, charts.SecurityScoreChart}, charts.MiniCharts...)
	for _, id := range ids {
		cfg, err := s.builder.Build(id, s.threat, s.width)
		if err != nil {
			return fmt.Errorf("building %s: %w", id, err)
		}
		s.charts.Create(id, cfg)
	}
	return nil
}

// SetPeriod switches the threat breakdown window and regenerates the
// traffic chart.
func (s *State) SetPeriod(name string) (charts.Period, error) {
	p, ok := charts.ParsePeriod(name)
	if !ok {
		return s.Period(), fmt.Errorf("unknown period %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.period, ErrClosed
	}
	s.period = p
	s.threat = charts.ThreatSeries(p)
	if s.page == PageDashboard {
		threat := s.threat
		s.updateLocked(charts.ThreatChart, func(c *charts.Config) { *c = s.builder.Threat(threat) })
		s.updateLocked(charts.TrafficChart, func(c *charts.Config) { *c = s.builder.Traffic(s.width) })
	}
	return p, nil
}

// SetTheme switches the colour scheme and recolours every live chart.
func (s *State) SetTheme(t charts.Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder.SetTheme(t)
	for _, id := range s.charts.IDs() {
		s.updateLocked(id, func(c *charts.Config) { charts.ApplyTheme(c, t) })
	}
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *State) ToggleTheme() charts.Theme {
	t := s.Theme().Toggle()
	s.SetTheme(t)
	return t
}

// SetViewport records the viewport width and adjusts the traffic chart's
// tick limit.
func (s *State) SetViewport(width int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.updateLocked(charts.TrafficChart, func(c *charts.Config) {
		if x, ok := c.Options.Scales["x"]; ok && x.Ticks != nil {
			x.Ticks.MaxTicksLimit = charts.MaxTicks(width)
		}
	})
}

func (s *State) updateLocked(id string, fn func(*charts.Config)) {
	if _, err := s.charts.Update(id, fn); err != nil && !errors.Is(err, charts.ErrUnknownChart) {
		s.logger.Warn("chart update failed", "chart", id, "error", err)
	}
}

// Refresh recreates the dashboard charts.
func (s *State) Refresh(ctx context.Context) error {
	s.notes.NotifyContext(ctx, notify.LevelInfo, "Refreshing dashboard data...")

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var err error
	if s.page == PageDashboard {
		err = s.createChartsLocked()
	}
	s.mu.Unlock()
	if err != nil {
		s.notes.NotifyContext(ctx, notify.LevelError, "Failed to refresh dashboard")
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.notes.NotifyContext(ctx, notify.LevelSuccess, "Dashboard refreshed successfully!")
	return nil
}

// Drift applies one live-update tick: the threat breakdown may move by one
// per segment and each stat card may move by a few. It reports whether the
// threat chart changed.
func (s *State) Drift() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.page != PageDashboard {
		return false
	}
	s.stats = statsOf(s.builder.DriftStats(s.stats.values()))

	threat, ok := s.builder.Drift(s.threat)
	if !ok {
		return false
	}
	s.threat = threat
	s.updateLocked(charts.ThreatChart, func(c *charts.Config) {
		if len(c.Data.Datasets) > 0 {
			c.Data.Datasets[0].Data = append([]int(nil), threat...)
		}
	})
	return true
}

// Search runs the header search box against the row source. While typing,
// queries shorter than MinSearchLength are ignored and report false. A
// submitted query (Enter) runs whenever it is not blank.
func (s *State) Search(ctx context.Context, query string, submitted bool) ([]quarantine.Row, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" || (!submitted && len([]rune(query)) < MinSearchLength) {
		return nil, false, nil
	}
	rows, err := s.opts.Source.Load(ctx)
	if err != nil {
		return nil, true, fmt.Errorf("searching: %w", err)
	}
	f := quarantine.Filter{Query: query}
	var out []quarantine.Row
	for _, r := range rows {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, true, nil
}

// Close destroys every chart instance and stops the notification centre.
// Further calls are no-ops.
func (s *State) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.ctrl = nil
	n := s.charts.DestroyAll()
	s.mu.Unlock()

	s.notes.Close()
	s.logger.Debug("session closed", "charts", n)
}
