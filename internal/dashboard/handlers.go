package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sithafal/sithafal/internal/app"
	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTmpl.Execute(w, nil)
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if !s.auth.AllowLogin(ip) {
		s.logger.Warn("login rate-limited", "ip", ip)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = loginTmpl.Execute(w, map[string]any{"Error": "Too many attempts. Wait a moment and try again."})
		return
	}

	code := r.FormValue("code")
	if !s.auth.ValidateCode(code) {
		s.logger.Info("login failed", "ip", ip)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = loginTmpl.Execute(w, map[string]any{"Error": "Invalid access code. Check your terminal."})
		return
	}

	s.logger.Info("login success", "ip", ip)
	token := s.auth.CreateSession()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/dashboard",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   false, // localhost only
	})
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok := sessionToken(r.Context()); tok != "" {
		s.auth.InvalidateSession(tok)
		s.sessions.drop(tok)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/dashboard",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
	s.logger.Info("logout", "ip", clientIP(r))
	http.Redirect(w, r, "/dashboard/login", http.StatusFound)
}

// state returns the session state of the request, writing a 500 on failure.
func (s *Server) state(w http.ResponseWriter, r *http.Request) (*app.State, bool) {
	st, err := s.sessions.get(sessionToken(r.Context()))
	if err != nil {
		s.logger.Error("creating session state", "error", err)
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return st, true
}

// toast is the HX-Trigger payload of one notification pop-up.
type toast struct {
	ID      string `json:"id"`
	Level   string `json:"level"`
	Message string `json:"message"`
	Icon    string `json:"icon"`
	Color   string `json:"color"`
}

func toastOf(n notify.Notification) toast {
	return toast{ID: n.ID, Level: string(n.Level), Message: n.Message, Icon: n.Level.Icon(), Color: n.Level.Color()}
}

// collect attaches a notification collector to the request context, so
// only the messages raised by this request end up in its response.
func collect(r *http.Request) (context.Context, *notify.Collector) {
	return notify.Collect(r.Context())
}

// trigger writes what seen collected into an HX-Trigger header. It must
// run before the body is written.
func trigger(w http.ResponseWriter, seen *notify.Collector) []notify.Notification {
	notes := seen.Notifications()
	if len(notes) == 0 {
		return nil
	}
	toasts := make([]toast, len(notes))
	for i, n := range notes {
		toasts[i] = toastOf(n)
	}
	data, err := json.Marshal(map[string]any{"notify": toasts})
	if err == nil {
		w.Header().Set("HX-Trigger", string(data))
	}
	return notes
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// --- Pages ---

type pageData struct {
	Active     app.Page
	Pages      []app.Page
	Theme      charts.Theme
	Toasts     []toast
	Unread     int
	Stats      app.Stats
	Period     charts.Period
	Periods    []charts.Period
	Charts     map[string]charts.Config
	MiniCharts []string
	Quarantine quarantine.View
	Tags       []quarantine.Tag
	DebounceMS int
	DriftMS    int64
	Error      string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	ctx, seen := collect(r)
	page, err := st.Navigate(ctx, r.PathValue("page"))
	notes := seen.Notifications()

	data := pageData{
		Active:     page,
		Pages:      app.Pages,
		Theme:      st.Theme(),
		Unread:     len(st.Notifications().Active()),
		Stats:      st.Stats(),
		Period:     st.Period(),
		Periods:    []charts.Period{charts.PeriodToday, charts.PeriodWeek, charts.PeriodMonth},
		MiniCharts: charts.MiniCharts,
		Tags:       quarantine.Tags,
		DebounceMS: s.cfg.Quarantine.SearchDebounceMS,
		DriftMS:    s.cfg.DriftInterval().Milliseconds(),
	}
	for _, n := range notes {
		data.Toasts = append(data.Toasts, toastOf(n))
	}
	if err != nil {
		s.logger.Error("navigation failed", "page", r.PathValue("page"), "error", err)
		data.Error = "Quarantined emails could not be loaded."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if page == app.PageQuarantine {
		if c := st.Controller(); c != nil {
			data.Quarantine = c.View()
		}
		_ = quarantinePageTmpl.Execute(w, data)
		return
	}
	data.Charts = liveConfigs(st)
	_ = dashboardTmpl.Execute(w, data)
}

func liveConfigs(st *app.State) map[string]charts.Config {
	out := make(map[string]charts.Config)
	for _, id := range st.Charts().IDs() {
		if inst, ok := st.Charts().Get(id); ok {
			out[id] = inst.Config
		}
	}
	return out
}

func liveInstances(st *app.State) map[string]charts.Instance {
	out := make(map[string]charts.Instance)
	for _, id := range st.Charts().IDs() {
		if inst, ok := st.Charts().Get(id); ok {
			out[id] = inst
		}
	}
	return out
}

// --- Charts and dashboard data ---

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, liveInstances(st))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	inst, ok := st.Charts().Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	if _, err := st.SetPeriod(r.FormValue("period")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, liveInstances(st))
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	var theme charts.Theme
	if v := r.FormValue("theme"); v != "" {
		theme = charts.ParseTheme(v)
		st.SetTheme(theme)
	} else {
		theme = st.ToggleTheme()
	}
	writeJSON(w, http.StatusOK, map[string]any{"theme": theme, "charts": liveInstances(st)})
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	width, err := strconv.Atoi(r.FormValue("width"))
	if err != nil || width < 0 {
		http.Error(w, "width must be a non-negative integer", http.StatusBadRequest)
		return
	}
	st.SetViewport(width)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	ctx, seen := collect(r)
	err := st.Refresh(ctx)
	trigger(w, seen)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, liveInstances(st))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":  st.Stats(),
		"threat": st.Threat(),
		"period": st.Period(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	ctx, seen := collect(r)
	var buf bytes.Buffer
	if _, err := st.ExportReport(ctx, &buf); err != nil {
		trigger(w, seen)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	trigger(w, seen)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="sithafal-report-%s.json"`, time.Now().UTC().Format("2006-01-02")))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rows, ran, err := st.Search(r.Context(), q.Get("q"), q.Get("submit") == "1")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = searchResultsTmpl.Execute(w, map[string]any{"Ran": ran, "Rows": rows})
}

// --- Quarantine ---

// quarantineAction runs fn against the session's controller and re-renders
// the quarantine panel, raising any notifications through HX-Trigger. The
// quarantine page is opened first if the session is elsewhere.
func (s *Server) quarantineAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, c *quarantine.Controller) error) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	ctx, seen := collect(r)
	c := st.Controller()
	if c == nil {
		if _, err := st.Navigate(ctx, string(app.PageQuarantine)); err != nil {
			trigger(w, seen)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		c = st.Controller()
	}

	if err := fn(ctx, c); err != nil {
		trigger(w, seen)
		if errors.Is(err, quarantine.ErrUnknownRow) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	trigger(w, seen)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = quarantinePanelTmpl.Execute(w, pageData{
		Quarantine: c.View(),
		Tags:       quarantine.Tags,
		DebounceMS: s.cfg.Quarantine.SearchDebounceMS,
	})
}

func parseChecked(r *http.Request) (bool, error) {
	v := r.FormValue("checked")
	if v == "on" {
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("checked must be a boolean, got %q", v)
	}
	return b, nil
}

func confirmed(r *http.Request) *http.Request {
	ok := r.FormValue("confirm") == "yes"
	return r.WithContext(quarantine.WithConfirmation(r.Context(), ok))
}

func (s *Server) handleQuarantineTable(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(context.Context, *quarantine.Controller) error { return nil })
}

func (s *Server) handleQuarantineFilter(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(_ context.Context, c *quarantine.Controller) error {
		tag, ok := quarantine.ParseTag(r.FormValue("tag"))
		if !ok {
			return fmt.Errorf("unknown filter %q", r.FormValue("tag"))
		}
		c.SetFilter(tag)
		return nil
	})
}

func (s *Server) handleQuarantineSearch(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(_ context.Context, c *quarantine.Controller) error {
		c.SetQuery(r.FormValue("q"))
		return nil
	})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(_ context.Context, c *quarantine.Controller) error {
		checked, err := parseChecked(r)
		if err != nil {
			return err
		}
		c.ToggleAll(checked)
		return nil
	})
}

func (s *Server) handleSelectRow(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(_ context.Context, c *quarantine.Controller) error {
		checked, err := parseChecked(r)
		if err != nil {
			return err
		}
		return c.ToggleRow(r.PathValue("id"), checked)
	})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(ctx context.Context, c *quarantine.Controller) error {
		return c.ReleaseRow(ctx, r.PathValue("id"))
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	r = confirmed(r)
	s.quarantineAction(w, r, func(ctx context.Context, c *quarantine.Controller) error {
		_, err := c.DeleteRow(ctx, r.PathValue("id"))
		return err
	})
}

func (s *Server) handleBulkRelease(w http.ResponseWriter, r *http.Request) {
	s.quarantineAction(w, r, func(ctx context.Context, c *quarantine.Controller) error {
		c.BulkRelease(ctx)
		return nil
	})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	r = confirmed(r)
	s.quarantineAction(w, r, func(ctx context.Context, c *quarantine.Controller) error {
		c.BulkDelete(ctx)
		return nil
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	c := st.Controller()
	if c == nil {
		http.NotFound(w, r)
		return
	}
	p, err := c.Preview(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = previewTmpl.Execute(w, p)
}

// --- Notifications ---

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	st, ok := s.state(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	flusher.Flush()

	ch := st.Notifications().Subscribe()
	defer st.Notifications().Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, _ := json.Marshal(toastOf(n))
			_, _ = fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	recent := st.Notifications().Recent(10)
	items := make([]toast, len(recent))
	for i, n := range recent {
		items[i] = toastOf(n)
	}
	if r.Header.Get("Accept") == "application/json" {
		writeJSON(w, http.StatusOK, items)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = notificationsTmpl.Execute(w, items)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state(w, r)
	if !ok {
		return
	}
	// Dismissing twice, or after the pop-up timed out, is a no-op.
	dismissed := st.Notifications().Dismiss(r.PathValue("id"))
	s.logger.Debug("notification dismissed", "id", r.PathValue("id"), "active", dismissed)
	w.WriteHeader(http.StatusOK)
}
