package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sithafal/sithafal/internal/config"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/source"
	"github.com/sithafal/sithafal/internal/telemetry"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Defaults()
	for _, m := range mutate {
		m(cfg)
	}
	srv, err := NewServer(cfg, Deps{Source: source.NewSeed(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func loginSession(t *testing.T, srv *Server, handler http.Handler) *http.Cookie {
	t.Helper()

	form := url.Values{"code": {srv.AccessCode()}}
	req := httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie after login")
	return nil
}

// do sends an authenticated request. Form bodies are url-encoded.
func do(t *testing.T, handler http.Handler, cookie *http.Cookie, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil && method != "GET" && method != "DELETE" {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if form != nil {
			target += "?" + form.Encode()
		}
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("HX-Request", "true")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// toasts decodes the HX-Trigger notify payload of a response.
func toasts(t *testing.T, w *httptest.ResponseRecorder) []toast {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var payload struct {
		Notify []toast `json:"notify"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload.Notify
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(config.Defaults(), Deps{})
	assert.Error(t, err, "a row source is required")

	cfg := config.Defaults()
	cfg.Quarantine.ToggleAll = "sometimes"
	_, err = NewServer(cfg, Deps{Source: source.NewSeed()})
	assert.Error(t, err)

	cfg = config.Defaults()
	cfg.Dashboard.ChartColors = map[string]string{"nope": "#fff"}
	_, err = NewServer(cfg, Deps{Source: source.NewSeed()})
	assert.Error(t, err)
}

func TestServer_LoginFlow(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest("GET", "/dashboard", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusFound {
		t.Fatalf("dashboard without auth: status = %d, want 302", w.Code)
	}

	req = httptest.NewRequest("GET", "/dashboard/login", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("login page: status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "sithafal serve") {
		t.Error("login page should point to the serve command")
	}

	form := url.Values{"code": {"00000000"}}
	req = httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), "Invalid access code") {
		t.Error("wrong code should show error")
	}

	cookie := loginSession(t, srv, handler)
	w = do(t, handler, cookie, "GET", "/dashboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard with session: status = %d, want 200", w.Code)
	}
	if srv.Sessions() != 1 {
		t.Errorf("sessions = %d, want 1", srv.Sessions())
	}
}

func TestServer_LoginRateLimited(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.Dashboard.LoginRate = 0.001
		c.Dashboard.LoginBurst = 2
	})
	handler := srv.Handler()

	var last int
	for range 3 {
		form := url.Values{"code": {"wrong"}}
		req := httptest.NewRequest("POST", "/dashboard/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestServer_Logout(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	do(t, handler, cookie, "GET", "/dashboard", nil)
	require.Equal(t, 1, srv.Sessions())

	w := do(t, handler, cookie, "POST", "/dashboard/logout", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, 0, srv.Sessions())

	w = do(t, handler, cookie, "GET", "/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "old cookie should be rejected")
}

func TestServer_DashboardPage(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	for _, want := range []string{"Security Overview", "threatChart", "trafficChart", "securityScoreChart", "emailTrendChart", "Users Protected"} {
		assert.Contains(t, body, want)
	}
}

func TestServer_ComingSoonPages(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Security Overview", "coming soon pages fall back to the dashboard")
	assert.Contains(t, body, "Analytics page coming soon!")
}

func TestServer_QuarantinePage(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard/quarantine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="quarantine-panel"`)
	assert.Contains(t, body, "security@paypa1-verify.com")
	assert.Contains(t, body, `data-id="q-1001"`)
	assert.Contains(t, body, `data-state="unchecked"`)
	assert.Equal(t, 10, strings.Count(body, `class="email-row`))
}

func TestServer_QuarantineFilterAndSearch(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/filter", url.Values{"tag": {"high"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, strings.Count(w.Body.String(), `class="email-row`))
	assert.NotContains(t, w.Body.String(), "hr-department@company-benefits.net")

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/search", url.Values{"q": {"PASSWORD"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), `class="email-row`))

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/filter", url.Values{"tag": {"spam"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_QuarantineSelection(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-1001/select", url.Values{"checked": {"true"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data-state="indeterminate"`)
	assert.Contains(t, body, "Release (1)")

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/select-all", url.Values{"checked": {"true"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-state="checked"`)
	assert.Contains(t, w.Body.String(), "Release (10)")

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/select-all", url.Values{"checked": {"false"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-state="unchecked"`)

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-9999/select", url.Values{"checked": {"true"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/select-all", url.Values{"checked": {"maybe"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_QuarantineRelease(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-1001/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `data-id="q-1001"`)

	got := toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "success", got[0].Level)
	assert.Equal(t, "Email released successfully!", got[0].Message)

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-1001/release", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_QuarantineDeleteNeedsConfirmation(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "DELETE", "/dashboard/quarantine/rows/q-1002", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-id="q-1002"`, "declined delete keeps the row")
	assert.Empty(t, toasts(t, w))

	w = do(t, handler, cookie, "DELETE", "/dashboard/quarantine/rows/q-1002", url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `data-id="q-1002"`)
	got := toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Email deleted successfully!", got[0].Message)
}

func TestServer_QuarantineBulkActions(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.Quarantine.ToggleAll = "visible" })
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/bulk/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "warning", got[0].Level)
	assert.Equal(t, "Please select emails to release", got[0].Message)

	do(t, handler, cookie, "POST", "/dashboard/quarantine/filter", url.Values{"tag": {"medium"}})
	do(t, handler, cookie, "POST", "/dashboard/quarantine/select-all", url.Values{"checked": {"true"}})

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/bulk/delete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, toasts(t, w), "declined bulk delete is silent")
	assert.Equal(t, 5, strings.Count(w.Body.String(), `class="email-row`))

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/bulk/delete", url.Values{"confirm": {"yes"}})
	require.Equal(t, http.StatusOK, w.Code)
	got = toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "5 emails deleted successfully!", got[0].Message)

	w = do(t, handler, cookie, "POST", "/dashboard/quarantine/filter", url.Values{"tag": {"all"}})
	assert.Equal(t, 5, strings.Count(w.Body.String(), `class="email-row`))
	assert.Contains(t, w.Body.String(), "disabled", "bulk buttons disabled with empty selection")
}

// hookSource runs onLoad inside every Load, while a request is in flight.
type hookSource struct {
	source.Source
	onLoad func()
}

func (h *hookSource) Load(ctx context.Context) ([]quarantine.Row, error) {
	if h.onLoad != nil {
		h.onLoad()
	}
	return h.Source.Load(ctx)
}

func TestServer_ToastsStayWithTheirRequest(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	src := &hookSource{Source: source.NewSeed()}
	srv, err := NewServer(config.Defaults(), Deps{Source: src, Logger: logger})
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	st, err := srv.sessions.get(cookie.Value)
	require.NoError(t, err)
	// Another request of the same session raises a toast mid-flight.
	src.onLoad = func() { st.Notifications().Notify(notify.LevelInfo, "raised elsewhere") }

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/bulk/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Please select emails to release", got[0].Message)

	w = do(t, handler, cookie, "GET", "/dashboard/quarantine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "raised elsewhere")

	// The toast still reaches the session-wide list.
	var seen bool
	for _, n := range st.Notifications().Active() {
		seen = seen || n.Message == "raised elsewhere"
	}
	assert.True(t, seen)
}

func TestServer_QuarantinePreview(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard/quarantine/rows/q-1001/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no preview before the quarantine page is open")

	do(t, handler, cookie, "GET", "/dashboard/quarantine", nil)
	w = do(t, handler, cookie, "GET", "/dashboard/quarantine/rows/q-1001/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Email Preview")
	assert.Contains(t, body, "Urgent: Your account has been suspended")
	assert.Contains(t, body, "High Risk")

	w = do(t, handler, cookie, "GET", "/dashboard/quarantine/rows/q-0000/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Charts(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard/api/charts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 7)

	w = do(t, handler, cookie, "GET", "/dashboard/api/charts/threatChart", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"doughnut"`)

	w = do(t, handler, cookie, "GET", "/dashboard/api/charts/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_PeriodThemeViewport(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/api/period", url.Values{"period": {"week"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, handler, cookie, "GET", "/dashboard/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Period string `json:"period"`
		Threat []int  `json:"threat"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "week", stats.Period)
	assert.Equal(t, []int{35, 20, 18, 17, 10}, stats.Threat)

	w = do(t, handler, cookie, "POST", "/dashboard/api/period", url.Values{"period": {"decade"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, handler, cookie, "POST", "/dashboard/api/theme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"theme":"dark"`)

	w = do(t, handler, cookie, "POST", "/dashboard/api/theme", url.Values{"theme": {"light"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"theme":"light"`)

	w = do(t, handler, cookie, "POST", "/dashboard/api/viewport", url.Values{"width": {"400"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, handler, cookie, "POST", "/dashboard/api/viewport", url.Values{"width": {"wide"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_RefreshAndExport(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/api/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := toasts(t, w)
	require.Len(t, got, 2)
	assert.Equal(t, "Refreshing dashboard data...", got[0].Message)
	assert.Equal(t, "Dashboard refreshed successfully!", got[1].Message)

	w = do(t, handler, cookie, "GET", "/dashboard/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sithafal-report-")
	var report map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Contains(t, report, "stats")
	assert.Contains(t, report, "threats")
	got = toasts(t, w)
	require.Len(t, got, 1)
	assert.Equal(t, "Report exported successfully!", got[0].Message)
}

func TestServer_GlobalSearch(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "GET", "/dashboard/api/search", url.Values{"q": {"in"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "paypa1")

	w = do(t, handler, cookie, "GET", "/dashboard/api/search", url.Values{"q": {"paypa1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "security@paypa1-verify.com")

	// Submitting with Enter searches short queries as well.
	w = do(t, handler, cookie, "GET", "/dashboard/api/search", url.Values{"q": {"pa"}, "submit": {"1"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "security@paypa1-verify.com")
}

func TestServer_NotificationsAndDismiss(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	w := do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-1003/release", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := toasts(t, w)
	require.Len(t, got, 1)

	req := httptest.NewRequest("GET", "/dashboard/api/notifications", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var items []toast
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.NotEmpty(t, items)
	assert.Equal(t, got[0].ID, items[0].ID)

	w = do(t, handler, cookie, "GET", "/dashboard/api/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Email released successfully!")

	for range 2 {
		w = do(t, handler, cookie, "POST", "/dashboard/api/notifications/"+got[0].ID+"/dismiss", nil)
		assert.Equal(t, http.StatusOK, w.Code, "dismiss is idempotent")
	}
}

func TestServer_SSEEndpoint(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", ts.URL+"/dashboard/api/events", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	go func() {
		time.Sleep(50 * time.Millisecond)
		do(t, handler, cookie, "POST", "/dashboard/api/refresh", nil)
	}()

	buf := make([]byte, 4096)
	n, _ := resp.Body.Read(buf)
	assert.Contains(t, string(buf[:n]), "event: notification")
}

func TestServer_MetricsWiring(t *testing.T) {
	m := telemetry.NewMetrics()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv, err := NewServer(config.Defaults(), Deps{Source: source.NewSeed(), Metrics: m, Logger: logger})
	require.NoError(t, err)
	defer srv.Close()

	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)
	do(t, handler, cookie, "GET", "/dashboard/quarantine", nil)
	do(t, handler, cookie, "POST", "/dashboard/quarantine/rows/q-1001/release", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `action="release"`)
	assert.Contains(t, body, `page="quarantine"`)
}

func TestServer_RunClosesSessionsOnCancel(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()
	cookie := loginSession(t, srv, handler)
	do(t, handler, cookie, "GET", "/dashboard", nil)
	require.Equal(t, 1, srv.Sessions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, srv.Sessions())
}
