package dashboard

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	sessionCookieName = "sithafal_session"
	sessionDuration   = 24 * time.Hour
	limiterIdle       = 10 * time.Minute
)

type session struct {
	token     string
	createdAt time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ctxKey struct{}

// Auth manages access-code authentication, session tokens and per-IP login
// throttling for the dashboard.
type Auth struct {
	accessCode string
	sessions   map[string]session
	limiters   map[string]*ipLimiter
	rate       rate.Limit
	burst      int
	now        func() time.Time
	mu         sync.RWMutex
}

// AuthOption configures an Auth.
type AuthOption func(*Auth)

// WithAccessCode uses a fixed access code instead of a random one.
func WithAccessCode(code string) AuthOption {
	return func(a *Auth) {
		if code != "" {
			a.accessCode = code
		}
	}
}

// WithLoginLimit allows perSecond login attempts per client IP with the
// given burst.
func WithLoginLimit(perSecond float64, burst int) AuthOption {
	return func(a *Auth) {
		if perSecond > 0 && burst > 0 {
			a.rate = rate.Limit(perSecond)
			a.burst = burst
		}
	}
}

// NewAuth generates a random 8-digit access code and returns a new Auth instance.
func NewAuth(opts ...AuthOption) *Auth {
	a := &Auth{
		accessCode: generateAccessCode(),
		sessions:   make(map[string]session),
		limiters:   make(map[string]*ipLimiter),
		rate:       rate.Limit(0.5),
		burst:      5,
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// AccessCode returns the code the user must enter to authenticate.
func (a *Auth) AccessCode() string {
	return a.accessCode
}

// ValidateCode checks if the provided code matches the access code.
func (a *Auth) ValidateCode(code string) bool {
	return subtle.ConstantTimeCompare([]byte(code), []byte(a.accessCode)) == 1
}

// AllowLogin reports whether ip may attempt another login now.
func (a *Auth) AllowLogin(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	for k, l := range a.limiters {
		if now.Sub(l.lastSeen) > limiterIdle {
			delete(a.limiters, k)
		}
	}
	l, ok := a.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(a.rate, a.burst)}
		a.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}

// CreateSession generates a session token and stores it.
func (a *Auth) CreateSession() string {
	token := generateSessionToken()
	a.mu.Lock()
	a.sessions[token] = session{token: token, createdAt: a.now()}
	a.mu.Unlock()
	return token
}

// ValidateSession checks if a session token is valid and not expired.
func (a *Auth) ValidateSession(token string) bool {
	a.mu.RLock()
	s, ok := a.sessions[token]
	a.mu.RUnlock()
	if !ok {
		return false
	}
	return a.now().Sub(s.createdAt) < sessionDuration
}

// InvalidateSession forgets a token. Unknown tokens are ignored.
func (a *Auth) InvalidateSession(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Expired removes and returns every expired session token.
func (a *Auth) Expired() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	now := a.now()
	for tok, s := range a.sessions {
		if now.Sub(s.createdAt) >= sessionDuration {
			delete(a.sessions, tok)
			out = append(out, tok)
		}
	}
	return out
}

// Middleware protects dashboard routes, redirecting unauthenticated requests
// to login. htmx requests get an HX-Redirect instead of a 302.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dashboard/login" {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || !a.ValidateSession(cookie.Value) {
			if r.Header.Get("HX-Request") == "true" {
				w.Header().Set("HX-Redirect", "/dashboard/login")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/dashboard/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionToken returns the token Middleware attached to ctx.
func sessionToken(ctx context.Context) string {
	tok, _ := ctx.Value(ctxKey{}).(string)
	return tok
}

// clientIP returns the remote host without port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// generateAccessCode returns a random 8-digit numeric code.
func generateAccessCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(100_000_000))
	return fmt.Sprintf("%08d", n.Int64())
}

// generateSessionToken returns a cryptographically random hex string.
func generateSessionToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x", b)
}
