// Package web serves the HTML admin console over the console service.
package web

import (
	"context"
	"crypto/rand"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"github.com/mmynk/paytrack/internal/metrics"
	"github.com/mmynk/paytrack/internal/middleware"
	"github.com/mmynk/paytrack/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPath is where requests without a session are sent.
const LoginPath = "/login"

// Session is the login flow the console runs. *session.Manager satisfies it.
type Session interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	LoggedIn(ctx context.Context) bool
}

// Server renders the console pages.
type Server struct {
	console *service.Console
	session Session
	metrics *metrics.Metrics
	loc     *time.Location
	now     func() time.Time

	csrfKey      []byte
	secureCookie bool
	pages        map[string]*template.Template
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts HTTP requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLocation sets the zone used to render dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

// WithClock replaces time.Now for the year selectors.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithCSRFKey sets the 32-byte key that signs CSRF cookies. A random key is
// generated when none is given, so forms do not survive a restart.
func WithCSRFKey(key []byte) Option {
	return func(s *Server) { s.csrfKey = key }
}

// WithSecureCookies marks the CSRF cookie Secure. Use it when served over TLS.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secureCookie = secure }
}

// New creates the web console.
func New(console *service.Console, sess Session, opts ...Option) (*Server, error) {
	s := &Server{
		console: console,
		session: sess,
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.csrfKey) == 0 {
		s.csrfKey = make([]byte, 32)
		if _, err := rand.Read(s.csrfKey); err != nil {
			return nil, fmt.Errorf("failed to generate csrf key: %w", err)
		}
	}
	if len(s.csrfKey) != 32 {
		return nil, fmt.Errorf("csrf key must be 32 bytes, got %d", len(s.csrfKey))
	}

	pages, err := s.parseTemplates()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// Handler returns the console routes wrapped in logging, metrics, CSRF
// protection and the session check. /health bypasses everything but logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/groups", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /groups", s.handleGroups)
	mux.HandleFunc("GET /groups/{id}", s.handleRoster)
	mux.HandleFunc("POST /groups/{id}/payments", s.handlePayment)
	mux.HandleFunc("GET /groups/{id}/users/{userID}/history", s.handleHistory)
	mux.HandleFunc("POST /groups/{id}/selection", s.handleSelection)
	mux.HandleFunc("POST /groups/{id}/messages", s.handleMessage)

	protect := csrf.Protect(s.csrfKey,
		csrf.Secure(s.secureCookie),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteStrictMode),
	)

	var console http.Handler = mux
	console = middleware.RequireSession(s.session.LoggedIn, LoginPath)(console)
	console = protect(console)
	console = plaintext(console)

	root := http.NewServeMux()
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	root.Handle("/", console)

	return middleware.Logging(s.metrics.InstrumentHandler(root))
}

// plaintext marks requests that arrived without TLS so the CSRF origin checks
// expect an http scheme.
func plaintext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}
