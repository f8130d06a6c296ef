// Package session owns the admin login flow and the persisted session token.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmynk/paytrack/internal/auth"
	"github.com/mmynk/paytrack/internal/storage"
	"github.com/mmynk/paytrack/internal/validation"
)

var (
	// ErrLoginInProgress is returned when a login is submitted while another is in flight.
	ErrLoginInProgress = errors.New("login already in progress")
)

// MsgMissingCredentials is reported when the username or password is blank.
const MsgMissingCredentials = "Username va password kiriting"

type credentials struct {
	Username string `form:"username" validate:"notblank"`
	Password string `form:"password" validate:"notblank"`
}

// State is the login flow state.
type State int

const (
	Idle State = iota
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Authenticator exchanges credentials for a token. *apiclient.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// Observer is notified of login outcomes. *metrics.Metrics satisfies it.
type Observer interface {
	Login(err error)
}

// Manager runs the login flow and caches the stored token.
// It is safe for concurrent use.
type Manager struct {
	auth     Authenticator
	store    storage.TokenStore
	observer Observer
	now      func() time.Time

	mu     sync.Mutex
	state  State
	token  string
	loaded bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver reports login outcomes to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a login flow over the given authenticator and token store.
func NewManager(a Authenticator, store storage.TokenStore, opts ...Option) *Manager {
	m := &Manager{
		auth:  a,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current flow state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Login validates the credentials, submits them and stores the returned token.
// The flow is back in Idle when Login returns, whatever the outcome.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if err := validation.Check(credentials{username, password}, MsgMissingCredentials); err != nil {
		return err
	}

	m.mu.Lock()
	if m.state == Submitting {
		m.mu.Unlock()
		return ErrLoginInProgress
	}
	m.state = Submitting
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.state = Idle
		m.mu.Unlock()
	}()

	slog.Info("Login request received", "username", username)

	token, err := m.auth.Login(ctx, username, password)
	if err == nil {
		err = m.store.SaveToken(ctx, token)
	}
	if m.observer != nil {
		m.observer.Login(err)
	}
	if err != nil {
		slog.Warn("Login failed", "username", username, "error", err)
		return err
	}

	m.mu.Lock()
	m.token = token
	m.loaded = true
	m.mu.Unlock()

	slog.Info("Login succeeded", "username", username)
	return nil
}

// Token returns the stored token, or "" when logged out or the token has expired.
// It matches apiclient.TokenFunc.
func (m *Manager) Token(ctx context.Context) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		token, err := m.store.LoadToken(ctx)
		if err != nil {
			slog.Warn("Failed to load stored token", "error", err)
			return ""
		}
		m.token = token
		m.loaded = true
	}

	if m.token == "" {
		return ""
	}
	if exp, ok := auth.ExpiresAt(m.token); ok && !m.now().Before(exp) {
		slog.Info("Stored token expired", "expired_at", exp)
		return ""
	}
	return m.token
}

// LoggedIn reports whether a usable token is stored.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	return m.Token(ctx) != ""
}

// Logout forgets the token in memory and in the store.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.loaded = true
	m.mu.Unlock()

	if err := m.store.DeleteToken(ctx); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	slog.Info("Logged out")
	return nil
}
