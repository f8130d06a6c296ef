package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/auth"
	"github.com/mmynk/paytrack/internal/storage/sqlite"
	"github.com/mmynk/paytrack/internal/validation"
)

type fakeAuth struct {
	token    string
	username string
	password string
	err      error
	calls    int
	started  chan struct{}
	release  chan struct{}
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (string, error) {
	f.calls++
	f.username, f.password = username, password
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.token, f.err
}

type loginCounter struct {
	ok, failed int
}

func (c *loginCounter) Login(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func newStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoginStoresToken(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	counter := &loginCounter{}
	m := NewManager(&fakeAuth{token: "tok-1"}, store, WithObserver(counter))

	if err := m.Login(ctx, "  admin ", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got := m.Token(ctx); got != "tok-1" {
		t.Errorf("Expected token tok-1, got %q", got)
	}
	if m.State() != Idle {
		t.Errorf("Expected Idle after login, got %v", m.State())
	}

	stored, err := store.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if stored != "tok-1" {
		t.Errorf("Expected persisted token tok-1, got %q", stored)
	}
	if counter.ok != 1 || counter.failed != 0 {
		t.Errorf("Unexpected observer counts: %+v", counter)
	}
}

func TestLoginTrimsCredentials(t *testing.T) {
	fa := &fakeAuth{token: "tok"}
	m := NewManager(fa, newStore(t))

	if err := m.Login(context.Background(), " admin\t", " secret123 "); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if fa.username != "admin" || fa.password != "secret123" {
		t.Errorf("Expected trimmed credentials, got %q / %q", fa.username, fa.password)
	}
}

func TestLoginRejectsBlankCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"blank username", "   ", "secret"},
		{"blank password", "admin", "  "},
		{"both blank", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa := &fakeAuth{token: "tok"}
			m := NewManager(fa, newStore(t))

			err := m.Login(context.Background(), tt.username, tt.password)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("Expected validation error, got %v", err)
			}
			if verr.Message != MsgMissingCredentials {
				t.Errorf("Unexpected message %q", verr.Message)
			}
			if fa.calls != 0 {
				t.Errorf("Expected no request, got %d", fa.calls)
			}
		})
	}
}

func TestLoginFailureReturnsToIdle(t *testing.T) {
	ctx := context.Background()
	apiErr := &apiclient.APIError{StatusCode: 401, Message: "Invalid credentials"}
	counter := &loginCounter{}
	m := NewManager(&fakeAuth{err: apiErr}, newStore(t), WithObserver(counter))

	err := m.Login(ctx, "admin", "wrong")
	if !errors.Is(err, apiErr) {
		t.Fatalf("Expected API error, got %v", err)
	}
	if m.State() != Idle {
		t.Errorf("Expected Idle after failure, got %v", m.State())
	}
	if m.LoggedIn(ctx) {
		t.Error("Expected not logged in")
	}
	if counter.failed != 1 {
		t.Errorf("Expected one failed login, got %+v", counter)
	}
}

func TestLoginInProgress(t *testing.T) {
	ctx := context.Background()
	fa := &fakeAuth{token: "tok", started: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(fa, newStore(t))

	done := make(chan error, 1)
	go func() { done <- m.Login(ctx, "admin", "secret") }()

	<-fa.started
	if m.State() != Submitting {
		t.Errorf("Expected Submitting, got %v", m.State())
	}
	if err := m.Login(ctx, "admin", "secret"); !errors.Is(err, ErrLoginInProgress) {
		t.Errorf("Expected ErrLoginInProgress, got %v", err)
	}

	close(fa.release)
	if err := <-done; err != nil {
		t.Fatalf("First login failed: %v", err)
	}
	if fa.calls != 1 {
		t.Errorf("Expected one request, got %d", fa.calls)
	}
	if m.State() != Idle {
		t.Errorf("Expected Idle, got %v", m.State())
	}
}

func TestTokenLoadedFromStore(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.SaveToken(ctx, "persisted"); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	m := NewManager(&fakeAuth{}, store)
	if got := m.Token(ctx); got != "persisted" {
		t.Errorf("Expected stored token, got %q", got)
	}
}

func TestExpiredTokenCountsAsLoggedOut(t *testing.T) {
	ctx := context.Background()
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	token, err := jwtManager.Generate("admin")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	store := newStore(t)
	if err := store.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken failed: %v", err)
	}

	now := time.Now()
	m := NewManager(&fakeAuth{}, store, WithClock(func() time.Time { return now }))
	if !m.LoggedIn(ctx) {
		t.Fatal("Expected fresh token to be usable")
	}

	now = now.Add(2 * time.Hour)
	if m.LoggedIn(ctx) {
		t.Error("Expected expired token to count as logged out")
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	m := NewManager(&fakeAuth{token: "tok"}, store)

	if err := m.Login(ctx, "admin", "secret"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if err := m.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if m.LoggedIn(ctx) {
		t.Error("Expected logged out")
	}

	stored, err := store.LoadToken(ctx)
	if err != nil {
		t.Fatalf("LoadToken failed: %v", err)
	}
	if stored != "" {
		t.Errorf("Expected token cleared from store, got %q", stored)
	}
}
