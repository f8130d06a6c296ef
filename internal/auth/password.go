// Package auth handles admin credentials and session tokens: bcrypt password
// checks and HS256 JWT issuing for the API side, unverified expiry inspection
// for the console side.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrAdminExists        = errors.New("admin already registered")
	ErrAdminNotFound      = errors.New("admin not found")
)

// Admin is an account allowed to use the console.
type Admin struct {
	Username     string
	PasswordHash string
}

// AdminStorage defines the interface for admin account persistence.
// This allows the authenticator to be independent of the storage implementation.
type AdminStorage interface {
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdmin(ctx context.Context, username string) (*Admin, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage AdminStorage
	cost    int
}

// NewPasswordAuthenticator creates a new password-based authenticator.
// A cost of 0 uses bcrypt.DefaultCost.
func NewPasswordAuthenticator(storage AdminStorage, cost int) *PasswordAuthenticator {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordAuthenticator{
		storage: storage,
		cost:    cost,
	}
}

// ValidateCredential checks if the password meets minimum requirements.
func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a new admin account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, credential string) (*Admin, error) {
	username = strings.TrimSpace(username)

	// Validate password strength
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	// Check if username already exists
	if existing, err := a.storage.GetAdmin(ctx, username); err == nil && existing != nil {
		return nil, ErrAdminExists
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(credential), a.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &Admin{Username: username, PasswordHash: string(hashedPassword)}
	if err := a.storage.CreateAdmin(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return admin, nil
}

// Authenticate verifies the username and password, returning the admin if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, credential string) (*Admin, error) {
	admin, err := a.storage.GetAdmin(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Compare password hash
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return admin, nil
}

// MemoryAdmins is an in-memory AdminStorage.
type MemoryAdmins struct {
	mu     sync.RWMutex
	admins map[string]*Admin
}

// NewMemoryAdmins returns an empty admin store.
func NewMemoryAdmins() *MemoryAdmins {
	return &MemoryAdmins{admins: make(map[string]*Admin)}
}

// CreateAdmin stores a new admin.
func (m *MemoryAdmins) CreateAdmin(_ context.Context, admin *Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.admins[admin.Username]; ok {
		return ErrAdminExists
	}
	m.admins[admin.Username] = admin
	return nil
}

// GetAdmin looks up an admin by username.
func (m *MemoryAdmins) GetAdmin(_ context.Context, username string) (*Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	admin, ok := m.admins[username]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return admin, nil
}
