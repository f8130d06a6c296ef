// Package storage provides abstractions for the console's local persistent state.
package storage

import (
	"context"

	"github.com/mmynk/paytrack/internal/models"
)

// TokenKey is the key the admin session token is stored under.
const TokenKey = "adminToken"

// TokenStore persists the admin session token across restarts.
type TokenStore interface {
	// SaveToken stores the token, replacing any previous one.
	SaveToken(ctx context.Context, token string) error

	// LoadToken returns the stored token, or "" if there is none.
	LoadToken(ctx context.Context) (string, error)

	// DeleteToken removes the stored token. Deleting a missing token is not an error.
	DeleteToken(ctx context.Context) error
}

// DeliveryLog records per-recipient broadcast results.
type DeliveryLog interface {
	// CreateDelivery persists a delivery. ID and CreatedAt are generated when empty.
	CreateDelivery(ctx context.Context, delivery *models.Delivery) error

	// ListDeliveriesByUser returns the most recent deliveries for a user, newest first.
	ListDeliveriesByUser(ctx context.Context, userID string, limit int) ([]*models.Delivery, error)

	// ListDeliveriesByBatch returns the deliveries of one broadcast in send order.
	ListDeliveriesByBatch(ctx context.Context, batchID string) ([]*models.Delivery, error)
}

// Store is the full local storage backend.
// This abstraction allows swapping backends without changing the service layer.
type Store interface {
	TokenStore
	DeliveryLog

	// Close releases any resources held by the store.
	Close() error
}
