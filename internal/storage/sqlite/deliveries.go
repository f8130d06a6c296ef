package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/paytrack/internal/models"
)

// CreateDelivery persists a broadcast delivery.
func (s *SQLiteStore) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	// Generate IDs if not set
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.BatchID == "" {
		d.BatchID = uuid.New().String()
	}
	if d.CreatedAt == 0 {
		d.CreatedAt = time.Now().Unix()
	}

	var errText interface{} = nil
	if d.Error != "" {
		errText = d.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, batch_id, seq, user_id, group_id, message, delivered, error, created_at)
		 VALUES (?, ?, (SELECT COUNT(*) FROM deliveries WHERE batch_id = ?), ?, ?, ?, ?, ?, ?)`,
		d.ID, d.BatchID, d.BatchID, d.UserID, d.GroupID, d.Message, d.Delivered, errText, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}

	return nil
}

// ListDeliveriesByUser retrieves the most recent deliveries for a user.
func (s *SQLiteStore) ListDeliveriesByUser(ctx context.Context, userID string, limit int) ([]*models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, user_id, group_id, message, delivered, error, created_at
		 FROM deliveries WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries by user: %w", err)
	}
	return scanDeliveries(rows)
}

// ListDeliveriesByBatch retrieves the deliveries of one broadcast in send order.
func (s *SQLiteStore) ListDeliveriesByBatch(ctx context.Context, batchID string) ([]*models.Delivery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, batch_id, user_id, group_id, message, delivered, error, created_at
		 FROM deliveries WHERE batch_id = ? ORDER BY seq`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries by batch: %w", err)
	}
	return scanDeliveries(rows)
}

func scanDeliveries(rows *sql.Rows) ([]*models.Delivery, error) {
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		d := &models.Delivery{}
		var errText sql.NullString

		if err := rows.Scan(&d.ID, &d.BatchID, &d.UserID, &d.GroupID, &d.Message,
			&d.Delivered, &errText, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}

		if errText.Valid {
			d.Error = errText.String
		}

		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deliveries: %w", err)
	}

	return deliveries, nil
}
