package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/roster"
	"github.com/mmynk/paytrack/internal/validation"
)

// Greeting wraps text in the bilingual salutation sent to every recipient.
func Greeting(u models.User, text string) string {
	return fmt.Sprintf("Assalomu alaykum, hurmatli %[1]s %[2]s!\n\nЗдравствуйте, уважаемый(ая) %[1]s %[2]s!\n\n%[3]s",
		u.Name, u.Surname, text)
}

// Failure is a recipient the API did not accept a message for.
type Failure struct {
	User models.User
	Err  error
}

// BroadcastResult is the per-recipient outcome of one broadcast.
type BroadcastResult struct {
	// BatchID identifies the broadcast in the delivery log.
	BatchID   string
	Delivered []models.User
	Failed    []Failure
}

// OK reports whether every recipient received the message.
func (r *BroadcastResult) OK() bool {
	return len(r.Failed) == 0
}

// Total returns the number of recipients attempted.
func (r *BroadcastResult) Total() int {
	return len(r.Delivered) + len(r.Failed)
}

// Summary describes a partial failure, e.g. "Sent to 2 of 3. Failed: Aziz Karimov".
func (r *BroadcastResult) Summary() string {
	names := make([]string, len(r.Failed))
	for i, f := range r.Failed {
		names[i] = strings.TrimSpace(f.User.Name + " " + f.User.Surname)
		if names[i] == "" {
			names[i] = f.User.ID
		}
	}
	return fmt.Sprintf("Sent to %d of %d. Failed: %s", len(r.Delivered), r.Total(), strings.Join(names, ", "))
}

type messageInput struct {
	Text string `form:"text" validate:"notblank"`
}

// SendMessage sends text to the selected users of the current group.
func (c *Console) SendMessage(ctx context.Context, text string) (*BroadcastResult, error) {
	text = strings.TrimSpace(text)
	if err := validation.Check(messageInput{text}, MsgEmptyMessage); err != nil {
		return nil, err
	}

	c.mu.Lock()
	var recipients []models.User
	for _, u := range c.rosterUsersLocked() {
		if c.selection.Has(u.ID) {
			recipients = append(recipients, u)
		}
	}
	groupID := c.groupID
	c.mu.Unlock()

	if len(recipients) == 0 {
		return nil, validation.New(MsgNoSelection)
	}
	return c.broadcast(ctx, groupID, recipients, text), nil
}

// SendToAll sends text to every user of the current group.
func (c *Console) SendToAll(ctx context.Context, text string) (*BroadcastResult, error) {
	text = strings.TrimSpace(text)
	if err := validation.Check(messageInput{text}, MsgEmptyMessage); err != nil {
		return nil, err
	}

	c.mu.Lock()
	recipients := c.rosterUsersLocked()
	groupID := c.groupID
	c.mu.Unlock()

	if len(recipients) == 0 {
		return nil, validation.New(MsgNoUsers)
	}
	return c.broadcast(ctx, groupID, recipients, text), nil
}

// rosterUsersLocked returns the group's users in roster order.
func (c *Console) rosterUsersLocked() []models.User {
	members := roster.Members(c.users, c.groupID)
	roster.SortUnpaidFirst(members, c.status)
	return members
}

// broadcast sends one message per recipient, in order, and never stops early.
// Delivered recipients leave the selection; failed ones stay selected.
func (c *Console) broadcast(ctx context.Context, groupID string, recipients []models.User, text string) *BroadcastResult {
	result := &BroadcastResult{BatchID: uuid.New().String()}

	slog.Info("Broadcast started",
		"batch_id", result.BatchID,
		"group_id", groupID,
		"recipients", len(recipients),
	)

	for _, u := range recipients {
		body := Greeting(u, text)
		err := c.api.SendMessage(ctx, u.ID, body)
		c.metrics.MessageSent(err)

		if err != nil {
			slog.Warn("Message not delivered", "batch_id", result.BatchID, "user_id", u.ID, "error", err)
			result.Failed = append(result.Failed, Failure{User: u, Err: err})
		} else {
			result.Delivered = append(result.Delivered, u)
		}
		c.logDelivery(ctx, result.BatchID, groupID, u.ID, body, err)
	}

	c.mu.Lock()
	for _, u := range result.Delivered {
		c.selection.Set(u.ID, false)
	}
	c.mu.Unlock()

	slog.Info("Broadcast finished",
		"batch_id", result.BatchID,
		"delivered", len(result.Delivered),
		"failed", len(result.Failed),
	)
	return result
}

func (c *Console) logDelivery(ctx context.Context, batchID, groupID, userID, body string, sendErr error) {
	if c.deliveries == nil {
		return
	}
	d := &models.Delivery{
		BatchID:   batchID,
		UserID:    userID,
		GroupID:   groupID,
		Message:   body,
		Delivered: sendErr == nil,
		CreatedAt: c.now().Unix(),
	}
	if sendErr != nil {
		d.Error = sendErr.Error()
	}
	// The delivery log must not turn a sent message into a failure.
	if err := c.deliveries.CreateDelivery(context.WithoutCancel(ctx), d); err != nil {
		slog.Error("Failed to record delivery", "batch_id", batchID, "user_id", userID, "error", err)
	}
}

// Deliveries returns the logged deliveries of one broadcast.
func (c *Console) Deliveries(ctx context.Context, batchID string) ([]*models.Delivery, error) {
	if c.deliveries == nil {
		return nil, nil
	}
	return c.deliveries.ListDeliveriesByBatch(ctx, batchID)
}

// UserDeliveries returns the most recent logged deliveries for a user.
func (c *Console) UserDeliveries(ctx context.Context, userID string, limit int) ([]*models.Delivery, error) {
	if c.deliveries == nil {
		return nil, nil
	}
	return c.deliveries.ListDeliveriesByUser(ctx, userID, limit)
}
