package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/dates"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/reconcile"
	"github.com/mmynk/paytrack/internal/roster"
	"github.com/mmynk/paytrack/internal/validation"
)

type periodInput struct {
	Month string `form:"month" validate:"month"`
	Year  int    `form:"year" validate:"required"`
}

// MarkPaid records userID as paid for period. The local status changes only
// after the API acknowledges the write.
func (c *Console) MarkPaid(ctx context.Context, userID string, period roster.Period) error {
	return c.mark(ctx, userID, period, models.StatusPaid)
}

// MarkUnpaid records userID as unpaid for period.
func (c *Console) MarkUnpaid(ctx context.Context, userID string, period roster.Period) error {
	return c.mark(ctx, userID, period, models.StatusUnpaid)
}

func (c *Console) mark(ctx context.Context, userID string, period roster.Period, status models.PaymentStatus) error {
	if err := validation.Check(periodInput{period.Month, period.Year}, MsgSelectPeriod); err != nil {
		return err
	}

	c.mu.Lock()
	user, ok := c.memberLocked(userID)
	groupID := c.groupID
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	slog.Info("Mark request received",
		"user_id", userID,
		"status", status,
		"month", period.Month,
		"year", period.Year,
	)

	req := apiclient.PaymentRequest{
		UserID:  user.ID,
		Name:    user.Name,
		Surname: user.Surname,
		Month:   period.Month,
		Year:    period.Year,
	}

	var err error
	if status == models.StatusPaid {
		err = c.api.MarkPaid(ctx, req)
	} else {
		err = c.api.MarkUnpaid(ctx, req)
	}
	c.metrics.PaymentMarked(string(status), err)
	if err != nil {
		slog.Error("Mark failed", "user_id", userID, "status", status, "error", err)
		return err
	}

	ackAt := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	// A load that finishes later replaces this with the server's view. A load
	// that fetched payments before the write landed would otherwise hide it.
	if groupID == c.groupID {
		c.status.Record(userID, dates.MonthKey(period.Month, period.Year), status, ackAt)
	}

	slog.Info("Mark successful", "user_id", userID, "status", status)
	return nil
}

// History re-fetches the payments and returns userID's events, newest first.
// The refreshed payments also replace the current status.
func (c *Console) History(ctx context.Context, userID string) ([]models.PaymentEvent, error) {
	c.mu.Lock()
	gen := c.rosterGen
	c.mu.Unlock()

	slog.Info("History request received", "user_id", userID)

	payments, err := c.api.ListPayments(ctx)
	if err != nil {
		slog.Error("History failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	status := reconcile.Reconcile(payments)

	c.mu.Lock()
	if gen == c.rosterGen {
		c.status = status
		c.paymentsLoaded = true
	}
	c.mu.Unlock()

	return status.History(userID), nil
}

// Toggle flips userID's membership in the broadcast selection and returns the
// new state. Only users of the selected group can be selected.
func (c *Console) Toggle(userID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.memberLocked(userID); !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	return c.selection.Toggle(userID), nil
}

// SelectAll selects every user of the selected group.
func (c *Console) SelectAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := roster.Members(c.users, c.groupID)
	ids := make([]string, len(members))
	for i, u := range members {
		ids[i] = u.ID
	}
	c.selection.SelectAll(ids)
	return c.selection.Len()
}

// ClearSelection empties the broadcast selection.
func (c *Console) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selection.Clear()
}

// Selected returns the selected user IDs in sorted order.
func (c *Console) Selected() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.IDs()
}
