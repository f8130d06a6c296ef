// Package service holds the console's application state: the selected group,
// its roster and payment status, the broadcast selection, and the actions that
// change them.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmynk/paytrack/internal/apiclient"
	"github.com/mmynk/paytrack/internal/metrics"
	"github.com/mmynk/paytrack/internal/models"
	"github.com/mmynk/paytrack/internal/reconcile"
	"github.com/mmynk/paytrack/internal/roster"
	"github.com/mmynk/paytrack/internal/storage"
)

// API is the part of the remote API the console uses. *apiclient.Client satisfies it.
type API interface {
	ListGroups(ctx context.Context) ([]models.Group, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListPayments(ctx context.Context) (models.Payments, error)
	MarkPaid(ctx context.Context, req apiclient.PaymentRequest) error
	MarkUnpaid(ctx context.Context, req apiclient.PaymentRequest) error
	SendMessage(ctx context.Context, userID, message string) error
}

// Console owns the application state. It is safe for concurrent use; network
// calls are made without holding the lock.
type Console struct {
	api        API
	deliveries storage.DeliveryLog
	metrics    *metrics.Metrics
	loc        *time.Location
	now        func() time.Time

	mu             sync.Mutex
	groups         []models.Group
	groupsLoaded   bool
	groupsGen      uint64
	groupID        string
	users          []models.User
	status         *reconcile.Status
	paymentsLoaded bool
	rosterGen      uint64
	selection      *roster.Selection
}

// Option configures a Console.
type Option func(*Console)

// WithDeliveryLog records broadcast results in log.
func WithDeliveryLog(log storage.DeliveryLog) Option {
	return func(c *Console) { c.deliveries = log }
}

// WithMetrics counts console actions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Console) { c.metrics = m }
}

// WithLocation sets the zone used to render payment dates.
func WithLocation(loc *time.Location) Option {
	return func(c *Console) { c.loc = loc }
}

// WithClock replaces time.Now for recording acknowledged payments.
func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// New creates a console over the given API.
func New(api API, opts ...Option) *Console {
	c := &Console{
		api:       api,
		loc:       time.UTC,
		now:       time.Now,
		status:    reconcile.Reconcile(nil),
		selection: roster.NewSelection(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot is a consistent copy of the state for rendering.
type Snapshot struct {
	Groups       []models.Group
	GroupsLoaded bool

	// Group is the selected group, or nil.
	Group *models.Group

	Rows []roster.Row

	// PaymentsLoaded is false when the last payments fetch failed and every
	// user is shown as unpaid.
	PaymentsLoaded bool

	Selected int
}

// Snapshot returns the current state with rows built for period.
func (c *Console) Snapshot(period roster.Period) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Groups:         append([]models.Group(nil), c.groups...),
		GroupsLoaded:   c.groupsLoaded,
		PaymentsLoaded: c.paymentsLoaded,
		Selected:       c.selection.Len(),
	}
	if g, ok := c.findGroup(c.groupID); ok {
		snap.Group = &g
	} else if c.groupID != "" {
		snap.Group = &models.Group{ID: c.groupID}
	}
	snap.Rows = c.rowsLocked(period)
	return snap
}

// Rows builds the roster rows of the selected group.
func (c *Console) Rows(period roster.Period) []roster.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rowsLocked(period)
}

func (c *Console) rowsLocked(period roster.Period) []roster.Row {
	return roster.Build(c.users, c.status, c.selection, roster.Options{
		GroupID:  c.groupID,
		Period:   period,
		Location: c.loc,
	})
}

// GroupID returns the selected group, or "".
func (c *Console) GroupID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupID
}

// Groups returns the loaded groups and whether a load has succeeded.
func (c *Console) Groups() ([]models.Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Group(nil), c.groups...), c.groupsLoaded
}

func (c *Console) findGroup(id string) (models.Group, bool) {
	for _, g := range c.groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.Group{}, false
}

// LoadGroups fetches the groups and sorts them by name, ignoring case.
// With zero groups the selected group and the roster are cleared and no user
// fetch is made. On failure the previous groups are kept.
func (c *Console) LoadGroups(ctx context.Context) ([]models.Group, error) {
	c.mu.Lock()
	c.groupsGen++
	gen := c.groupsGen
	c.mu.Unlock()

	slog.Info("LoadGroups request received")

	groups, err := c.api.ListGroups(ctx)
	if err != nil {
		slog.Error("LoadGroups failed", "error", err)
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.groupsGen {
		return nil, ErrStaleLoad
	}

	c.groups = groups
	c.groupsLoaded = true
	if _, ok := c.findGroup(c.groupID); !ok && c.groupID != "" {
		slog.Info("Selected group no longer exists", "group_id", c.groupID)
		c.resetRosterLocked("")
	}

	slog.Info("LoadGroups successful", "count", len(groups))
	return append([]models.Group(nil), groups...), nil
}

// SelectGroup makes groupID current, clears the selection and loads its roster.
// When groups have been loaded, groupID must be one of them.
func (c *Console) SelectGroup(ctx context.Context, groupID string) error {
	c.mu.Lock()
	if c.groupsLoaded {
		if _, ok := c.findGroup(groupID); !ok {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
		}
	}
	c.resetRosterLocked(groupID)
	c.rosterGen++
	gen := c.rosterGen
	c.mu.Unlock()

	slog.Info("SelectGroup request received", "group_id", groupID)
	return c.loadRoster(ctx, gen, groupID)
}

// Reload re-fetches the users and payments of the selected group.
func (c *Console) Reload(ctx context.Context) error {
	c.mu.Lock()
	groupID := c.groupID
	if groupID == "" {
		c.mu.Unlock()
		return ErrNoGroup
	}
	c.rosterGen++
	gen := c.rosterGen
	c.mu.Unlock()

	return c.loadRoster(ctx, gen, groupID)
}

// loadRoster fetches users (hard failure) and payments (soft failure) and
// installs them unless a newer load has started.
func (c *Console) loadRoster(ctx context.Context, gen uint64, groupID string) error {
	users, err := c.api.ListUsers(ctx)
	if err != nil {
		slog.Error("Loading users failed", "group_id", groupID, "error", err)
		return fmt.Errorf("failed to load users: %w", err)
	}

	paymentsLoaded := true
	payments, err := c.api.ListPayments(ctx)
	if err != nil {
		slog.Warn("Payments not loaded", "group_id", groupID, "error", err)
		payments = nil
		paymentsLoaded = false
	}
	status := reconcile.Reconcile(payments)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.rosterGen {
		slog.Debug("Discarding superseded load", "group_id", groupID, "generation", gen)
		return ErrStaleLoad
	}

	c.users = users
	c.status = status
	c.paymentsLoaded = paymentsLoaded

	slog.Info("Roster loaded",
		"group_id", groupID,
		"members", len(roster.Members(users, groupID)),
		"payments_loaded", paymentsLoaded,
	)
	return nil
}

// resetRosterLocked switches to groupID with an empty roster and selection.
func (c *Console) resetRosterLocked(groupID string) {
	c.groupID = groupID
	c.users = nil
	c.status = reconcile.Reconcile(nil)
	c.paymentsLoaded = false
	c.selection.Clear()
}

// Reset drops all state, as on logout. Loads in flight are discarded.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = nil
	c.groupsLoaded = false
	c.groupsGen++
	c.rosterGen++
	c.resetRosterLocked("")
}

// memberLocked returns the user with userID from the selected group.
func (c *Console) memberLocked(userID string) (models.User, bool) {
	for _, u := range roster.Members(c.users, c.groupID) {
		if u.ID == userID {
			return u, true
		}
	}
	return models.User{}, false
}
