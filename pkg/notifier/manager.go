package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// Manager orchestrates the pipeline: suppression, grouping, persistence,
// and channel delivery. It also exposes the query surface the REST layer
// consumes.
type Manager struct {
	storage  Storage
	grouper  *Grouper
	router   *Router
	resolver *preferences.Resolver
	log      *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a new pipeline manager.
func NewManager(storage Storage, grouper *Grouper, router *Router, resolver *preferences.Resolver, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage:  storage,
		grouper:  grouper,
		router:   router,
		resolver: resolver,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notify runs one candidate through the pipeline and returns the persisted
// row. A candidate whose sender equals its recipient is suppressed and
// returns (nil, nil): users don't get notified about their own actions.
//
// Persistence failure aborts the candidate — the triggering resource (the
// comment, the like) is unaffected because the producer already returned.
// Channel delivery is best-effort after the row is stored.
func (m *Manager) Notify(ctx context.Context, candidate Notification) (*Notification, error) {
	if candidate.Sender != "" && candidate.Sender == candidate.Recipient {
		return nil, nil
	}
	if candidate.Recipient == "" {
		return nil, fmt.Errorf("notifier: recipient is required")
	}

	n, created, err := m.grouper.Apply(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("notifier: failed to persist notification: %w", err)
	}

	m.log.LogAttrs(ctx, slog.LevelDebug, "Notification persisted",
		logger.NotificationID(n.ID),
		logger.UserID(n.Recipient),
		logger.EventType(string(n.Type)),
		slog.Bool("grouped", !created),
	)

	results := m.router.Deliver(ctx, *n)
	for _, res := range results {
		if res.Delivered {
			status := ChannelStatus{Delivered: true}
			switch res.Channel {
			case preferences.ChannelInApp:
				n.DeliveryStatus.InApp = status
			case preferences.ChannelEmail:
				n.DeliveryStatus.Email = status
			case preferences.ChannelPush:
				n.DeliveryStatus.Push = status
			}
		}
	}

	return n, nil
}

// Get retrieves a single notification scoped to its recipient.
func (m *Manager) Get(ctx context.Context, recipient, id string) (*Notification, error) {
	return m.storage.Get(ctx, recipient, id)
}

// List returns the recipient's feed, newest first.
func (m *Manager) List(ctx context.Context, recipient string, opts ListOptions) ([]Notification, error) {
	return m.storage.List(ctx, recipient, opts)
}

// CountUnread returns the recipient's unread count.
func (m *Manager) CountUnread(ctx context.Context, recipient string) (int, error) {
	return m.storage.CountUnread(ctx, recipient)
}

// MarkRead marks the given notifications as read.
func (m *Manager) MarkRead(ctx context.Context, recipient string, ids ...string) error {
	return m.storage.MarkRead(ctx, recipient, ids...)
}

// MarkAllRead marks every unread notification as read and returns how many
// were updated.
func (m *Manager) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	return m.storage.MarkAllRead(ctx, recipient)
}

// Preferences exposes the preference surface (get with lazy defaults,
// owner-initiated updates).
func (m *Manager) Preferences() *preferences.Resolver {
	return m.resolver
}

// Storage returns the underlying notification storage.
func (m *Manager) Storage() Storage {
	return m.storage
}
