package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// ErrNotificationNotFound is returned when a notification is not found.
var ErrNotificationNotFound = errors.New("notifier: notification not found")

// Storage handles notification persistence and retrieval.
//
// UpsertGrouped is the store's atomic mutual-exclusion primitive: two events
// for the same grouping key may be processed by different processes
// concurrently, and the store — not the application — guarantees at most one
// row per key per window.
type Storage interface {
	// UpsertGrouped applies a candidate notification against the grouping
	// window. If a row with the same grouping key exists with
	// createdAt >= now-window, its count is incremented, IsRead is reset,
	// and UpdatedAt bumped — atomically. Otherwise the candidate is
	// inserted with count 1. Returns the resulting row and whether it was
	// newly created.
	UpsertGrouped(ctx context.Context, candidate Notification, window time.Duration) (*Notification, bool, error)

	// Get retrieves a single notification scoped to its recipient.
	Get(ctx context.Context, recipient, id string) (*Notification, error)

	// List returns notifications for a recipient, newest first.
	List(ctx context.Context, recipient string, opts ListOptions) ([]Notification, error)

	// CountUnread returns the unread count for a recipient.
	CountUnread(ctx context.Context, recipient string) (int, error)

	// MarkRead marks the given notifications as read.
	MarkRead(ctx context.Context, recipient string, ids ...string) error

	// MarkAllRead marks every unread notification as read and returns how
	// many were updated.
	MarkAllRead(ctx context.Context, recipient string) (int, error)

	// SetMessage replaces the rendered message of a notification after a
	// grouping update.
	SetMessage(ctx context.Context, recipient, id, message string) error

	// SetChannelStatus records a delivery attempt outcome for one channel.
	SetChannelStatus(ctx context.Context, recipient, id string, channel preferences.Channel, delivered bool, at time.Time) error
}

// ListOptions provides filtering and pagination options for listing notifications.
type ListOptions struct {
	Limit      int    // Maximum number of notifications to return (0 = no limit)
	Offset     int    // Number of notifications to skip for pagination
	OnlyUnread bool   // When true, only return unread notifications
	Types      []Type // If specified, only return notifications of these types
}
