package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// DefaultGroupWindow is the interval during which events with the same
// grouping key update the existing row instead of creating a new one.
const DefaultGroupWindow = time.Hour

// Grouper collapses near-duplicate notifications into a single row with a
// count, delegating mutual exclusion to the store's atomic upsert.
type Grouper struct {
	storage Storage
	window  time.Duration
	log     *slog.Logger
}

// GrouperOption configures a Grouper.
type GrouperOption func(*Grouper)

// WithGroupWindow overrides the grouping window.
func WithGroupWindow(window time.Duration) GrouperOption {
	return func(g *Grouper) {
		if window > 0 {
			g.window = window
		}
	}
}

// WithGrouperLogger sets the logger for the Grouper.
func WithGrouperLogger(log *slog.Logger) GrouperOption {
	return func(g *Grouper) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGrouper creates a grouping engine on top of the given storage.
func NewGrouper(storage Storage, opts ...GrouperOption) *Grouper {
	g := &Grouper{
		storage: storage,
		window:  DefaultGroupWindow,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window returns the active grouping window.
func (g *Grouper) Window() time.Duration {
	return g.window
}

// Apply runs a candidate through the grouping upsert and returns the
// resulting row plus whether it was newly created. On a window match the
// message is re-rendered from the row's type template with the new count;
// the SYSTEM type has no template and keeps the candidate's message.
func (g *Grouper) Apply(ctx context.Context, candidate Notification) (*Notification, bool, error) {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Message == "" {
		candidate.Message = RenderMessage(candidate.Type, actorNameFromData(candidate.Data), 1)
	}

	n, created, err := g.storage.UpsertGrouped(ctx, candidate, g.window)
	if err != nil {
		return nil, false, err
	}
	if created {
		return n, true, nil
	}

	if rendered := RenderMessage(n.Type, actorName(n), n.Count()); rendered != "" {
		if err := g.storage.SetMessage(ctx, n.Recipient, n.ID, rendered); err != nil {
			// The count and read-state update already landed; a stale
			// message is corrected by the next event in the group.
			g.log.LogAttrs(ctx, slog.LevelWarn, "Failed to re-render grouped message",
				logger.NotificationID(n.ID),
				logger.Error(err),
			)
		} else {
			n.Message = rendered
		}
	}

	return n, false, nil
}

func actorNameFromData(data map[string]any) string {
	if data == nil {
		return ""
	}
	if v, ok := data[DataActorNameKey].(string); ok {
		return v
	}
	return ""
}
