package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// DefaultAdapterTimeout bounds a single channel-adapter call.
const DefaultAdapterTimeout = 10 * time.Second

// ChannelAdapter dispatches a notification over one delivery medium.
//
// Send reports whether the notification actually reached the channel:
// an in-app adapter with zero live connections returns (false, nil) — a
// normal offline outcome, not an error.
type ChannelAdapter interface {
	Channel() preferences.Channel
	Send(ctx context.Context, n Notification) (delivered bool, err error)
}

// DeliveryResult is the per-channel outcome of a routing pass.
type DeliveryResult struct {
	Channel   preferences.Channel
	Delivered bool
	Skipped   bool // delivery not permitted by preferences
	Err       error
}

// Router dispatches a notification to every permitted channel adapter and
// records the outcome on the stored row. Channels are independent: one
// channel's failure never blocks or rolls back the others.
type Router struct {
	resolver *preferences.Resolver
	storage  Storage
	adapters []ChannelAdapter
	timeout  time.Duration
	log      *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithAdapterTimeout bounds each channel-adapter call. A timed-out call is
// a delivery failure for that channel only; retries belong to an external
// collaborator such as the outbox worker, never inline.
func WithAdapterTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRouterLogger sets the logger for the Router.
func WithRouterLogger(log *slog.Logger) RouterOption {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRouter creates a delivery router.
func NewRouter(resolver *preferences.Resolver, storage Storage, adapters []ChannelAdapter, opts ...RouterOption) *Router {
	r := &Router{
		resolver: resolver,
		storage:  storage,
		adapters: adapters,
		timeout:  DefaultAdapterTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deliver routes the notification through every adapter whose channel is
// permitted for (recipient, type). Results are aggregated per channel
// without short-circuiting.
func (r *Router) Deliver(ctx context.Context, n Notification) []DeliveryResult {
	results := make([]DeliveryResult, 0, len(r.adapters))

	for _, adapter := range r.adapters {
		channel := adapter.Channel()

		if !r.resolver.Allowed(ctx, n.Recipient, string(n.Type), channel) {
			results = append(results, DeliveryResult{Channel: channel, Skipped: true})
			continue
		}

		delivered, err := r.send(ctx, adapter, n)
		if err != nil {
			// Transient delivery failure: logged, surfaced as
			// delivered=false, eligible for external retry. Never fatal.
			r.log.LogAttrs(ctx, slog.LevelWarn, "Channel delivery failed",
				logger.NotificationID(n.ID),
				logger.UserID(n.Recipient),
				logger.Channel(string(channel)),
				logger.Error(err),
			)
		}

		if delivered {
			if err := r.storage.SetChannelStatus(ctx, n.Recipient, n.ID, channel, true, time.Now()); err != nil {
				r.log.LogAttrs(ctx, slog.LevelError, "Failed to record delivery status",
					logger.NotificationID(n.ID),
					logger.Channel(string(channel)),
					logger.Error(err),
				)
			}
		}

		results = append(results, DeliveryResult{Channel: channel, Delivered: delivered, Err: err})
	}

	return results
}

func (r *Router) send(ctx context.Context, adapter ChannelAdapter, n Notification) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return adapter.Send(ctx, n)
}
