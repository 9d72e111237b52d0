package preferences

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Resolver computes, per (user, notification type, channel) tuple, whether
// delivery is permitted. Preference records are created lazily with defaults
// on first access; resolution itself has no other side effects.
type Resolver struct {
	storage Storage
	log     *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger for the Resolver.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a new preference resolver.
func NewResolver(storage Storage, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		storage: storage,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allowed reports whether delivery of the given notification type over the
// given channel is permitted for the user.
//
// It fails closed: if the preference record cannot be read, delivery is not
// permitted. Delivering unconditionally under degraded storage would violate
// explicit opt-outs, which is worse than a missed notification.
func (r *Resolver) Allowed(ctx context.Context, userID, notifType string, channel Channel) bool {
	pref, err := r.Get(ctx, userID)
	if err != nil {
		r.log.LogAttrs(ctx, slog.LevelWarn, "Preference read failed, denying delivery",
			logger.UserID(userID),
			logger.Channel(string(channel)),
			logger.Error(err),
		)
		return false
	}
	return pref.Allows(notifType, channel)
}

// Get returns the user's preference record, creating a default one if none
// exists yet. Two concurrent first accesses may both attempt the insert; the
// storage upsert keyed by user ID makes that race harmless.
func (r *Resolver) Get(ctx context.Context, userID string) (*Preference, error) {
	pref, err := r.storage.Get(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, ErrPreferenceNotFound) {
		return nil, err
	}

	def := Default(userID)
	if err := r.storage.Upsert(ctx, def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Update replaces the user's preference record. The caller is responsible
// for ensuring the mutation comes from the owning user.
func (r *Resolver) Update(ctx context.Context, pref Preference) error {
	return r.storage.Upsert(ctx, pref)
}
