// Package notifier implements the notification pipeline: event intake,
// grouping, persistence, preference-aware channel routing, and the query
// surface for the notification feed.
//
// # Architecture
//
// The package follows a layered architecture:
//
//   - Storage: persistence with an atomic grouped upsert
//   - Grouper: collapses repeated events into one row within a time window
//   - Router: fans one stored notification out to channel adapters
//   - Manager: orchestrates the pipeline and serves feed queries
//
// # Basic Usage
//
//	storage := notifier.NewMemoryStorage()
//	grouper := notifier.NewGrouper(storage)
//	resolver := preferences.NewResolver(preferences.NewMemoryStorage())
//	router := notifier.NewRouter(resolver, storage, []notifier.ChannelAdapter{
//		notifier.NewInAppAdapter(hub),
//	})
//	manager := notifier.NewManager(storage, grouper, router, resolver)
//
//	// Wire the pipeline to the event bus.
//	manager.RegisterHandlers(bus)
//
//	// Producers publish domain events; the pipeline does the rest.
//	bus.Publish(ctx, notifier.EventNewComment, notifier.NewCommentEvent{...})
//
// # Grouping
//
// Notifications sharing (recipient, type, resource) within the group window
// collapse into a single row whose count increments and whose message is
// re-rendered ("Alice and 3 others liked your video"). The upsert is atomic,
// so concurrent events for the same group never produce duplicate rows.
//
// # Channel Adapters
//
// A ChannelAdapter reports (delivered, err). delivered=false with a nil
// error means the channel had nowhere to deliver (no live connection, no
// push token) — that is not a failure. Adapters can be wrapped in
// AsyncAdapter to defer dispatch through the outbox with retries.
//
// # Suppression
//
// A candidate whose sender equals its recipient is silently dropped: users
// are never notified about their own actions.
package notifier
