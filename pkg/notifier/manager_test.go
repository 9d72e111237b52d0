package notifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/eventbus"
	"github.com/dmitrymomot/notifykit/pkg/notifier"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

func newTestManager(t *testing.T, adapters ...notifier.ChannelAdapter) (*notifier.Manager, notifier.Storage) {
	t.Helper()

	storage := notifier.NewMemoryStorage()
	resolver := preferences.NewResolver(preferences.NewMemoryStorage())
	grouper := notifier.NewGrouper(storage)
	router := notifier.NewRouter(resolver, storage, adapters)
	return notifier.NewManager(storage, grouper, router, resolver), storage
}

func TestManager_Notify(t *testing.T) {
	t.Parallel()

	t.Run("persists and returns the row", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		ctx := context.Background()

		n, err := manager.Notify(ctx, notifier.Notification{
			Recipient:    "owner",
			Sender:       "commenter",
			Type:         notifier.TypeComment,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-1",
			Data:         map[string]any{notifier.DataActorNameKey: "Alice"},
		})
		require.NoError(t, err)
		require.NotNil(t, n)

		stored, err := storage.Get(ctx, "owner", n.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice commented on your video", stored.Message)
		assert.False(t, stored.IsRead)
	})

	t.Run("suppresses self-notification", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		ctx := context.Background()

		n, err := manager.Notify(ctx, notifier.Notification{
			Recipient:    "owner",
			Sender:       "owner",
			Type:         notifier.TypeComment,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-1",
		})
		require.NoError(t, err)
		assert.Nil(t, n)

		rows, err := storage.List(ctx, "owner", notifier.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("system candidate without sender is not suppressed", func(t *testing.T) {
		t.Parallel()

		manager, _ := newTestManager(t)

		n, err := manager.Notify(context.Background(), notifier.Notification{
			Recipient:    "owner",
			Type:         notifier.TypeSystem,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-1",
			Message:      "Your video is ready",
		})
		require.NoError(t, err)
		require.NotNil(t, n)
	})

	t.Run("rejects missing recipient", func(t *testing.T) {
		t.Parallel()

		manager, _ := newTestManager(t)
		_, err := manager.Notify(context.Background(), notifier.Notification{
			Sender: "someone",
			Type:   notifier.TypeLike,
		})
		assert.Error(t, err)
	})

	t.Run("mirrors delivery results on the returned row", func(t *testing.T) {
		t.Parallel()

		adapter := &stubAdapter{channel: preferences.ChannelInApp, delivered: true}
		manager, _ := newTestManager(t, adapter)

		n, err := manager.Notify(context.Background(), notifier.Notification{
			Recipient:    "owner",
			Sender:       "liker",
			Type:         notifier.TypeLike,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-1",
		})
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.True(t, n.DeliveryStatus.InApp.Delivered)
	})
}

func TestManager_ReadStateFlow(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 7; i++ {
		n, err := manager.Notify(ctx, notifier.Notification{
			Recipient:    "owner",
			Sender:       "actor",
			Type:         notifier.TypeLike,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-" + string(rune('a'+i)),
		})
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}

	count, err := manager.CountUnread(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	require.NoError(t, manager.MarkRead(ctx, "owner", ids[0], ids[1]))
	count, err = manager.CountUnread(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	updated, err := manager.MarkAllRead(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 5, updated)

	count, err = manager.CountUnread(ctx, "owner")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManager_RegisterHandlers(t *testing.T) {
	t.Parallel()

	t.Run("comment event produces a notification", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		bus := eventbus.New()

		manager.RegisterHandlers(bus)

		err := bus.Publish(context.Background(), notifier.EventNewComment, notifier.NewCommentEvent{
			VideoID:      "video-1",
			VideoOwnerID: "owner",
			CommentID:    "comment-1",
			AuthorID:     "commenter",
			AuthorName:   "Alice",
		})
		require.NoError(t, err)
		require.NoError(t, bus.Close())

		rows, err := storage.List(context.Background(), "owner", notifier.ListOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, notifier.TypeComment, rows[0].Type)
		assert.Equal(t, "Alice commented on your video", rows[0].Message)
	})

	t.Run("own comment produces nothing", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		bus := eventbus.New()

		manager.RegisterHandlers(bus)

		err := bus.Publish(context.Background(), notifier.EventNewComment, notifier.NewCommentEvent{
			VideoID:      "video-1",
			VideoOwnerID: "owner",
			AuthorID:     "owner",
			AuthorName:   "Owner",
		})
		require.NoError(t, err)
		require.NoError(t, bus.Close())

		rows, err := storage.List(context.Background(), "owner", notifier.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("video event fans out to subscribers", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		bus := eventbus.New()

		manager.RegisterHandlers(bus)

		err := bus.Publish(context.Background(), notifier.EventNewVideo, notifier.NewVideoEvent{
			VideoID:       "video-1",
			UploaderID:    "creator",
			UploaderName:  "Creator",
			Title:         "intro",
			SubscriberIDs: []string{"sub-1", "sub-2", "creator"},
		})
		require.NoError(t, err)
		require.NoError(t, bus.Close())

		for _, sub := range []string{"sub-1", "sub-2"} {
			rows, err := storage.List(context.Background(), sub, notifier.ListOptions{})
			require.NoError(t, err)
			require.Len(t, rows, 1, "subscriber %s", sub)
			assert.Equal(t, notifier.TypeVideoUpload, rows[0].Type)
		}

		// The uploader appears in their own subscriber list but is suppressed.
		rows, err := storage.List(context.Background(), "creator", notifier.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("registration is idempotent", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		bus := eventbus.New()

		manager.RegisterHandlers(bus)
		manager.RegisterHandlers(bus)
		assert.Equal(t, 1, bus.HandlerCount(notifier.EventNewLike))

		err := bus.Publish(context.Background(), notifier.EventNewLike, notifier.NewLikeEvent{
			VideoID:      "video-1",
			VideoOwnerID: "owner",
			AuthorID:     "fan",
			AuthorName:   "Fan",
		})
		require.NoError(t, err)
		require.NoError(t, bus.Close())

		rows, err := storage.List(context.Background(), "owner", notifier.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("failed processing notifies the owner", func(t *testing.T) {
		t.Parallel()

		manager, storage := newTestManager(t)
		bus := eventbus.New()

		manager.RegisterHandlers(bus)

		err := bus.Publish(context.Background(), notifier.EventVideoProcessed, notifier.VideoProcessedEvent{
			VideoID: "video-1",
			OwnerID: "owner",
			Title:   "intro",
			Success: false,
		})
		require.NoError(t, err)
		require.NoError(t, bus.Close())

		rows, err := storage.List(context.Background(), "owner", notifier.ListOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, notifier.TypeSystem, rows[0].Type)
		assert.Contains(t, rows[0].Message, "failed")
	})
}

func TestManager_GroupedBurst(t *testing.T) {
	t.Parallel()

	manager, storage := newTestManager(t)
	ctx := context.Background()

	for _, actor := range []struct{ id, name string }{
		{"u1", "Alice"}, {"u2", "Bob"}, {"u3", "Carol"},
	} {
		_, err := manager.Notify(ctx, notifier.Notification{
			Recipient:    "owner",
			Sender:       actor.id,
			Type:         notifier.TypeLike,
			ResourceType: notifier.ResourceVideo,
			ResourceID:   "video-1",
			Data:         map[string]any{notifier.DataActorNameKey: actor.name},
		})
		require.NoError(t, err)
	}

	rows, err := storage.List(ctx, "owner", notifier.ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Count())
	assert.Equal(t, "Alice and 2 others liked your video", rows[0].Message)

	count, err := manager.CountUnread(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_InAppDeliveryTimestamp(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{channel: preferences.ChannelInApp, delivered: true}
	manager, storage := newTestManager(t, adapter)
	ctx := context.Background()

	n, err := manager.Notify(ctx, notifier.Notification{
		Recipient:    "owner",
		Sender:       "fan",
		Type:         notifier.TypeLike,
		ResourceType: notifier.ResourceVideo,
		ResourceID:   "video-1",
	})
	require.NoError(t, err)

	stored, err := storage.Get(ctx, "owner", n.ID)
	require.NoError(t, err)
	require.True(t, stored.DeliveryStatus.InApp.Delivered)
	require.NotNil(t, stored.DeliveryStatus.InApp.Timestamp)
	assert.WithinDuration(t, time.Now(), *stored.DeliveryStatus.InApp.Timestamp, time.Minute)
}
