package notifier

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifykit/pkg/eventbus"
)

// Inbound event types produced by the REST layer.
const (
	EventNewSubscription = "NEW_SUBSCRIPTION"
	EventNewVideo        = "NEW_VIDEO"
	EventNewComment      = "NEW_COMMENT"
	EventNewLike         = "NEW_LIKE"
	EventVideoProcessed  = "VIDEO_PROCESSED"
	EventMention         = "MENTION"
)

// NewCommentEvent is published when a comment lands on a video.
type NewCommentEvent struct {
	VideoID      string `json:"video_id"`
	VideoOwnerID string `json:"video_owner_id"`
	CommentID    string `json:"comment_id"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name"`
}

// NewLikeEvent is published when a video receives a like.
type NewLikeEvent struct {
	VideoID      string `json:"video_id"`
	VideoOwnerID string `json:"video_owner_id"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name"`
}

// NewSubscriptionEvent is published when a user subscribes to a channel.
type NewSubscriptionEvent struct {
	ChannelOwnerID string `json:"channel_owner_id"`
	SubscriberID   string `json:"subscriber_id"`
	SubscriberName string `json:"subscriber_name"`
}

// NewVideoEvent is published when a creator uploads a video. SubscriberIDs
// carries the audience to notify, resolved by the producer.
type NewVideoEvent struct {
	VideoID       string   `json:"video_id"`
	UploaderID    string   `json:"uploader_id"`
	UploaderName  string   `json:"uploader_name"`
	Title         string   `json:"title"`
	SubscriberIDs []string `json:"subscriber_ids"`
}

// VideoProcessedEvent is published when transcoding finishes.
type VideoProcessedEvent struct {
	VideoID string `json:"video_id"`
	OwnerID string `json:"owner_id"`
	Title   string `json:"title"`
	Success bool   `json:"success"`
}

// MentionEvent is published when a comment mentions a user.
type MentionEvent struct {
	VideoID         string `json:"video_id"`
	CommentID       string `json:"comment_id"`
	AuthorID        string `json:"author_id"`
	AuthorName      string `json:"author_name"`
	MentionedUserID string `json:"mentioned_user_id"`
}

// RegisterHandlers subscribes the pipeline's event handlers on the bus.
// Each handler maps one inbound event to notification candidates and runs
// them through the pipeline; handler errors stay at the bus boundary and
// never reach the producer.
func (m *Manager) RegisterHandlers(bus *eventbus.Bus) {
	bus.Subscribe(EventNewComment, eventbus.HandlerFunc("notifier.new_comment",
		func(ctx context.Context, e NewCommentEvent) error {
			if e.VideoOwnerID == "" {
				return fmt.Errorf("notifier: %s event missing video owner", EventNewComment)
			}
			_, err := m.Notify(ctx, Notification{
				Recipient:    e.VideoOwnerID,
				Sender:       e.AuthorID,
				Type:         TypeComment,
				ResourceType: ResourceVideo,
				ResourceID:   e.VideoID,
				Data: map[string]any{
					DataActorNameKey: e.AuthorName,
					"comment_id":     e.CommentID,
				},
			})
			return err
		}))

	bus.Subscribe(EventNewLike, eventbus.HandlerFunc("notifier.new_like",
		func(ctx context.Context, e NewLikeEvent) error {
			if e.VideoOwnerID == "" {
				return fmt.Errorf("notifier: %s event missing video owner", EventNewLike)
			}
			_, err := m.Notify(ctx, Notification{
				Recipient:    e.VideoOwnerID,
				Sender:       e.AuthorID,
				Type:         TypeLike,
				ResourceType: ResourceVideo,
				ResourceID:   e.VideoID,
				Data: map[string]any{
					DataActorNameKey: e.AuthorName,
				},
			})
			return err
		}))

	bus.Subscribe(EventNewSubscription, eventbus.HandlerFunc("notifier.new_subscription",
		func(ctx context.Context, e NewSubscriptionEvent) error {
			if e.ChannelOwnerID == "" {
				return fmt.Errorf("notifier: %s event missing channel owner", EventNewSubscription)
			}
			_, err := m.Notify(ctx, Notification{
				Recipient:    e.ChannelOwnerID,
				Sender:       e.SubscriberID,
				Type:         TypeSubscription,
				ResourceType: ResourceUser,
				ResourceID:   e.ChannelOwnerID,
				Data: map[string]any{
					DataActorNameKey: e.SubscriberName,
				},
			})
			return err
		}))

	bus.Subscribe(EventNewVideo, eventbus.HandlerFunc("notifier.new_video",
		func(ctx context.Context, e NewVideoEvent) error {
			if e.VideoID == "" {
				return fmt.Errorf("notifier: %s event missing video id", EventNewVideo)
			}
			var firstErr error
			for _, subscriberID := range e.SubscriberIDs {
				_, err := m.Notify(ctx, Notification{
					Recipient:    subscriberID,
					Sender:       e.UploaderID,
					Type:         TypeVideoUpload,
					ResourceType: ResourceVideo,
					ResourceID:   e.VideoID,
					Data: map[string]any{
						DataActorNameKey: e.UploaderName,
						"title":          e.Title,
					},
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}))

	bus.Subscribe(EventVideoProcessed, eventbus.HandlerFunc("notifier.video_processed",
		func(ctx context.Context, e VideoProcessedEvent) error {
			if e.OwnerID == "" {
				return fmt.Errorf("notifier: %s event missing owner", EventVideoProcessed)
			}
			message := fmt.Sprintf("Your video %q is ready to watch", e.Title)
			if !e.Success {
				message = fmt.Sprintf("Processing of your video %q failed", e.Title)
			}
			_, err := m.Notify(ctx, Notification{
				Recipient:    e.OwnerID,
				Type:         TypeSystem,
				ResourceType: ResourceVideo,
				ResourceID:   e.VideoID,
				Message:      message,
			})
			return err
		}))

	bus.Subscribe(EventMention, eventbus.HandlerFunc("notifier.mention",
		func(ctx context.Context, e MentionEvent) error {
			if e.MentionedUserID == "" {
				return fmt.Errorf("notifier: %s event missing mentioned user", EventMention)
			}
			_, err := m.Notify(ctx, Notification{
				Recipient:    e.MentionedUserID,
				Sender:       e.AuthorID,
				Type:         TypeMention,
				ResourceType: ResourceComment,
				ResourceID:   e.CommentID,
				Data: map[string]any{
					DataActorNameKey: e.AuthorName,
					"video_id":       e.VideoID,
				},
			})
			return err
		}))
}
