package notifier

import (
	"time"

	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// Type represents the notification type.
type Type string

const (
	TypeComment      Type = "COMMENT"
	TypeLike         Type = "LIKE"
	TypeSubscription Type = "SUBSCRIPTION"
	TypeVideoUpload  Type = "VIDEO_UPLOAD"
	TypeMention      Type = "MENTION"
	TypeSystem       Type = "SYSTEM"
)

// ResourceType identifies the kind of resource a notification points at.
type ResourceType string

const (
	ResourceVideo   ResourceType = "VIDEO"
	ResourceComment ResourceType = "COMMENT"
	ResourceUser    ResourceType = "USER"
	ResourceSystem  ResourceType = "SYSTEM"
)

// DataCountKey is the Data key holding the grouped event count.
const DataCountKey = "count"

// ChannelStatus records one delivery attempt outcome for a channel.
type ChannelStatus struct {
	Delivered bool       `json:"delivered" bson:"delivered"`
	Timestamp *time.Time `json:"timestamp,omitempty" bson:"timestamp,omitempty"`
}

// DeliveryStatus tracks per-channel delivery state. In-app delivery stays
// false while the recipient is offline; they catch up on the next feed pull.
type DeliveryStatus struct {
	InApp ChannelStatus `json:"in_app" bson:"in_app"`
	Email ChannelStatus `json:"email" bson:"email"`
	Push  ChannelStatus `json:"push" bson:"push"`
}

// Notification is the persistent record produced by the pipeline.
// Mutated only by grouping updates, recipient read-status mutations, and
// delivery-status updates written after a delivery attempt.
type Notification struct {
	ID             string         `json:"id" bson:"_id"`
	Recipient      string         `json:"recipient" bson:"recipient"`
	Sender         string         `json:"sender,omitempty" bson:"sender,omitempty"` // absent for system notifications
	Type           Type           `json:"type" bson:"type"`
	ResourceType   ResourceType   `json:"resource_type" bson:"resource_type"`
	ResourceID     string         `json:"resource_id" bson:"resource_id"`
	Message        string         `json:"message" bson:"message"`
	IsRead         bool           `json:"is_read" bson:"is_read"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" bson:"delivery_status"`
	Data           map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// GroupKey is the tuple used to collapse near-duplicate notifications.
type GroupKey struct {
	Recipient    string
	Type         Type
	ResourceType ResourceType
	ResourceID   string
}

// GroupKey returns the notification's grouping key.
func (n *Notification) GroupKey() GroupKey {
	return GroupKey{
		Recipient:    n.Recipient,
		Type:         n.Type,
		ResourceType: n.ResourceType,
		ResourceID:   n.ResourceID,
	}
}

// Count returns the grouped event count, defaulting to 1 when absent.
// JSON and BSON decoding produce different numeric types for the same
// stored value, so all of them are accepted.
func (n *Notification) Count() int {
	if n.Data == nil {
		return 1
	}
	switch v := n.Data[DataCountKey].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 1
	}
}

// ChannelStatusFor returns the recorded status for a channel. SMS has no
// tracked status: the pipeline dispatches in-app, email, and push.
func (n *Notification) ChannelStatusFor(channel preferences.Channel) ChannelStatus {
	switch channel {
	case preferences.ChannelInApp:
		return n.DeliveryStatus.InApp
	case preferences.ChannelEmail:
		return n.DeliveryStatus.Email
	case preferences.ChannelPush:
		return n.DeliveryStatus.Push
	default:
		return ChannelStatus{}
	}
}

// WireMessage is the real-time frame sent to connected clients.
type WireMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
