package preferences

import (
	"time"
)

// Channel is a delivery medium for notifications.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// AllChannels lists every known delivery channel.
func AllChannels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}
}

// TypePreference holds the per-notification-type settings: a type-level
// enabled flag plus per-channel overrides. A channel missing from Channels
// means "no override" and defaults to allowed.
type TypePreference struct {
	Enabled  bool             `json:"enabled" bson:"enabled"`
	Channels map[Channel]bool `json:"channels,omitempty" bson:"channels,omitempty"`
}

// Preference is one record per user: master per-channel toggles plus
// per-notification-type settings. Mutated only by the owning user.
type Preference struct {
	UserID    string                    `json:"user_id" bson:"user_id"`
	Channels  map[Channel]bool          `json:"channels" bson:"channels"`
	Types     map[string]TypePreference `json:"types,omitempty" bson:"types,omitempty"`
	CreatedAt time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at" bson:"updated_at"`
}

// Default returns the preference record created lazily on first access:
// all channels enabled except SMS, all notification types enabled.
func Default(userID string) Preference {
	now := time.Now()
	return Preference{
		UserID: userID,
		Channels: map[Channel]bool{
			ChannelInApp: true,
			ChannelEmail: true,
			ChannelPush:  true,
			ChannelSMS:   false,
		},
		Types:     make(map[string]TypePreference),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Allows reports whether delivery is permitted for the given notification
// type and channel. Effective permission is the conjunction of the
// type-level enabled flag, the master channel toggle, and the type's
// channel override. Absent settings default to allowed, except the SMS
// master toggle which defaults off.
func (p Preference) Allows(notifType string, channel Channel) bool {
	master, ok := p.Channels[channel]
	if !ok {
		master = channel != ChannelSMS
	}
	if !master {
		return false
	}

	tp, ok := p.Types[notifType]
	if !ok {
		return true
	}
	if !tp.Enabled {
		return false
	}
	if override, ok := tp.Channels[channel]; ok {
		return override
	}
	return true
}
