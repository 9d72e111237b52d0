package preferences_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

func TestPreference_Allows(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pref      preferences.Preference
		notifType string
		channel   preferences.Channel
		want      bool
	}{
		{
			name:      "defaults allow email",
			pref:      preferences.Default("user-1"),
			notifType: "COMMENT",
			channel:   preferences.ChannelEmail,
			want:      true,
		},
		{
			name:      "defaults deny sms",
			pref:      preferences.Default("user-1"),
			notifType: "COMMENT",
			channel:   preferences.ChannelSMS,
			want:      false,
		},
		{
			name: "empty record allows non-sms channels",
			pref: preferences.Preference{UserID: "user-1"},

			notifType: "LIKE",
			channel:   preferences.ChannelPush,
			want:      true,
		},
		{
			name: "empty record denies sms",
			pref: preferences.Preference{UserID: "user-1"},

			notifType: "LIKE",
			channel:   preferences.ChannelSMS,
			want:      false,
		},
		{
			name: "master toggle off wins over type settings",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelEmail: false},
				Types: map[string]preferences.TypePreference{
					"COMMENT": {Enabled: true, Channels: map[preferences.Channel]bool{preferences.ChannelEmail: true}},
				},
			},
			notifType: "COMMENT",
			channel:   preferences.ChannelEmail,
			want:      false,
		},
		{
			name: "type disabled denies all channels",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelInApp: true},
				Types: map[string]preferences.TypePreference{
					"LIKE": {Enabled: false},
				},
			},
			notifType: "LIKE",
			channel:   preferences.ChannelInApp,
			want:      false,
		},
		{
			name: "type channel override denies a single channel",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelEmail: true, preferences.ChannelInApp: true},
				Types: map[string]preferences.TypePreference{
					"COMMENT": {Enabled: true, Channels: map[preferences.Channel]bool{preferences.ChannelEmail: false}},
				},
			},
			notifType: "COMMENT",
			channel:   preferences.ChannelEmail,
			want:      false,
		},
		{
			name: "type channel override leaves other channels allowed",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelEmail: true, preferences.ChannelInApp: true},
				Types: map[string]preferences.TypePreference{
					"COMMENT": {Enabled: true, Channels: map[preferences.Channel]bool{preferences.ChannelEmail: false}},
				},
			},
			notifType: "COMMENT",
			channel:   preferences.ChannelInApp,
			want:      true,
		},
		{
			name: "unknown type falls back to master toggles",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelPush: true},
				Types: map[string]preferences.TypePreference{
					"COMMENT": {Enabled: false},
				},
			},
			notifType: "MENTION",
			channel:   preferences.ChannelPush,
			want:      true,
		},
		{
			name: "sms allowed when explicitly enabled",
			pref: preferences.Preference{
				UserID:   "user-1",
				Channels: map[preferences.Channel]bool{preferences.ChannelSMS: true},
			},
			notifType: "SYSTEM",
			channel:   preferences.ChannelSMS,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.pref.Allows(tt.notifType, tt.channel))
		})
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	pref := preferences.Default("user-1")
	assert.Equal(t, "user-1", pref.UserID)
	assert.True(t, pref.Channels[preferences.ChannelInApp])
	assert.True(t, pref.Channels[preferences.ChannelEmail])
	assert.True(t, pref.Channels[preferences.ChannelPush])
	assert.False(t, pref.Channels[preferences.ChannelSMS])
	assert.False(t, pref.CreatedAt.IsZero())
}
