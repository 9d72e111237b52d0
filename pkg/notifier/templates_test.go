package notifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/notifier"
)

func TestRenderMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   notifier.Type
		actor string
		count int
		want  string
	}{
		{
			name:  "single comment",
			typ:   notifier.TypeComment,
			actor: "Alice",
			count: 1,
			want:  "Alice commented on your video",
		},
		{
			name:  "grouped comments",
			typ:   notifier.TypeComment,
			actor: "Alice",
			count: 4,
			want:  "Alice and 3 others commented on your video",
		},
		{
			name:  "single like",
			typ:   notifier.TypeLike,
			actor: "Bob",
			count: 1,
			want:  "Bob liked your video",
		},
		{
			name:  "grouped likes",
			typ:   notifier.TypeLike,
			actor: "Bob",
			count: 3,
			want:  "Bob and 2 others liked your video",
		},
		{
			name:  "grouped subscriptions",
			typ:   notifier.TypeSubscription,
			actor: "Carol",
			count: 2,
			want:  "Carol and 1 others subscribed to your channel",
		},
		{
			name:  "video upload ignores count",
			typ:   notifier.TypeVideoUpload,
			actor: "Dave",
			count: 5,
			want:  "Dave uploaded a new video",
		},
		{
			name:  "single mention",
			typ:   notifier.TypeMention,
			actor: "Eve",
			count: 1,
			want:  "Eve mentioned you in a comment",
		},
		{
			name:  "repeated mentions",
			typ:   notifier.TypeMention,
			actor: "Eve",
			count: 3,
			want:  "Eve mentioned you 3 times",
		},
		{
			name:  "missing actor gets placeholder",
			typ:   notifier.TypeLike,
			actor: "",
			count: 1,
			want:  "Someone liked your video",
		},
		{
			name:  "system type has no template",
			typ:   notifier.TypeSystem,
			actor: "Alice",
			count: 1,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, notifier.RenderMessage(tt.typ, tt.actor, tt.count))
		})
	}
}

func TestNotification_Count(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data map[string]any
		want int
	}{
		{name: "nil data", data: nil, want: 1},
		{name: "missing key", data: map[string]any{}, want: 1},
		{name: "int", data: map[string]any{notifier.DataCountKey: 3}, want: 3},
		{name: "int32 from bson", data: map[string]any{notifier.DataCountKey: int32(4)}, want: 4},
		{name: "int64 from bson", data: map[string]any{notifier.DataCountKey: int64(5)}, want: 5},
		{name: "float64 from json", data: map[string]any{notifier.DataCountKey: float64(6)}, want: 6},
		{name: "unexpected type", data: map[string]any{notifier.DataCountKey: "7"}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := notifier.Notification{Data: tt.data}
			assert.Equal(t, tt.want, n.Count())
		})
	}
}
