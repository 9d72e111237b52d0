package notifier

import "fmt"

// DataActorNameKey is the Data key holding the display name of the user who
// triggered the notification. Grouped re-renders read it back from the
// stored row, so the first actor of a burst names the group.
const DataActorNameKey = "actor_name"

// RenderMessage produces the user-facing message for a notification type,
// actor, and grouped count. Each grouping update re-renders the message with
// the new count.
func RenderMessage(t Type, actor string, count int) string {
	if actor == "" {
		actor = "Someone"
	}

	switch t {
	case TypeComment:
		if count > 1 {
			return fmt.Sprintf("%s and %d others commented on your video", actor, count-1)
		}
		return fmt.Sprintf("%s commented on your video", actor)
	case TypeLike:
		if count > 1 {
			return fmt.Sprintf("%s and %d others liked your video", actor, count-1)
		}
		return fmt.Sprintf("%s liked your video", actor)
	case TypeSubscription:
		if count > 1 {
			return fmt.Sprintf("%s and %d others subscribed to your channel", actor, count-1)
		}
		return fmt.Sprintf("%s subscribed to your channel", actor)
	case TypeVideoUpload:
		return fmt.Sprintf("%s uploaded a new video", actor)
	case TypeMention:
		if count > 1 {
			return fmt.Sprintf("%s mentioned you %d times", actor, count)
		}
		return fmt.Sprintf("%s mentioned you in a comment", actor)
	default:
		return ""
	}
}

// actorName extracts the stored actor display name from a notification.
func actorName(n *Notification) string {
	return actorNameFromData(n.Data)
}
