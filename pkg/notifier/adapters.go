package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/dmitrymomot/notifykit/pkg/email"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// InAppAdapter delivers notifications to live sessions through the fanout
// hub. Real-time push is best-effort and at-most-once: an offline recipient
// sees the notification on the next feed pull instead.
type InAppAdapter struct {
	hub *fanout.Hub
}

// NewInAppAdapter creates the real-time in-app channel adapter.
func NewInAppAdapter(hub *fanout.Hub) *InAppAdapter {
	return &InAppAdapter{hub: hub}
}

func (a *InAppAdapter) Channel() preferences.Channel {
	return preferences.ChannelInApp
}

func (a *InAppAdapter) Send(ctx context.Context, n Notification) (bool, error) {
	payload, err := json.Marshal(WireMessage{Type: "notification", Data: n})
	if err != nil {
		return false, err
	}

	delivered, err := a.hub.PublishToUser(ctx, n.Recipient, payload)
	if err != nil {
		return false, err
	}
	// Zero live sessions on this process is a normal offline outcome.
	// Sessions on other processes are reached via the backplane; their
	// delivery is fire-and-forget and not reflected here.
	return delivered > 0, nil
}

// AddressBook resolves a user identity to an email address. It is an
// external collaborator owned by the user service.
type AddressBook interface {
	EmailAddress(ctx context.Context, userID string) (string, error)
}

// EmailAdapter delivers notifications over transactional email.
type EmailAdapter struct {
	sender    email.Sender
	addresses AddressBook
}

// NewEmailAdapter creates the email channel adapter.
func NewEmailAdapter(sender email.Sender, addresses AddressBook) *EmailAdapter {
	return &EmailAdapter{sender: sender, addresses: addresses}
}

func (a *EmailAdapter) Channel() preferences.Channel {
	return preferences.ChannelEmail
}

func (a *EmailAdapter) Send(ctx context.Context, n Notification) (bool, error) {
	addr, err := a.addresses.EmailAddress(ctx, n.Recipient)
	if err != nil {
		return false, fmt.Errorf("notifier: failed to resolve recipient email: %w", err)
	}

	if err := a.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   addr,
		Subject:  emailSubject(n),
		BodyHTML: emailBody(n),
		Tag:      "notification-" + string(n.Type),
	}); err != nil {
		return false, err
	}
	return true, nil
}

func emailSubject(n Notification) string {
	if n.Type == TypeSystem {
		return "Notification"
	}
	return n.Message
}

func emailBody(n Notification) string {
	return fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Message))
}

// PushSender sends a mobile/web push message. It is an external
// collaborator (FCM, APNs, web push) wired in by the host application.
type PushSender interface {
	Push(ctx context.Context, userID, message string, data map[string]any) error
}

// PushAdapter delivers notifications over push.
type PushAdapter struct {
	sender PushSender
}

// NewPushAdapter creates the push channel adapter.
func NewPushAdapter(sender PushSender) *PushAdapter {
	return &PushAdapter{sender: sender}
}

func (a *PushAdapter) Channel() preferences.Channel {
	return preferences.ChannelPush
}

func (a *PushAdapter) Send(ctx context.Context, n Notification) (bool, error) {
	if a.sender == nil {
		return false, errors.New("notifier: push sender is not configured")
	}
	if err := a.sender.Push(ctx, n.Recipient, n.Message, n.Data); err != nil {
		return false, err
	}
	return true, nil
}
