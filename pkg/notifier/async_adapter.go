package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/outbox"
	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// DeliveryTaskName returns the outbox task name for a channel's deferred
// delivery, e.g. "notifier.delivery.email".
func DeliveryTaskName(channel preferences.Channel) string {
	return "notifier.delivery." + string(channel)
}

// deliveryTask is the outbox payload for a deferred channel dispatch.
type deliveryTask struct {
	Notification Notification `json:"notification"`
}

// AsyncAdapter defers channel dispatch to the outbox instead of calling the
// provider inline. Send reports delivered=false: the delivery status is
// recorded by the worker once the real adapter attempt succeeds.
type AsyncAdapter struct {
	enqueuer *outbox.Enqueuer
	channel  preferences.Channel
}

// NewAsyncAdapter wraps a channel in outbox-backed dispatch. The matching
// real adapter must be registered on the worker side via
// RegisterDeliveryHandler.
func NewAsyncAdapter(enqueuer *outbox.Enqueuer, channel preferences.Channel) *AsyncAdapter {
	return &AsyncAdapter{enqueuer: enqueuer, channel: channel}
}

func (a *AsyncAdapter) Channel() preferences.Channel {
	return a.channel
}

func (a *AsyncAdapter) Send(ctx context.Context, n Notification) (bool, error) {
	_, err := a.enqueuer.Enqueue(ctx, DeliveryTaskName(a.channel), deliveryTask{Notification: n})
	return false, err
}

// RegisterDeliveryHandler binds a real channel adapter to its outbox task on
// a worker. The handler runs the adapter and records the delivery status on
// the stored notification; a failed attempt is retried by the worker with
// backoff until the task's retry budget runs out.
func RegisterDeliveryHandler(w *outbox.Worker, adapter ChannelAdapter, storage Storage) {
	channel := adapter.Channel()
	w.Register(DeliveryTaskName(channel), func(ctx context.Context, payload json.RawMessage) error {
		var task deliveryTask
		if err := json.Unmarshal(payload, &task); err != nil {
			return fmt.Errorf("notifier: malformed delivery task payload: %w", err)
		}

		delivered, err := adapter.Send(ctx, task.Notification)
		if err != nil {
			return err
		}
		if delivered {
			n := task.Notification
			if err := storage.SetChannelStatus(ctx, n.Recipient, n.ID, channel, true, time.Now()); err != nil {
				return err
			}
		}
		return nil
	})
}
