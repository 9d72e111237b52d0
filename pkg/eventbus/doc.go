// Package eventbus provides an in-process publish/subscribe bus with
// fire-and-forget semantics.
//
// Publishing never blocks on handlers and never surfaces handler errors to
// the producer: each handler runs on its own goroutine, failures are logged,
// and a panicking handler cannot take down the process.
//
// Basic usage:
//
//	bus := eventbus.New()
//	defer bus.Close()
//
//	bus.Subscribe("ORDER_PLACED", eventbus.HandlerFunc("billing.invoice",
//		func(ctx context.Context, e OrderPlacedEvent) error {
//			return createInvoice(ctx, e)
//		}))
//
//	bus.Publish(ctx, "ORDER_PLACED", OrderPlacedEvent{OrderID: id})
//
// Subscribing the same handler name to the same event type twice is a
// no-op, so registration is safe to run on every startup path.
package eventbus
