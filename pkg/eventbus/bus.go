package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

var (
	ErrBusClosed       = errors.New("eventbus: bus is closed")
	ErrPayloadInvalid  = errors.New("eventbus: failed to marshal event payload")
	ErrShutdownTimeout = errors.New("eventbus: shutdown timeout exceeded")
)

// Event is an immutable fact published on the bus. The payload is kept as
// raw JSON so handlers can decode into their own typed views.
type Event struct {
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Bus is an in-process publish/subscribe registry mapping event types to
// handler sets. It is constructed once per process and passed by reference
// to producers and consumers; tests construct isolated instances.
//
// Publish is fire-and-forget: handlers run on their own goroutines, and a
// handler failure or panic never propagates to the producer nor prevents
// other handlers for the same event from running.
type Bus struct {
	handlers        map[string][]Handler
	mu              sync.RWMutex
	wg              sync.WaitGroup
	closed          bool
	log             *slog.Logger
	shutdownTimeout time.Duration
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(log *slog.Logger) Option {
	return func(b *Bus) {
		if log != nil {
			b.log = log
		}
	}
}

// WithShutdownTimeout bounds how long Close waits for in-flight handlers.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers:        make(map[string][]Handler),
		log:             slog.Default(),
		shutdownTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for an event type. Registration is
// idempotent per (type, handler name) pair: re-subscribing a handler with
// the same name replaces the previous registration instead of duplicating it.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.handlers[eventType] {
		if existing.Name() == h.Name() {
			b.handlers[eventType][i] = h
			return
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish emits an event to all handlers registered for its type.
// The payload is marshaled once; each handler receives the same raw bytes
// and runs on its own goroutine. Publish returns as soon as the handlers
// are scheduled — producers never block on notification side effects.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Join(ErrPayloadInvalid, err)
	}

	event := Event{
		Type:       eventType,
		Payload:    raw,
		OccurredAt: time.Now(),
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers := make([]Handler, len(b.handlers[eventType]))
	copy(handlers, b.handlers[eventType])
	b.wg.Add(len(handlers))
	b.mu.RUnlock()

	for _, h := range handlers {
		go func(h Handler) {
			defer b.wg.Done()
			b.invoke(ctx, h, event)
		}(h)
	}

	return nil
}

// invoke runs a single handler with panic isolation. Errors and panics are
// absorbed at the bus boundary per fire-and-forget semantics.
func (b *Bus) invoke(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.LogAttrs(ctx, slog.LevelError, "Event handler panicked",
				logger.EventType(event.Type),
				logger.Handler(h.Name()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		b.log.LogAttrs(ctx, slog.LevelError, "Event handler failed",
			logger.EventType(event.Type),
			logger.Handler(h.Name()),
			logger.Error(err),
		)
	}
}

// Close stops accepting new events and waits for in-flight handlers,
// bounded by the shutdown timeout. It is safe to call multiple times.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(b.shutdownTimeout):
		return ErrShutdownTimeout
	}
}

// HandlerCount returns the number of handlers registered for an event type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Handler processes events published on the bus.
type Handler interface {
	// Name identifies the handler for idempotent registration and logging.
	Name() string
	// Handle processes a single event. Returning an error marks the
	// handler invocation as failed; the error is logged and absorbed.
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc builds a typed handler that decodes the event payload into T
// before invoking fn. A payload that fails to decode is rejected at handler
// entry without affecting other handlers.
func HandlerFunc[T any](name string, fn func(ctx context.Context, payload T) error) Handler {
	return &typedHandler[T]{name: name, fn: fn}
}

type typedHandler[T any] struct {
	name string
	fn   func(ctx context.Context, payload T) error
}

func (h *typedHandler[T]) Name() string {
	return h.name
}

func (h *typedHandler[T]) Handle(ctx context.Context, event Event) error {
	var payload T
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("eventbus: malformed payload for event %q: %w", event.Type, err)
	}
	return h.fn(ctx, payload)
}
