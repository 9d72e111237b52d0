package fanout

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrBackplaneClosed = errors.New("fanout: backplane is closed")
	ErrHubClosed       = errors.New("fanout: hub is closed")
)

// Envelope is the unit carried over the backplane. Origin identifies the
// publishing process so it can skip its own echo; local sessions are served
// directly at publish time.
type Envelope struct {
	Origin  string `json:"origin"`
	UserID  string `json:"user_id"`
	Payload []byte `json:"payload"`
}

// Backplane is the cross-process broadcast mechanism enabling any process to
// reach a connection owned by another process. Durability is handled by the
// notification store, not this layer: delivery over the backplane is
// fire-and-forget, at-most-once.
type Backplane interface {
	// Publish broadcasts an envelope to all subscribed processes.
	Publish(ctx context.Context, env Envelope) error

	// Subscribe returns a channel of envelopes published by any process.
	// The subscription lives until the context is cancelled or the
	// backplane is closed.
	Subscribe(ctx context.Context) (<-chan Envelope, error)

	// Healthy reports whether the backplane is reachable.
	Healthy(ctx context.Context) error

	// Close releases resources. Idempotent.
	Close() error
}

// MemoryBackplane is an in-process Backplane for single-process deployments
// and tests. Multiple hubs sharing one MemoryBackplane behave like processes
// sharing a broker.
type MemoryBackplane struct {
	subscribers map[chan Envelope]struct{}
	bufferSize  int
	closed      bool
	mu          sync.RWMutex
}

// NewMemoryBackplane creates an in-memory backplane. bufferSize determines
// each subscriber's channel buffer; sends to a full buffer are dropped
// rather than blocking the publisher.
func NewMemoryBackplane(bufferSize int) *MemoryBackplane {
	return &MemoryBackplane{
		subscribers: make(map[chan Envelope]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

func (b *MemoryBackplane) Publish(ctx context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBackplaneClosed
	}

	for ch := range b.subscribers {
		select {
		case ch <- env:
		default:
			// Slow subscriber, drop. At-most-once semantics.
		}
	}
	return nil
}

func (b *MemoryBackplane) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBackplaneClosed
	}

	ch := make(chan Envelope, b.bufferSize)
	b.subscribers[ch] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(ch)
		}()
	}

	return ch, nil
}

func (b *MemoryBackplane) Healthy(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBackplaneClosed
	}
	return nil
}

func (b *MemoryBackplane) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for ch := range b.subscribers {
		close(ch)
	}
	clear(b.subscribers)
	return nil
}

func (b *MemoryBackplane) unsubscribe(ch chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}
