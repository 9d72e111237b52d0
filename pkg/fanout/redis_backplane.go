package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix is the Redis channel prefix when none is configured.
// Each user gets a logical channel addressed by identity, e.g.
// "notify:user:42".
const DefaultChannelPrefix = "notify:user:"

// RedisBackplane implements Backplane over Redis pub/sub so that any process
// instance can trigger delivery on the process that owns the socket.
type RedisBackplane struct {
	client    redis.UniversalClient
	prefix    string
	mu        sync.Mutex
	closed    bool
	cancelers []context.CancelFunc
}

// RedisBackplaneOption configures a RedisBackplane.
type RedisBackplaneOption func(*RedisBackplane)

// WithChannelPrefix overrides the Redis channel prefix.
func WithChannelPrefix(prefix string) RedisBackplaneOption {
	return func(b *RedisBackplane) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// NewRedisBackplane creates a Redis-backed backplane.
// The client is owned by the caller and is not closed by Close.
func NewRedisBackplane(client redis.UniversalClient, opts ...RedisBackplaneOption) *RedisBackplane {
	b := &RedisBackplane{
		client: client,
		prefix: DefaultChannelPrefix,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// wireEnvelope is the JSON shape published on the Redis channel. The user ID
// travels in the channel name, not the body.
type wireEnvelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBackplaneClosed
	}
	b.mu.Unlock()

	body, err := json.Marshal(wireEnvelope{
		Origin:  env.Origin,
		Payload: env.Payload,
	})
	if err != nil {
		return err
	}

	return b.client.Publish(ctx, b.prefix+env.UserID, body).Err()
}

// Subscribe opens a pattern subscription covering every user channel and
// forwards decoded envelopes until the context is cancelled.
func (b *RedisBackplane) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBackplaneClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	b.cancelers = append(b.cancelers, cancel)
	b.mu.Unlock()

	pubsub := b.client.PSubscribe(subCtx, b.prefix+"*")
	// Force the subscription handshake so a dead Redis surfaces here
	// instead of as a silently empty channel.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan Envelope, 64)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		in := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				env, err := b.decode(msg)
				if err != nil {
					continue
				}
				select {
				case out <- env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (b *RedisBackplane) decode(msg *redis.Message) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
		return Envelope{}, err
	}
	userID := strings.TrimPrefix(msg.Channel, b.prefix)
	if userID == "" {
		return Envelope{}, errors.New("fanout: empty user id in channel name")
	}
	return Envelope{
		Origin:  wire.Origin,
		UserID:  userID,
		Payload: wire.Payload,
	}, nil
}

func (b *RedisBackplane) Healthy(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBackplaneClosed
	}
	b.mu.Unlock()

	return b.client.Ping(ctx).Err()
}

func (b *RedisBackplane) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, cancel := range b.cancelers {
		cancel()
	}
	b.cancelers = nil
	return nil
}
