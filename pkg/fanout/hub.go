package fanout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// ErrBackplaneDegraded is reported by Healthy while the hub is serving
// local-process connections only.
var ErrBackplaneDegraded = errors.New("fanout: backplane unavailable, delivering to local sessions only")

// GreetingFrame is sent to a session immediately after registration.
const greetingFrame = `{"type":"connection_successful","data":{"message":"real-time notifications connected"}}`

// Hub maintains the mapping from user identity to live sessions on this
// process and fans published payloads out to every session of a user,
// locally and across processes via the backplane.
//
// The session registry is process-local and mutated only through Connect
// and Disconnect; cross-process visibility exists only through the
// backplane. Transport authentication happens before Connect: the hub
// assumes the user identity is already verified.
type Hub struct {
	processID  string
	backplane  Backplane
	sessions   map[string]map[string]*Session
	mu         sync.RWMutex
	bufferSize int
	log        *slog.Logger
	degraded   atomic.Bool
	resubWait  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(log *slog.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithSessionBuffer sets the per-session channel buffer size.
// Sends to a full session buffer are dropped, never blocked on.
func WithSessionBuffer(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

// WithResubscribeInterval sets the wait between backplane resubscribe
// attempts after the subscription drops.
func WithResubscribeInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.resubWait = d
		}
	}
}

// NewHub creates a fanout hub on top of the given backplane and starts
// consuming cross-process envelopes. A backplane that cannot be subscribed
// to does not fail construction: the hub starts degraded (local delivery
// only) and keeps retrying in the background.
func NewHub(backplane Backplane, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		processID:  uuid.New().String(),
		backplane:  backplane,
		sessions:   make(map[string]map[string]*Session),
		bufferSize: 64,
		log:        slog.Default(),
		resubWait:  5 * time.Second,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.wg.Add(1)
	go h.consume()

	return h
}

// Connect registers a live connection for an already-authenticated user and
// returns its session. A user may hold any number of simultaneous sessions
// (multiple devices or tabs). The session is removed automatically when the
// provided context is cancelled.
func (h *Hub) Connect(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("fanout: user ID is required")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}

	s := &Session{
		id:     uuid.New().String(),
		userID: userID,
		ch:     make(chan []byte, h.bufferSize),
		hub:    h,
	}

	userSessions, ok := h.sessions[userID]
	if !ok {
		userSessions = make(map[string]*Session)
		h.sessions[userID] = userSessions
	}
	userSessions[s.id] = s
	h.mu.Unlock()

	// Greeting confirms registration to the client before any notification
	// payloads arrive.
	s.send([]byte(greetingFrame))

	if ctx.Done() != nil {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-h.ctx.Done():
			}
		}()
	}

	return s, nil
}

// Disconnect deregisters a session. Idempotent.
func (h *Hub) Disconnect(s *Session) {
	if s != nil {
		_ = s.Close()
	}
}

// PublishToUser delivers a payload to every currently-connected session of
// the user: directly to sessions on this process, and via the backplane to
// sessions owned by other processes. It returns the number of local sessions
// the payload was handed to and never waits for client acknowledgment.
//
// Zero active connections is a normal outcome, not an error. A backplane
// publish failure degrades delivery to this process only; the condition is
// logged and surfaced through Healthy, never escalated to the caller.
func (h *Hub) PublishToUser(ctx context.Context, userID string, payload []byte) (int, error) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0, ErrHubClosed
	}
	h.mu.RUnlock()

	delivered := h.deliverLocal(userID, payload)

	err := h.backplane.Publish(ctx, Envelope{
		Origin:  h.processID,
		UserID:  userID,
		Payload: payload,
	})
	if err != nil {
		h.degraded.Store(true)
		h.log.LogAttrs(ctx, slog.LevelWarn, "Backplane publish failed, delivered to local sessions only",
			logger.UserID(userID),
			logger.Error(err),
		)
		return delivered, nil
	}
	h.degraded.Store(false)

	return delivered, nil
}

// SessionCount returns the number of live sessions for a user on this process.
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Healthy reports whether cross-process delivery is operational. While the
// backplane is unreachable the hub keeps serving local sessions, so this is
// a health signal rather than a hard failure.
func (h *Hub) Healthy(ctx context.Context) error {
	if h.degraded.Load() {
		return ErrBackplaneDegraded
	}
	if err := h.backplane.Healthy(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBackplaneDegraded, err)
	}
	return nil
}

// Close shuts down the hub and closes all sessions.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true

	var all []*Session
	for _, userSessions := range h.sessions {
		for _, s := range userSessions {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}

	h.cancel()
	h.wg.Wait()
	return nil
}

// consume pumps backplane envelopes into local sessions, skipping this
// process's own publishes (served directly at publish time). A dropped
// subscription flips the hub into degraded mode and is retried until the
// hub closes.
func (h *Hub) consume() {
	defer h.wg.Done()

	for {
		sub, err := h.backplane.Subscribe(h.ctx)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			h.degraded.Store(true)
			h.log.LogAttrs(h.ctx, slog.LevelWarn, "Backplane subscribe failed, retrying",
				logger.Component("fanout"),
				logger.Error(err),
			)
			select {
			case <-h.ctx.Done():
				return
			case <-time.After(h.resubWait):
			}
			continue
		}

		h.degraded.Store(false)

		for env := range sub {
			if env.Origin == h.processID {
				continue
			}
			h.deliverLocal(env.UserID, env.Payload)
		}

		if h.ctx.Err() != nil {
			return
		}
		h.degraded.Store(true)
		h.log.LogAttrs(h.ctx, slog.LevelWarn, "Backplane subscription dropped, delivering to local sessions only",
			logger.Component("fanout"),
		)
		select {
		case <-h.ctx.Done():
			return
		case <-time.After(h.resubWait):
		}
	}
}

func (h *Hub) deliverLocal(userID string, payload []byte) int {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions[userID]))
	for _, s := range h.sessions[userID] {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		if s.send(payload) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) removeSession(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userSessions, ok := h.sessions[s.userID]
	if !ok {
		return
	}
	delete(userSessions, s.id)
	if len(userSessions) == 0 {
		delete(h.sessions, s.userID)
	}
}

// Session is one live connection of a user. Payloads arrive on Receive;
// the transport layer (WebSocket, SSE) drains the channel and writes to
// the socket it owns.
type Session struct {
	id        string
	userID    string
	ch        chan []byte
	closeOnce sync.Once
	closed    atomic.Bool
	hub       *Hub
}

// ID returns the unique session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the identity the session is registered under.
func (s *Session) UserID() string { return s.userID }

// Receive returns the channel of payloads for this session. The channel is
// closed when the session is disconnected.
func (s *Session) Receive() <-chan []byte {
	return s.ch
}

// Close deregisters the session and closes its receive channel. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.hub.removeSession(s)
		close(s.ch)
	})
	return nil
}

// send hands the payload to the session without blocking. A full buffer
// means the client is too slow; the payload is dropped for this session.
func (s *Session) send(payload []byte) bool {
	if s.closed.Load() {
		return false
	}
	defer func() {
		// The channel may close concurrently with a send; a dropped
		// payload to a dying session is indistinguishable from a drop
		// on a full buffer.
		_ = recover()
	}()

	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}
