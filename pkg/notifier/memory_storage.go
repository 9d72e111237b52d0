package notifier

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/preferences"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing. The single mutex serializes
// UpsertGrouped, which makes the grouping upsert trivially atomic.
type MemoryStorage struct {
	notifications map[string][]Notification // recipient -> notifications
	mu            sync.RWMutex
}

// NewMemoryStorage creates a new in-memory notification storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string][]Notification),
	}
}

func (s *MemoryStorage) UpsertGrouped(ctx context.Context, candidate Notification, window time.Duration) (*Notification, bool, error) {
	if candidate.ID == "" {
		return nil, false, errors.New("notifier: notification ID is required")
	}
	if candidate.Recipient == "" {
		return nil, false, errors.New("notifier: recipient is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)
	key := candidate.GroupKey()

	rows := s.notifications[candidate.Recipient]
	for i := range rows {
		// Window membership is recomputed per event relative to now; an
		// event arriving just past the boundary starts a new row even if
		// the previous event of the burst landed inside.
		if rows[i].GroupKey() == key && !rows[i].CreatedAt.Before(cutoff) {
			rows[i].Data = cloneData(rows[i].Data)
			rows[i].Data[DataCountKey] = rows[i].Count() + 1
			rows[i].IsRead = false
			rows[i].UpdatedAt = now

			cp := rows[i]
			return &cp, false, nil
		}
	}

	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = candidate.CreatedAt
	candidate.Data = cloneData(candidate.Data)
	candidate.Data[DataCountKey] = 1
	candidate.IsRead = false

	s.notifications[candidate.Recipient] = append(rows, candidate)

	cp := candidate
	return &cp, true, nil
}

func (s *MemoryStorage) Get(ctx context.Context, recipient, id string) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications[recipient] {
		if n.ID == id {
			cp := n
			return &cp, nil
		}
	}
	return nil, ErrNotificationNotFound
}

func (s *MemoryStorage) List(ctx context.Context, recipient string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []Notification
	for _, n := range s.notifications[recipient] {
		if opts.OnlyUnread && n.IsRead {
			continue
		}
		if len(opts.Types) > 0 && !containsType(opts.Types, n.Type) {
			continue
		}
		filtered = append(filtered, n)
	}

	// Newest first; grouped rows surface on update.
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
	})

	start := opts.Offset
	if start > len(filtered) {
		return []Notification{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, recipient string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications[recipient] {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, recipient string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	rows := s.notifications[recipient]
	for i := range rows {
		if idSet[rows[i].ID] {
			rows[i].IsRead = true
			rows[i].UpdatedAt = time.Now()
		}
	}
	return nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, recipient string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	rows := s.notifications[recipient]
	for i := range rows {
		if !rows[i].IsRead {
			rows[i].IsRead = true
			rows[i].UpdatedAt = time.Now()
			updated++
		}
	}
	return updated, nil
}

func (s *MemoryStorage) SetMessage(ctx context.Context, recipient, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.notifications[recipient]
	for i := range rows {
		if rows[i].ID == id {
			rows[i].Message = message
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (s *MemoryStorage) SetChannelStatus(ctx context.Context, recipient, id string, channel preferences.Channel, delivered bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.notifications[recipient]
	for i := range rows {
		if rows[i].ID != id {
			continue
		}
		status := ChannelStatus{Delivered: delivered, Timestamp: &at}
		switch channel {
		case preferences.ChannelInApp:
			rows[i].DeliveryStatus.InApp = status
		case preferences.ChannelEmail:
			rows[i].DeliveryStatus.Email = status
		case preferences.ChannelPush:
			rows[i].DeliveryStatus.Push = status
		}
		return nil
	}
	return ErrNotificationNotFound
}

func cloneData(data map[string]any) map[string]any {
	cp := make(map[string]any, len(data)+1)
	for k, v := range data {
		cp[k] = v
	}
	return cp
}

func containsType(types []Type, t Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
