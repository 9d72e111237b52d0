package preferences

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPreferenceNotFound is returned when no preference record exists for a user.
var ErrPreferenceNotFound = errors.New("preferences: preference not found")

// Storage handles preference persistence.
type Storage interface {
	// Get retrieves the preference record for a user.
	// Returns ErrPreferenceNotFound if none exists.
	Get(ctx context.Context, userID string) (*Preference, error)

	// Upsert stores the preference record, replacing any existing one.
	Upsert(ctx context.Context, pref Preference) error
}

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	prefs map[string]Preference
	mu    sync.RWMutex
}

// NewMemoryStorage creates a new in-memory preference storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prefs: make(map[string]Preference),
	}
}

func (s *MemoryStorage) Get(ctx context.Context, userID string) (*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.prefs[userID]
	if !ok {
		return nil, ErrPreferenceNotFound
	}
	// Return a deep copy so callers can't mutate stored maps.
	cp := clonePreference(pref)
	return &cp, nil
}

func (s *MemoryStorage) Upsert(ctx context.Context, pref Preference) error {
	if pref.UserID == "" {
		return errors.New("preferences: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pref.UpdatedAt = time.Now()
	if existing, ok := s.prefs[pref.UserID]; ok {
		pref.CreatedAt = existing.CreatedAt
	} else if pref.CreatedAt.IsZero() {
		pref.CreatedAt = pref.UpdatedAt
	}

	s.prefs[pref.UserID] = clonePreference(pref)
	return nil
}

func clonePreference(p Preference) Preference {
	cp := p
	cp.Channels = make(map[Channel]bool, len(p.Channels))
	for k, v := range p.Channels {
		cp.Channels[k] = v
	}
	cp.Types = make(map[string]TypePreference, len(p.Types))
	for k, v := range p.Types {
		tp := v
		if v.Channels != nil {
			tp.Channels = make(map[Channel]bool, len(v.Channels))
			for ck, cv := range v.Channels {
				tp.Channels[ck] = cv
			}
		}
		cp.Types[k] = tp
	}
	return cp
}
