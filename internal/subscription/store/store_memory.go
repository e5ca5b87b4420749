package store

import (
	"context"
	"fmt"
	"sync"

	"pushcast/internal/subscription/models"
	"pushcast/pkg/platform/sentinel"
)

// InMemoryStore is the subscription registry: an insertion-ordered set keyed by
// endpoint. Reads hand out copies so a broadcast can iterate while new
// registrations arrive. Contents live for the lifetime of the process.
type InMemoryStore struct {
	mu     sync.RWMutex
	order  []string
	byKey  map[string]models.Subscription
	closed bool
}

// NewInMemoryStore creates an empty registry.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byKey: make(map[string]models.Subscription),
	}
}

// Add inserts sub unless its endpoint is already registered. Duplicates are not
// an error; added reports whether the registry changed.
func (s *InMemoryStore) Add(_ context.Context, sub models.Subscription) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("add subscription: %w", sentinel.ErrUnavailable)
	}

	if _, exists := s.byKey[sub.Endpoint]; exists {
		return false, nil
	}
	s.byKey[sub.Endpoint] = sub
	s.order = append(s.order, sub.Endpoint)
	return true, nil
}

// Count returns the number of registered subscriptions.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("count subscriptions: %w", sentinel.ErrUnavailable)
	}
	return len(s.order), nil
}

// List returns a snapshot of all subscriptions in insertion order.
func (s *InMemoryStore) List(_ context.Context) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("list subscriptions: %w", sentinel.ErrUnavailable)
	}

	out := make([]models.Subscription, 0, len(s.order))
	for _, endpoint := range s.order {
		out = append(out, s.byKey[endpoint])
	}
	return out, nil
}

// Remove deletes the subscription registered under endpoint.
func (s *InMemoryStore) Remove(_ context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("remove subscription: %w", sentinel.ErrUnavailable)
	}

	if _, exists := s.byKey[endpoint]; !exists {
		return fmt.Errorf("remove subscription: %w", sentinel.ErrNotFound)
	}
	delete(s.byKey, endpoint)
	for i, e := range s.order {
		if e == endpoint {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close drops every entry. Later calls fail with sentinel.ErrUnavailable.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.order = nil
	s.byKey = make(map[string]models.Subscription)
	return nil
}
