package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	id "eap/pkg/domain"
	audit "eap/pkg/platform/audit"
	"eap/pkg/platform/tx"
	"eap/pkg/requestcontext"
)

// InMemoryStore is an outbox kept in process memory. Appends made inside an
// in-memory transaction are withdrawn when it rolls back.
type InMemoryStore struct {
	mu        sync.RWMutex
	entries   []audit.OutboxEntry
	published map[string]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{published: make(map[string]time.Time)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.published = make(map[string]time.Time)
}

func (s *InMemoryStore) Append(ctx context.Context, event audit.Event) error {
	entry, err := audit.NewOutboxEntry(event, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = slices.DeleteFunc(s.entries, func(e audit.OutboxEntry) bool { return e.ID == entry.ID })
	})
	return nil
}

func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]audit.OutboxEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.OutboxEntry
	for _, e := range s.entries {
		if _, done := s.published[e.ID]; done {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entryID := range ids {
		if _, done := s.published[entryID]; !done {
			s.published[entryID] = at
		}
	}
	return nil
}

// ListByPerson returns the events recorded for one person, oldest first.
func (s *InMemoryStore) ListByPerson(_ context.Context, personID id.PersonID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []audit.Event
	for _, e := range s.entries {
		if e.AggregateType != "person" || e.AggregateID != personID.String() {
			continue
		}
		event, err := audit.DecodePayload(e.Payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// Len reports how many entries were appended and not rolled back.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
