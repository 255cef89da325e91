// Package session reads the service sessions a person takes part in. The
// person core only asks whether open sessions exist; scheduling writes
// sessions elsewhere.
package session

import (
	"context"
	"sync"

	"eap/internal/person/models"
	id "eap/pkg/domain"
)

type InMemory struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]models.ServiceSession
}

func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[id.SessionID]models.ServiceSession)}
}

// Save inserts or replaces a session. Used by seeding and tests.
func (s *InMemory) Save(_ context.Context, sess *models.ServiceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

// HasActiveSessions reports whether personID is the client or the provider of
// a scheduled or in-progress session.
func (s *InMemory) HasActiveSessions(_ context.Context, personID id.PersonID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		if !sess.Status.IsOpen() {
			continue
		}
		if sess.PersonID == personID || (sess.ProviderID != nil && *sess.ProviderID == personID) {
			return true, nil
		}
	}
	return false, nil
}
