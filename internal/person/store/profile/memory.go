// Package profile stores the demographic records persons own.
package profile

import (
	"context"
	"sync"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	"eap/pkg/platform/tx"
)

type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]models.Profile
}

func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[id.ProfileID]models.Profile)}
}

func (s *InMemory) Create(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.profiles[p.ID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.profiles[p.ID] = copyProfile(p)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.profiles, p.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := copyProfile(&p)
	return &out, nil
}

func copyProfile(p *models.Profile) models.Profile {
	out := *p
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		out.DateOfBirth = &dob
	}
	return out
}
