// Package organization stores EAP operators and client companies, with an
// optional Redis read-through cache in front of the durable store.
package organization

import (
	"context"
	"sync"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	"eap/pkg/platform/tx"
)

type InMemory struct {
	mu   sync.RWMutex
	orgs map[id.OrganizationID]models.Organization
}

func NewInMemory() *InMemory {
	return &InMemory{orgs: make(map[id.OrganizationID]models.Organization)}
}

func (s *InMemory) Create(ctx context.Context, o *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.orgs[o.ID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.orgs[o.ID] = *o
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.orgs, o.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &o, nil
}

// SetActive flips the activity flag that eligibility reads.
func (s *InMemory) SetActive(ctx context.Context, orgID id.OrganizationID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orgs[orgID]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := o.Active
	o.Active = active
	s.orgs[orgID] = o
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if o, ok := s.orgs[orgID]; ok {
			o.Active = prev
			s.orgs[orgID] = o
		}
	})
	return nil
}
