// Package account stores the authentication identities linked to persons.
// Emails are unique case-insensitively.
package account

import (
	"context"
	"strings"
	"sync"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	"eap/pkg/platform/tx"
)

type InMemory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]models.Account
	byEmail  map[string]id.AccountID
}

func NewInMemory() *InMemory {
	return &InMemory{
		accounts: make(map[id.AccountID]models.Account),
		byEmail:  make(map[string]id.AccountID),
	}
}

// Create inserts a. A taken ID or email yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, a *models.Account) error {
	email := strings.ToLower(a.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.accounts[a.ID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.byEmail[email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.accounts[a.ID] = *a
	s.byEmail[email] = a.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.accounts, a.ID)
		delete(s.byEmail, email)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, accountID id.AccountID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accountID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a := s.accounts[accountID]
	return &a, nil
}
