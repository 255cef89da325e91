package person

import (
	"context"
	"slices"
	"sync"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	"eap/pkg/platform/tx"
)

// InMemory is a thread-safe person store. The profile index enforces the
// one-profile-one-person rule the same way the unique index does in
// PostgreSQL. Records are cloned on the way in and out.
type InMemory struct {
	mu        sync.RWMutex
	persons   map[id.PersonID]*models.Person
	byProfile map[id.ProfileID]id.PersonID
}

func NewInMemory() *InMemory {
	return &InMemory{
		persons:   make(map[id.PersonID]*models.Person),
		byProfile: make(map[id.ProfileID]id.PersonID),
	}
}

// Create inserts p. A taken profile or ID yields sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, p *models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byProfile[p.ProfileID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, taken := s.persons[p.ID]; taken {
		return sentinel.ErrAlreadyUsed
	}
	s.persons[p.ID] = p.Clone()
	s.byProfile[p.ProfileID] = p.ID

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.persons, p.ID)
		delete(s.byProfile, p.ProfileID)
	})
	return nil
}

// FindByID returns the record, soft-deleted or not.
func (s *InMemory) FindByID(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) FindByProfileID(_ context.Context, profileID id.ProfileID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personID, ok := s.byProfile[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.persons[personID].Clone(), nil
}

// ListDependents returns the non-deleted records referencing employeeID,
// oldest first.
func (s *InMemory) ListDependents(_ context.Context, employeeID id.PersonID) ([]*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Person
	for _, p := range s.persons {
		dep, ok := p.Dependent()
		if !ok || p.IsDeleted() || dep.PrimaryEmployeeID != employeeID {
			continue
		}
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Person) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

// Execute runs validate then mutate on a copy under the store lock and
// stores the copy only when validate passes. On a validation error nothing
// changes and the error is returned unchanged.
func (s *InMemory) Execute(ctx context.Context, personID id.PersonID, validate func(*models.Person) error, mutate func(*models.Person)) (*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.persons[personID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := prev.Clone()
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)
	next.ID = prev.ID
	next.ProfileID = prev.ProfileID
	next.CreatedAt = prev.CreatedAt
	s.persons[personID] = next

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.persons[personID] = prev
	})
	return next.Clone(), nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.persons), nil
}
