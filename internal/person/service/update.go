package service

import (
	"context"

	"eap/internal/person/models"
	id "eap/pkg/domain"
)

// update applies change to a copy of the locked record and stores the copy
// when change succeeds. Soft-deleted records are reported as not found.
func (s *Service) update(ctx context.Context, personID id.PersonID, change func(p *models.Person) error) (*models.Person, error) {
	var next *models.Person
	updated, err := s.persons.Execute(ctx, personID,
		func(p *models.Person) error {
			if p.IsDeleted() {
				return errPersonNotFound()
			}
			candidate := p.Clone()
			if err := change(candidate); err != nil {
				return err
			}
			next = candidate
			return nil
		},
		func(p *models.Person) {
			*p = *next
		},
	)
	if err != nil {
		return nil, storeError(err, errPersonNotFound(), "failed to update person")
	}
	return updated, nil
}

// precheck runs check against the live record. Rules that read other
// records go here rather than inside update, which holds the record lock.
func (s *Service) precheck(ctx context.Context, personID id.PersonID, check func(p *models.Person) error) error {
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return storeError(err, errPersonNotFound(), "failed to load person")
	}
	if p.IsDeleted() {
		return errPersonNotFound()
	}
	return check(p)
}

// transact runs fn in a transaction and returns the record it produced.
func (s *Service) transact(ctx context.Context, fn func(ctx context.Context) (*models.Person, error)) (*models.Person, error) {
	var out *models.Person
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		p, err := fn(txCtx)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
