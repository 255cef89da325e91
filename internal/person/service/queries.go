package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"eap/internal/person/directory"
	"eap/internal/person/eligibility"
	"eap/internal/person/family"
	"eap/internal/person/models"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/sentinel"
	"eap/pkg/requestcontext"
)

// GetPerson returns a live record. Soft-deleted records are not found.
func (s *Service) GetPerson(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return nil, storeError(err, errPersonNotFound(), "failed to load person")
	}
	if p.IsDeleted() {
		return nil, errPersonNotFound()
	}
	return p, nil
}

// ListDependents returns the employee's live dependents, oldest first. Other
// person types have none.
func (s *Service) ListDependents(ctx context.Context, employeeID id.PersonID) ([]*models.Person, error) {
	p, err := s.GetPerson(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !p.HasRole(models.PersonTypeClientEmployee) {
		return nil, nil
	}
	deps, err := s.persons.ListDependents(ctx, employeeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dependents")
	}
	return deps, nil
}

// IsEligible reports whether the person may receive or deliver services at
// asOf. A zero asOf means the request clock.
func (s *Service) IsEligible(ctx context.Context, personID id.PersonID, asOf time.Time) (bool, error) {
	res, err := s.Evaluate(ctx, personID, asOf)
	if err != nil {
		return false, err
	}
	return res.Eligible, nil
}

// Evaluate is IsEligible with the per-role breakdown. Unknown persons are an
// error here; deleted ones evaluate as ineligible.
func (s *Service) Evaluate(ctx context.Context, personID id.PersonID, asOf time.Time) (eligibility.Result, error) {
	ctx, span := s.tracer.Start(ctx, "person.evaluate_eligibility",
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	if asOf.IsZero() {
		asOf = requestcontext.Now(ctx)
	}
	p, err := s.persons.FindByID(ctx, personID)
	if err != nil {
		return eligibility.Result{}, s.fail(ctx, "evaluate_eligibility",
			storeError(err, errPersonNotFound(), "failed to load person"))
	}
	dir, err := s.loadDirectory(ctx, p)
	if err != nil {
		return eligibility.Result{}, s.fail(ctx, "evaluate_eligibility", err)
	}

	res := eligibility.New(dir).Evaluate(p, asOf)
	span.SetAttributes(attribute.Bool("person.eligible", res.Eligible))
	if s.metrics != nil {
		s.metrics.IncrementEligibilityCheck(res.Eligible, res.Reason)
	}
	return res, nil
}

// GetFamilyUnit returns the employee followed by its dependents for an
// employee or a dependent; other persons have no family unit.
func (s *Service) GetFamilyUnit(ctx context.Context, personID id.PersonID) ([]*models.Person, error) {
	p, err := s.GetPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	dir, err := s.loadDirectory(ctx, p)
	if err != nil {
		return nil, err
	}
	return family.New(dir).FamilyUnit(p), nil
}

// EffectiveOrganization resolves the organization the person belongs to for
// service purposes. ok is false for independent providers.
func (s *Service) EffectiveOrganization(ctx context.Context, personID id.PersonID) (orgID id.OrganizationID, ok bool, err error) {
	p, err := s.GetPerson(ctx, personID)
	if err != nil {
		return id.OrganizationID{}, false, err
	}
	dir, err := s.loadDirectory(ctx, p)
	if err != nil {
		return id.OrganizationID{}, false, err
	}
	orgID, ok = family.New(dir).EffectiveOrganization(p)
	return orgID, ok, nil
}

// loadDirectory reads the records p's rules can reach: its primary employee
// when p is a dependent, the dependents of the family's employee, and the
// activity of every organization involved. Depth never exceeds one hop.
func (s *Service) loadDirectory(ctx context.Context, p *models.Person) (*directory.Directory, error) {
	dir := directory.New()
	dir.Add(p)

	employeeID := id.PersonID{}
	if dep, ok := p.Dependent(); ok {
		employee, err := s.persons.FindByID(ctx, dep.PrimaryEmployeeID)
		switch {
		case err == nil:
			dir.Add(employee)
			employeeID = employee.ID
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load primary employee")
		}
	} else if p.HasRole(models.PersonTypeClientEmployee) {
		employeeID = p.ID
	}
	if !employeeID.IsNil() {
		deps, err := s.persons.ListDependents(ctx, employeeID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dependents")
		}
		for _, d := range deps {
			if d.ID != p.ID {
				dir.Add(d)
			}
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, orgID := range dir.Organizations() {
		g.Go(func() error {
			org, err := s.orgs.FindByID(gctx, orgID)
			active := false
			switch {
			case err == nil:
				active = org.Active
			case !errors.Is(err, sentinel.ErrNotFound):
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load organization")
			}
			mu.Lock()
			dir.SetOrganizationActive(orgID, active)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dir, nil
}
