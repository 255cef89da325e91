package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	"eap/pkg/requestcontext"
)

// Activate moves an inactive or suspended person back to active. Employment
// status and the accepting-clients flag reopen with it.
func (s *Service) Activate(ctx context.Context, personID id.PersonID, reason string) (*models.Person, error) {
	return s.transition(ctx, "activate", audit.EventPersonActivated, personID, reason,
		func(p *models.Person) error { return p.CanActivate() },
		func(p *models.Person, now time.Time, actor id.AccountID) { p.ApplyActivation(now, reason, actor) },
	)
}

// Deactivate moves the person to inactive. A client employee with active
// dependents cannot be deactivated until they are deactivated or removed.
func (s *Service) Deactivate(ctx context.Context, personID id.PersonID, reason string) (*models.Person, error) {
	return s.transitionGuarded(ctx, "deactivate", audit.EventPersonDeactivated, personID, reason, s.requireNoActiveDependents,
		func(p *models.Person) error { return p.CanDeactivate() },
		func(p *models.Person, now time.Time, actor id.AccountID) { p.ApplyDeactivation(now, reason, actor) },
	)
}

// Suspend moves an active person to suspended. Like deactivation it closes
// the role flags, so a client employee with active dependents is refused.
func (s *Service) Suspend(ctx context.Context, personID id.PersonID, reason string) (*models.Person, error) {
	return s.transitionGuarded(ctx, "suspend", audit.EventPersonSuspended, personID, reason, s.requireNoActiveDependents,
		func(p *models.Person) error { return p.CanSuspend() },
		func(p *models.Person, now time.Time, actor id.AccountID) { p.ApplySuspension(now, reason, actor) },
	)
}

func (s *Service) transition(
	ctx context.Context,
	operation string,
	event audit.AuditEvent,
	personID id.PersonID,
	reason string,
	can func(*models.Person) error,
	apply func(*models.Person, time.Time, id.AccountID),
) (*models.Person, error) {
	return s.transitionGuarded(ctx, operation, event, personID, reason, nil, can, apply)
}

// transitionGuarded runs a lifecycle transition. guard, when set, checks
// cross-record rules in the same transaction before the record is locked.
func (s *Service) transitionGuarded(
	ctx context.Context,
	operation string,
	event audit.AuditEvent,
	personID id.PersonID,
	reason string,
	guard func(context.Context, *models.Person) error,
	can func(*models.Person) error,
	apply func(*models.Person, time.Time, id.AccountID),
) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person."+operation,
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		now := requestcontext.Now(txCtx)
		actor := requestcontext.Actor(txCtx)
		if guard != nil {
			if err := s.precheck(txCtx, personID, func(p *models.Person) error {
				if err := can(p); err != nil {
					return err
				}
				return guard(txCtx, p)
			}); err != nil {
				return nil, err
			}
		}
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			if err := can(p); err != nil {
				return err
			}
			apply(p, now, actor)
			return models.Validate(p, transitionInput(p, now))
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, event, p, reason)
	})
	if err != nil {
		return nil, s.fail(ctx, operation, err)
	}

	if s.metrics != nil {
		s.metrics.IncrementStatusTransition(string(updated.Status))
	}
	s.logAudit(ctx, event,
		"person_id", personID.String(),
		"status", string(updated.Status),
		"reason", reason,
	)
	return updated, nil
}

// transitionInput checks time-bound preconditions, such as license expiry,
// only when the record re-enters active. Leaving active only closes flags.
func transitionInput(p *models.Person, now time.Time) models.ValidationInput {
	if p.IsActive() {
		return models.ValidationInput{Now: now}
	}
	return models.ValidationInput{}
}

func (s *Service) requireNoActiveDependents(ctx context.Context, p *models.Person) error {
	if !p.HasRole(models.PersonTypeClientEmployee) {
		return nil
	}
	deps, err := s.persons.ListDependents(ctx, p.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dependents")
	}
	active := 0
	for _, d := range deps {
		if d.IsActive() {
			active++
		}
	}
	if active > 0 {
		return dErrors.New(dErrors.CodeBusinessRuleViolation,
			"cannot take an employee with "+strconv.Itoa(active)+" active dependent(s) out of active")
	}
	return nil
}

// Delete soft-deletes the person. Deletion is refused while dependents still
// point at the record or the person takes part in open sessions.
func (s *Service) Delete(ctx context.Context, personID id.PersonID) error {
	ctx, span := s.tracer.Start(ctx, "person.delete",
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	_, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		err := s.precheck(txCtx, personID, func(p *models.Person) error {
			if p.HasRole(models.PersonTypeClientEmployee) {
				deps, err := s.persons.ListDependents(txCtx, p.ID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dependents")
				}
				if len(deps) > 0 {
					return dErrors.New(dErrors.CodeBusinessRuleViolation, "cannot delete an employee with dependents")
				}
			}
			active, err := s.sessions.HasActiveSessions(txCtx, p.ID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check sessions")
			}
			if active {
				return dErrors.New(dErrors.CodeBusinessRuleViolation, "cannot delete a person with active sessions")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			p.ApplySoftDelete(requestcontext.Now(txCtx))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, audit.EventPersonDeleted, p, "")
	})
	if err != nil {
		return s.fail(ctx, "delete", err)
	}
	s.logAudit(ctx, audit.EventPersonDeleted, "person_id", personID.String())
	return nil
}

// EmploymentUpdate changes the employment facts of a client employee role.
// Nil fields are left as they are.
type EmploymentUpdate struct {
	Status  *models.EmploymentStatus
	EndDate *time.Time
}

// UpdateEmployment edits the ClientEmployee role, primary or secondary, and
// revalidates the record. Termination does not change the lifecycle status;
// eligibility reads the employment status directly.
func (s *Service) UpdateEmployment(ctx context.Context, personID id.PersonID, u EmploymentUpdate) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person.update_employment",
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		now := requestcontext.Now(txCtx)
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			e, ok := p.Employee()
			if !ok {
				return dErrors.New(dErrors.CodePreconditionViolation, "person is not a client employee")
			}
			if u.Status != nil {
				e.EmploymentStatus = *u.Status
			}
			if u.EndDate != nil {
				end := *u.EndDate
				e.EndDate = &end
			}
			p.UpdatedAt = now
			return models.Validate(p, models.ValidationInput{})
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, audit.EventEmploymentUpdated, p, "")
	})
	if err != nil {
		return nil, s.fail(ctx, "update_employment", err)
	}
	e, _ := updated.Employee()
	s.logAudit(ctx, audit.EventEmploymentUpdated,
		"person_id", personID.String(),
		"employment_status", string(e.EmploymentStatus),
	)
	return updated, nil
}
