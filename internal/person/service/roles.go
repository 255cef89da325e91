package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	"eap/pkg/platform/sentinel"
	"eap/pkg/requestcontext"
)

// AddSecondaryRole gives the person a second role. The pair must be allowed,
// the person must not already hold a secondary role, and fields must carry
// the role's minimum set; an organization the new role references must
// exist. Unknown field keys are kept in metadata.
func (s *Service) AddSecondaryRole(ctx context.Context, personID id.PersonID, secondary models.PersonType, fields models.RoleFields) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person.add_secondary_role",
		trace.WithAttributes(attribute.String("person.id", personID.String()),
			attribute.String("person.secondary_type", string(secondary))))
	defer span.End()

	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		now := requestcontext.Now(txCtx)
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			dob, err := s.dateOfBirth(txCtx, p.ProfileID)
			if err != nil {
				return err
			}
			next, err := models.AddSecondaryRole(p, secondary, fields, models.ValidationInput{Now: now, DateOfBirth: dob})
			if err != nil {
				return err
			}
			if err := s.checkRoleOrganization(txCtx, next.Secondary); err != nil {
				return err
			}
			*p = *next
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, audit.EventSecondaryRoleAdded, p, string(secondary))
	})
	if err != nil {
		return nil, s.fail(ctx, "add_secondary_role", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementRoleChange("added", string(secondary))
	}
	s.logAudit(ctx, audit.EventSecondaryRoleAdded,
		"person_id", personID.String(),
		"secondary_type", string(secondary),
	)
	return updated, nil
}

// RemoveSecondaryRole drops the secondary role; the payload is archived in
// metadata. Fails with PreconditionViolation when there is none.
func (s *Service) RemoveSecondaryRole(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person.remove_secondary_role",
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	var removed models.PersonType
	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			removed, _ = p.SecondaryType()
			next, err := models.RemoveSecondaryRole(p, requestcontext.Now(txCtx))
			if err != nil {
				return err
			}
			*p = *next
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, audit.EventSecondaryRoleRemoved, p, string(removed))
	})
	if err != nil {
		return nil, s.fail(ctx, "remove_secondary_role", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementRoleChange("removed", string(removed))
	}
	s.logAudit(ctx, audit.EventSecondaryRoleRemoved,
		"person_id", personID.String(),
		"secondary_type", string(removed),
	)
	return updated, nil
}

// dateOfBirth reads the date of birth the minor-guardian rule needs. A
// missing profile leaves the rule off.
func (s *Service) dateOfBirth(ctx context.Context, profileID id.ProfileID) (*time.Time, error) {
	profile, err := s.profiles.FindByID(ctx, profileID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return profile.DateOfBirth, nil
}

// checkRoleOrganization verifies the organization a staff or employee role
// points at exists.
func (s *Service) checkRoleOrganization(ctx context.Context, r models.Role) error {
	var (
		orgID id.OrganizationID
		field string
	)
	switch role := r.(type) {
	case *models.StaffRole:
		orgID, field = role.OrganizationID, "organization_id"
	case *models.EmployeeRole:
		orgID, field = role.EmployerID, "employer_id"
	default:
		return nil
	}
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		return storeError(err, referenceNotFound(field, "organization"), "failed to load organization")
	}
	return nil
}
