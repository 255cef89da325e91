package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	"eap/pkg/requestcontext"
)

// RecordServiceDelivery moves the person's last service date forward to at.
// Earlier dates leave the record unchanged.
func (s *Service) RecordServiceDelivery(ctx context.Context, personID id.PersonID, at time.Time) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person.record_service_delivery",
		trace.WithAttributes(attribute.String("person.id", personID.String())))
	defer span.End()

	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		p, err := s.update(txCtx, personID, func(p *models.Person) error {
			p.RecordService(at, requestcontext.Now(txCtx))
			return nil
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, audit.EventServiceDelivered, p, at.UTC().Format(time.RFC3339))
	})
	if err != nil {
		return nil, s.fail(ctx, "record_service_delivery", err)
	}
	s.logAudit(ctx, audit.EventServiceDelivered, "person_id", personID.String())
	return updated, nil
}

// AssignClient takes one more client onto a provider's caseload. The
// provider must be active and accepting clients, and stay within its cap.
func (s *Service) AssignClient(ctx context.Context, providerID id.PersonID) (*models.Person, error) {
	return s.changeCaseload(ctx, "assign_client", audit.EventClientAssigned, providerID,
		func(p *models.Person, r *models.ProviderRole) error {
			if !p.IsActive() {
				return dErrors.New(dErrors.CodePreconditionViolation, "provider is not active")
			}
			if !r.AcceptingNewClients {
				return dErrors.New(dErrors.CodePreconditionViolation, "provider is not accepting new clients")
			}
			if !r.HasCapacity() {
				return dErrors.New(dErrors.CodeCapacityExceeded, "provider is at capacity").
					WithFields(dErrors.FieldError{Field: "current_client_count", Message: "would exceed max_clients"})
			}
			r.CurrentClientCount++
			return nil
		})
}

// ReleaseClient takes one client off a provider's caseload.
func (s *Service) ReleaseClient(ctx context.Context, providerID id.PersonID) (*models.Person, error) {
	return s.changeCaseload(ctx, "release_client", audit.EventClientReleased, providerID,
		func(_ *models.Person, r *models.ProviderRole) error {
			if r.CurrentClientCount == 0 {
				return dErrors.New(dErrors.CodePreconditionViolation, "provider has no clients to release")
			}
			r.CurrentClientCount--
			return nil
		})
}

func (s *Service) changeCaseload(
	ctx context.Context,
	operation string,
	event audit.AuditEvent,
	providerID id.PersonID,
	change func(*models.Person, *models.ProviderRole) error,
) (*models.Person, error) {
	ctx, span := s.tracer.Start(ctx, "person."+operation,
		trace.WithAttributes(attribute.String("person.id", providerID.String())))
	defer span.End()

	updated, err := s.transact(ctx, func(txCtx context.Context) (*models.Person, error) {
		p, err := s.update(txCtx, providerID, func(p *models.Person) error {
			r, ok := p.Provider()
			if !ok {
				return dErrors.New(dErrors.CodePreconditionViolation, "person is not a service provider")
			}
			if err := change(p, r); err != nil {
				return err
			}
			p.UpdatedAt = requestcontext.Now(txCtx)
			return models.Validate(p, models.ValidationInput{})
		})
		if err != nil {
			return nil, err
		}
		return p, s.appendAudit(txCtx, event, p, "")
	})
	if err != nil {
		return nil, s.fail(ctx, operation, err)
	}

	if s.metrics != nil {
		s.metrics.IncrementCaseloadChange(operation)
	}
	r, _ := updated.Provider()
	s.logAudit(ctx, event,
		"person_id", providerID.String(),
		"current_client_count", r.CurrentClientCount,
	)
	return updated, nil
}
