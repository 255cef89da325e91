package service

import (
	"context"

	"eap/internal/person/models"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	"eap/pkg/requestcontext"
)

// appendAudit writes the event to the outbox in the caller's transaction, so
// a failed append rolls the change back.
func (s *Service) appendAudit(ctx context.Context, event audit.AuditEvent, p *models.Person, reason string) error {
	if s.audit == nil {
		return nil
	}
	e := audit.Event{
		Category:  event.Category(),
		Timestamp: requestcontext.Now(ctx),
		PersonID:  p.ID,
		Subject:   string(p.Type()),
		Action:    string(event),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	}
	if actor := requestcontext.Actor(ctx); !actor.IsNil() {
		e.ActorID = actor.String()
	}
	if err := s.audit.Append(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit event")
	}
	return nil
}

// logAudit emits the structured log line for a committed change.
func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attrs ...any) {
	if s.logger == nil {
		return
	}
	args := append([]any{
		"event", string(event),
		"request_id", requestcontext.RequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, string(event), args...)
}
