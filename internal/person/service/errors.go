package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/sentinel"
)

// storeError translates a store failure. Domain errors raised by validate
// callbacks pass through; ErrNotFound becomes notFound; anything else is an
// infrastructure failure.
func storeError(err error, notFound *dErrors.Error, op string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound) && notFound != nil:
		return notFound
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op)
	}
}

func errPersonNotFound() *dErrors.Error {
	return dErrors.New(dErrors.CodeNotFound, "person not found")
}

// referenceNotFound reports a missing collaborator record against field.
func referenceNotFound(field, what string) *dErrors.Error {
	return dErrors.New(dErrors.CodeReferenceNotFound, what+" not found").
		WithFields(dErrors.FieldError{Field: field, Message: "does not exist"})
}

// fail records err on the span and the rejection counter and returns it.
func (s *Service) fail(ctx context.Context, operation string, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	if s.metrics != nil {
		s.metrics.IncrementRejection(operation, string(dErrors.CodeOf(err)))
	}
	if dErrors.CodeOf(err).IsInfrastructure() && s.logger != nil {
		s.logger.ErrorContext(ctx, "person operation failed", "operation", operation, "error", err)
	}
	return err
}
