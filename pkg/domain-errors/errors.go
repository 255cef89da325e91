// Package domainerrors defines the error taxonomy returned by services.
//
// Business failures carry one of the business codes (missing_required_field,
// invalid_combination, reference_not_found, precondition_violation,
// business_rule_violation, capacity_exceeded, invalid_input, conflict,
// not_found). Anything the caller cannot fix by changing input is wrapped
// with CodeInternal or CodeTimeout so it can be retried instead.
//
// Validation errors may carry field-scoped messages for form-style reporting:
//
//	err := dErrors.New(dErrors.CodeMissingRequiredField, "client employee is incomplete").
//		WithFields(dErrors.FieldError{Field: "employer_id", Message: "required"})
package domainerrors

import (
	"errors"
	"strings"
)

type Code string

const (
	CodeMissingRequiredField  Code = "missing_required_field"
	CodeInvalidCombination    Code = "invalid_combination"
	CodeReferenceNotFound     Code = "reference_not_found"
	CodePreconditionViolation Code = "precondition_violation"
	CodeBusinessRuleViolation Code = "business_rule_violation"
	CodeCapacityExceeded      Code = "capacity_exceeded"
	CodeInvalidInput          Code = "invalid_input"
	CodeNotFound              Code = "not_found"
	CodeConflict              Code = "conflict"
	CodeTimeout               Code = "timeout"
	CodeInternal              Code = "internal"
)

// IsInfrastructure reports whether the code signals a retryable, non-input failure.
func (c Code) IsInfrastructure() bool {
	return c == CodeInternal || c == CodeTimeout
}

// FieldError scopes a message to one attribute of the input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the structured error every service operation returns.
type Error struct {
	Code    Code
	Message string
	Fields  []FieldError
	cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	for i, f := range e.Fields {
		if i == 0 {
			b.WriteString(" (")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Field)
		b.WriteString(": ")
		b.WriteString(f.Message)
		if i == len(e.Fields)-1 {
			b.WriteString(")")
		}
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// WithFields returns a copy of e with the field messages appended.
func (e *Error) WithFields(fields ...FieldError) *Error {
	cp := *e
	cp.Fields = append(append([]FieldError(nil), e.Fields...), fields...)
	return &cp
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to a lower-level error. A nil err yields nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, cause: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// CodeOf returns the outermost code in err's chain, or CodeInternal for
// errors that never passed through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldsOf returns the field messages of the outermost *Error in err's chain.
func FieldsOf(err error) []FieldError {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
