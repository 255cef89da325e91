// Package domain holds the typed identifiers shared across the person core.
//
// Every identifier is a distinct uuid-backed type so a PersonID can never be
// passed where an OrganizationID is expected. Parse at trust boundaries; the
// nil UUID is never a valid identifier.
package domain

import (
	"github.com/google/uuid"

	dErrors "eap/pkg/domain-errors"
)

type (
	PersonID       uuid.UUID
	ProfileID      uuid.UUID
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
	SessionID      uuid.UUID
)

func NewPersonID() PersonID             { return PersonID(uuid.New()) }
func NewProfileID() ProfileID           { return ProfileID(uuid.New()) }
func NewAccountID() AccountID           { return AccountID(uuid.New()) }
func NewOrganizationID() OrganizationID { return OrganizationID(uuid.New()) }
func NewSessionID() SessionID           { return SessionID(uuid.New()) }

func (i PersonID) String() string       { return uuid.UUID(i).String() }
func (i ProfileID) String() string      { return uuid.UUID(i).String() }
func (i AccountID) String() string      { return uuid.UUID(i).String() }
func (i OrganizationID) String() string { return uuid.UUID(i).String() }
func (i SessionID) String() string      { return uuid.UUID(i).String() }

func (i PersonID) IsNil() bool       { return uuid.UUID(i) == uuid.Nil }
func (i ProfileID) IsNil() bool      { return uuid.UUID(i) == uuid.Nil }
func (i AccountID) IsNil() bool      { return uuid.UUID(i) == uuid.Nil }
func (i OrganizationID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }
func (i SessionID) IsNil() bool      { return uuid.UUID(i) == uuid.Nil }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON payloads.
func (i PersonID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func (i *PersonID) UnmarshalText(b []byte) error { return (*uuid.UUID)(i).UnmarshalText(b) }

func (i OrganizationID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func (i *OrganizationID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(i).UnmarshalText(b)
}

func (i AccountID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func (i *AccountID) UnmarshalText(b []byte) error { return (*uuid.UUID)(i).UnmarshalText(b) }

func (i ProfileID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func (i *ProfileID) UnmarshalText(b []byte) error { return (*uuid.UUID)(i).UnmarshalText(b) }

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID(s, "person_id")
	return PersonID(u), err
}

func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s, "profile_id")
	return ProfileID(u), err
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID(s, "account_id")
	return AccountID(u), err
}

func ParseOrganizationID(s string) (OrganizationID, error) {
	u, err := parseUUID(s, "organization_id")
	return OrganizationID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session_id")
	return SessionID(u), err
}

// parseUUID rejects empty, malformed, and nil UUIDs with CodeInvalidInput.
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be the nil UUID")
	}
	return u, nil
}
