package models

import (
	"encoding/json"
	"time"

	dErrors "eap/pkg/domain-errors"
)

// AddSecondaryRole returns a copy of p holding secondary as its second role.
// p itself is never modified, so a failed addition leaves nothing behind.
//
// Fails with CodeInvalidCombination when p is a dependent, when the pair is
// not allowed, or when p already holds a secondary role; with
// CodeMissingRequiredField when fields lack the type's minimum set. Unknown
// keys in fields are kept under Metadata[MetadataRoleExtras][secondary].
// The result passes Validate with in.
func AddSecondaryRole(p *Person, secondary PersonType, fields RoleFields, in ValidationInput) (*Person, error) {
	if p == nil || p.Primary == nil {
		return nil, dErrors.New(dErrors.CodeMissingRequiredField, "person is required")
	}
	primary := p.Type()
	if primary == PersonTypeDependent {
		return nil, dErrors.New(dErrors.CodeInvalidCombination, "dependents cannot hold dual roles")
	}
	if current, ok := p.SecondaryType(); ok {
		if current == secondary {
			return nil, dErrors.New(dErrors.CodeInvalidCombination, "person already holds the "+string(secondary)+" role")
		}
		return nil, dErrors.New(dErrors.CodeInvalidCombination, "person already holds a secondary role ("+string(current)+")")
	}
	if !IsAllowedPair(primary, secondary) {
		return nil, dErrors.New(dErrors.CodeInvalidCombination, string(primary)+" cannot be combined with "+string(secondary))
	}

	role, extras, err := DecodeRole(secondary, fields)
	if err != nil {
		return nil, err
	}
	if missing := RequiredFieldViolations(role); len(missing) > 0 {
		return nil, dErrors.New(dErrors.CodeMissingRequiredField, string(secondary)+" role is incomplete").WithFields(missing...)
	}

	next := p.Clone()
	next.Secondary = role
	if len(extras) > 0 {
		next.putMetadataBucket(MetadataRoleExtras, secondary, extras)
	}
	if !in.Now.IsZero() {
		next.UpdatedAt = in.Now
	}
	if err := Validate(next, in); err != nil {
		return nil, err
	}
	return next, nil
}

// RemoveSecondaryRole returns a copy of p without its secondary role.
// The removed payload is archived under Metadata[MetadataRetiredRoles] so the
// caller can inspect or purge it; no attribute of the primary role changes.
func RemoveSecondaryRole(p *Person, now time.Time) (*Person, error) {
	if p == nil || p.Secondary == nil {
		return nil, dErrors.New(dErrors.CodePreconditionViolation, "person holds no secondary role")
	}
	next := p.Clone()
	removed := next.Secondary
	next.Secondary = nil
	if snapshot := roleSnapshot(removed); snapshot != nil {
		next.putMetadataBucket(MetadataRetiredRoles, removed.Type(), snapshot)
	}
	next.UpdatedAt = now
	return next, nil
}

func roleSnapshot(r Role) map[string]any {
	raw, err := MarshalRole(r)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
