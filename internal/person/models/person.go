package models

import (
	"maps"
	"slices"
	"time"

	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
)

// Person is the aggregate root for every participant in service delivery.
//
// Invariants (enforced by Validate, see validate.go):
//   - Primary is always set; PersonType is Primary.Type()
//   - Secondary is nil or holds a different type forming an allowed pair
//   - Dependents never carry a Secondary role
//   - Each role payload lives only in the slot of the type it belongs to, so
//     fields of a type the record does not hold cannot exist
//   - ProfileID backs at most one person (unique at the storage boundary)
//   - StatusHistory is append-only
//   - ID and CreatedAt are immutable after construction
//
// Persons are built only through the service factory; a soft-deleted record
// keeps its row for referential and audit purposes.
type Person struct {
	ID               id.PersonID       `json:"id"`
	ProfileID        id.ProfileID      `json:"profile_id"`
	AccountID        id.AccountID      `json:"account_id"`
	Primary          Role              `json:"-"`
	Secondary        Role              `json:"-"`
	Status           Status            `json:"status"`
	StatusHistory    []StatusChange    `json:"status_history"`
	LastServiceDate  *time.Time        `json:"last_service_date,omitempty"`
	EmergencyContact *EmergencyContact `json:"emergency_contact,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	DeletedAt        *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// StatusChange is one entry of the append-only status log.
type StatusChange struct {
	From      Status       `json:"from"`
	To        Status       `json:"to"`
	Reason    string       `json:"reason,omitempty"`
	ChangedAt time.Time    `json:"changed_at"`
	ChangedBy id.AccountID `json:"changed_by,omitzero"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
}

const (
	// MetadataRoleExtras buckets unrecognized role fields by person type.
	MetadataRoleExtras = "role_extras"
	// MetadataRetiredRoles keeps the payload of a removed secondary role.
	MetadataRetiredRoles = "retired_roles"
)

// Type returns the primary person type, or "" when no primary role is set.
func (p *Person) Type() PersonType {
	if p.Primary == nil {
		return ""
	}
	return p.Primary.Type()
}

// SecondaryType returns the secondary person type when a dual role is active.
func (p *Person) SecondaryType() (PersonType, bool) {
	if p.Secondary == nil {
		return "", false
	}
	return p.Secondary.Type(), true
}

func (p *Person) IsDualRole() bool { return p.Secondary != nil }

// HasRole reports whether t is the primary or secondary type.
func (p *Person) HasRole(t PersonType) bool {
	return p.Role(t) != nil
}

// Role returns the payload for t from whichever slot holds it.
func (p *Person) Role(t PersonType) Role {
	if p.Primary != nil && p.Primary.Type() == t {
		return p.Primary
	}
	if p.Secondary != nil && p.Secondary.Type() == t {
		return p.Secondary
	}
	return nil
}

func (p *Person) Staff() (*StaffRole, bool) {
	r, ok := p.Role(PersonTypePlatformStaff).(*StaffRole)
	return r, ok
}

func (p *Person) Employee() (*EmployeeRole, bool) {
	r, ok := p.Role(PersonTypeClientEmployee).(*EmployeeRole)
	return r, ok
}

func (p *Person) Dependent() (*DependentRole, bool) {
	r, ok := p.Role(PersonTypeDependent).(*DependentRole)
	return r, ok
}

func (p *Person) Provider() (*ProviderRole, bool) {
	r, ok := p.Role(PersonTypeServiceProvider).(*ProviderRole)
	return r, ok
}

func (p *Person) IsActive() bool  { return p.Status == StatusActive }
func (p *Person) IsDeleted() bool { return p.DeletedAt != nil }

// Clone returns a deep copy so mutations can be validated before commit.
func (p *Person) Clone() *Person {
	cp := *p
	if p.Primary != nil {
		cp.Primary = p.Primary.clone()
	}
	if p.Secondary != nil {
		cp.Secondary = p.Secondary.clone()
	}
	cp.StatusHistory = slices.Clone(p.StatusHistory)
	if p.LastServiceDate != nil {
		t := *p.LastServiceDate
		cp.LastServiceDate = &t
	}
	if p.EmergencyContact != nil {
		ec := *p.EmergencyContact
		cp.EmergencyContact = &ec
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		cp.DeletedAt = &t
	}
	cp.Metadata = cloneMetadata(p.Metadata)
	return &cp
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMetadata(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// CanActivate checks the record may move to active.
func (p *Person) CanActivate() error {
	if p.IsDeleted() {
		return dErrors.New(dErrors.CodePreconditionViolation, "person is deleted")
	}
	if !p.Status.CanTransitionTo(StatusActive) {
		return dErrors.New(dErrors.CodePreconditionViolation, "person is already active")
	}
	return nil
}

// ApplyActivation moves the record to active and reopens the role flags that
// deactivation closed. Call CanActivate first.
func (p *Person) ApplyActivation(now time.Time, reason string, actor id.AccountID) {
	p.transition(StatusActive, now, reason, actor)
	if e, ok := p.Employee(); ok && e.EmploymentStatus == EmploymentInactive {
		e.EmploymentStatus = EmploymentActive
	}
	if pr, ok := p.Provider(); ok {
		pr.AcceptingNewClients = true
	}
}

// CanDeactivate checks the record may move to inactive. Cross-record rules
// (active dependents) are the service's job.
func (p *Person) CanDeactivate() error {
	if p.IsDeleted() {
		return dErrors.New(dErrors.CodePreconditionViolation, "person is deleted")
	}
	if !p.Status.CanTransitionTo(StatusInactive) {
		return dErrors.New(dErrors.CodePreconditionViolation, "person is already inactive")
	}
	return nil
}

// ApplyDeactivation moves the record to inactive, mirroring into the
// employment status and the accepting-clients flag.
func (p *Person) ApplyDeactivation(now time.Time, reason string, actor id.AccountID) {
	p.transition(StatusInactive, now, reason, actor)
	p.closeRoleFlags()
}

func (p *Person) CanSuspend() error {
	if p.IsDeleted() {
		return dErrors.New(dErrors.CodePreconditionViolation, "person is deleted")
	}
	if !p.Status.CanTransitionTo(StatusSuspended) {
		return dErrors.New(dErrors.CodePreconditionViolation, "only active persons can be suspended")
	}
	return nil
}

func (p *Person) ApplySuspension(now time.Time, reason string, actor id.AccountID) {
	p.transition(StatusSuspended, now, reason, actor)
	p.closeRoleFlags()
}

func (p *Person) closeRoleFlags() {
	if e, ok := p.Employee(); ok && e.EmploymentStatus == EmploymentActive {
		e.EmploymentStatus = EmploymentInactive
	}
	if pr, ok := p.Provider(); ok {
		pr.AcceptingNewClients = false
	}
}

func (p *Person) transition(to Status, now time.Time, reason string, actor id.AccountID) {
	p.StatusHistory = append(p.StatusHistory, StatusChange{
		From:      p.Status,
		To:        to,
		Reason:    reason,
		ChangedAt: now,
		ChangedBy: actor,
	})
	p.Status = to
	p.UpdatedAt = now
}

// RecordService moves LastServiceDate forward; older dates are ignored.
func (p *Person) RecordService(at time.Time, now time.Time) {
	if p.LastServiceDate != nil && !at.After(*p.LastServiceDate) {
		return
	}
	p.LastServiceDate = &at
	p.UpdatedAt = now
}

// ApplySoftDelete tombstones the record. Callers check references first.
func (p *Person) ApplySoftDelete(now time.Time) {
	p.DeletedAt = &now
	p.UpdatedAt = now
}

// RoleExtras returns the overflow bucket for t, if any.
func (p *Person) RoleExtras(t PersonType) map[string]any {
	bucket, _ := p.Metadata[MetadataRoleExtras].(map[string]any)
	extras, _ := bucket[string(t)].(map[string]any)
	return extras
}

func (p *Person) putMetadataBucket(key string, t PersonType, value map[string]any) {
	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	bucket, _ := p.Metadata[key].(map[string]any)
	if bucket == nil {
		bucket = make(map[string]any)
		p.Metadata[key] = bucket
	}
	existing, _ := bucket[string(t)].(map[string]any)
	if existing == nil {
		existing = make(map[string]any, len(value))
	}
	maps.Copy(existing, value)
	bucket[string(t)] = existing
}
