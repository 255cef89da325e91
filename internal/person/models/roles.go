package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "eap/pkg/domain"
)

// Role is the attribute group owned by one person type. It is a closed sum:
// only the four implementations in this file satisfy it, so a type switch over
// a Role is exhaustive.
type Role interface {
	Type() PersonType
	clone() Role
}

// StaffRole holds the attributes of an EAP operator staff member.
type StaffRole struct {
	OrganizationID     id.OrganizationID `json:"organization_id"`
	Position           StaffPosition     `json:"position"`
	Department         string            `json:"department,omitempty"`
	CanManageClients   bool              `json:"can_manage_clients"`
	CanApproveServices bool              `json:"can_approve_services"`
	CanViewReports     bool              `json:"can_view_reports"`
}

func (r *StaffRole) Type() PersonType { return PersonTypePlatformStaff }

func (r *StaffRole) clone() Role {
	cp := *r
	return &cp
}

// EmployeeRole holds the attributes of an employee of a client company.
type EmployeeRole struct {
	EmployerID       id.OrganizationID `json:"employer_id"`
	JobRole          string            `json:"job_role,omitempty"`
	StartDate        time.Time         `json:"employment_start_date"`
	EndDate          *time.Time        `json:"employment_end_date,omitempty"`
	EmploymentStatus EmploymentStatus  `json:"employment_status"`
	Department       string            `json:"department,omitempty"`
	EmployeeNumber   string            `json:"employee_number,omitempty"`
}

func (r *EmployeeRole) Type() PersonType { return PersonTypeClientEmployee }

func (r *EmployeeRole) clone() Role {
	cp := *r
	if r.EndDate != nil {
		end := *r.EndDate
		cp.EndDate = &end
	}
	return &cp
}

// DependentRole links a family member to the client employee whose coverage
// they share. PrimaryEmployeeID is a weak reference resolved through a store;
// the guardian is likewise a lookup-only account reference.
type DependentRole struct {
	PrimaryEmployeeID id.PersonID  `json:"primary_employee_id"`
	Relationship      Relationship `json:"relationship"`
	GuardianAccountID id.AccountID `json:"guardian_account_id,omitzero"`
}

func (r *DependentRole) Type() PersonType { return PersonTypeDependent }

func (r *DependentRole) clone() Role {
	cp := *r
	return &cp
}

func (r *DependentRole) HasGuardian() bool { return !r.GuardianAccountID.IsNil() }

// ProviderRole holds the attributes of an external service provider.
// MaxClients nil means no caseload cap.
type ProviderRole struct {
	Category            ProviderCategory `json:"category"`
	LicenseNumber       string           `json:"license_number"`
	LicenseExpiry       *time.Time       `json:"license_expiry,omitempty"`
	LicenseAuthority    string           `json:"license_authority,omitempty"`
	Specializations     []string         `json:"specializations,omitempty"`
	Certifications      []string         `json:"certifications,omitempty"`
	Languages           []string         `json:"languages,omitempty"`
	HourlyRate          decimal.Decimal  `json:"hourly_rate"`
	Currency            string           `json:"currency,omitempty"`
	MaxClients          *int             `json:"max_clients,omitempty"`
	CurrentClientCount  int              `json:"current_client_count"`
	AcceptingNewClients bool             `json:"accepting_new_clients"`
	YearsExperience     int              `json:"years_experience"`
	Bio                 string           `json:"bio,omitempty"`
}

func (r *ProviderRole) Type() PersonType { return PersonTypeServiceProvider }

func (r *ProviderRole) clone() Role {
	cp := *r
	cp.Specializations = slices.Clone(r.Specializations)
	cp.Certifications = slices.Clone(r.Certifications)
	cp.Languages = slices.Clone(r.Languages)
	if r.LicenseExpiry != nil {
		exp := *r.LicenseExpiry
		cp.LicenseExpiry = &exp
	}
	if r.MaxClients != nil {
		maxClients := *r.MaxClients
		cp.MaxClients = &maxClients
	}
	return &cp
}

// HasCapacity reports whether one more client fits under the cap.
func (r *ProviderRole) HasCapacity() bool {
	return r.MaxClients == nil || r.CurrentClientCount < *r.MaxClients
}

// LicenseValidAt reports whether the license has not expired before t.
func (r *ProviderRole) LicenseValidAt(t time.Time) bool {
	return r.LicenseExpiry == nil || !r.LicenseExpiry.Before(t)
}

// MarshalRole encodes a role payload. The type is stored alongside by callers.
func MarshalRole(r Role) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

// UnmarshalRole decodes a payload written by MarshalRole for type t.
func UnmarshalRole(t PersonType, data []byte) (Role, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r Role
	switch t {
	case PersonTypePlatformStaff:
		r = &StaffRole{}
	case PersonTypeClientEmployee:
		r = &EmployeeRole{}
	case PersonTypeDependent:
		r = &DependentRole{}
	case PersonTypeServiceProvider:
		r = &ProviderRole{}
	default:
		return nil, fmt.Errorf("unknown person type %q", t)
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decode %s role: %w", t, err)
	}
	return r, nil
}
