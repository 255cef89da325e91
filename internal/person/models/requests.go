package models

import (
	"net/mail"
	stdstrings "strings"
	"time"

	"github.com/shopspring/decimal"

	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/strings"
)

// NewProfile is raw demographic data used when the caller has no profile yet.
type NewProfile struct {
	FirstName   string
	LastName    string
	DateOfBirth *time.Time
	Email       string
	Phone       string
}

// PersonDetails carries what every factory request shares: the identity links
// (existing refs or raw data to create them) and the shared person fields.
type PersonDetails struct {
	ProfileID  id.ProfileID
	NewProfile *NewProfile

	AccountID    id.AccountID
	AccountEmail string

	EmergencyContact *EmergencyContact
	Notes            string
	Metadata         map[string]any
}

func (d *PersonDetails) normalize() {
	d.AccountEmail = stdstrings.ToLower(stdstrings.TrimSpace(d.AccountEmail))
	d.Notes = stdstrings.TrimSpace(d.Notes)
	if np := d.NewProfile; np != nil {
		np.FirstName = stdstrings.TrimSpace(np.FirstName)
		np.LastName = stdstrings.TrimSpace(np.LastName)
		np.Email = stdstrings.ToLower(stdstrings.TrimSpace(np.Email))
		np.Phone = stdstrings.TrimSpace(np.Phone)
	}
}

func (d *PersonDetails) validate(v *violations) {
	switch {
	case d.ProfileID.IsNil() && d.NewProfile == nil:
		v.add("profile_id", "required (or supply profile data)")
	case !d.ProfileID.IsNil() && d.NewProfile != nil:
		v.add("profile_id", "supply either profile_id or profile data, not both")
	case d.NewProfile != nil:
		if d.NewProfile.FirstName == "" {
			v.add("profile.first_name", "required")
		}
		if d.NewProfile.LastName == "" {
			v.add("profile.last_name", "required")
		}
	}
	switch {
	case d.AccountID.IsNil() && d.AccountEmail == "":
		v.add("account_id", "required (or supply account email)")
	case !d.AccountID.IsNil() && d.AccountEmail != "":
		v.add("account_id", "supply either account_id or account email, not both")
	case d.AccountEmail != "":
		if _, err := mail.ParseAddress(d.AccountEmail); err != nil {
			v.add("account_email", "must be a valid email address")
		}
	}
	if ec := d.EmergencyContact; ec != nil {
		if strings.Blank(ec.Name) {
			v.add("emergency_contact.name", "required")
		}
		if strings.Blank(ec.Phone) {
			v.add("emergency_contact.phone", "required")
		}
	}
}

// validateRequest turns request violations into a MissingRequiredField error.
func validateRequest(kind string, d *PersonDetails, role Role) error {
	v := &violations{}
	d.validate(v)
	v.addAll(RequiredFieldViolations(role))
	if len(v.fields) == 0 {
		return nil
	}
	return dErrors.New(dErrors.CodeMissingRequiredField, kind+" request is incomplete").WithFields(v.fields...)
}

type CreatePlatformStaffRequest struct {
	PersonDetails
	OrganizationID     id.OrganizationID
	Position           StaffPosition
	Department         string
	CanManageClients   bool
	CanApproveServices bool
	CanViewReports     bool
}

func (r *CreatePlatformStaffRequest) Normalize() {
	r.normalize()
	r.Department = stdstrings.TrimSpace(r.Department)
	r.Position = StaffPosition(stdstrings.ToLower(stdstrings.TrimSpace(string(r.Position))))
}

func (r *CreatePlatformStaffRequest) Validate() error {
	return validateRequest("platform staff", &r.PersonDetails, r.Role())
}

func (r *CreatePlatformStaffRequest) Role() Role {
	return &StaffRole{
		OrganizationID:     r.OrganizationID,
		Position:           r.Position,
		Department:         r.Department,
		CanManageClients:   r.CanManageClients,
		CanApproveServices: r.CanApproveServices,
		CanViewReports:     r.CanViewReports,
	}
}

type CreateClientEmployeeRequest struct {
	PersonDetails
	EmployerID       id.OrganizationID
	JobRole          string
	StartDate        time.Time
	EndDate          *time.Time
	EmploymentStatus EmploymentStatus
	Department       string
	EmployeeNumber   string
}

func (r *CreateClientEmployeeRequest) Normalize() {
	r.normalize()
	r.JobRole = stdstrings.TrimSpace(r.JobRole)
	r.Department = stdstrings.TrimSpace(r.Department)
	r.EmployeeNumber = stdstrings.TrimSpace(r.EmployeeNumber)
	if r.EmploymentStatus == "" {
		r.EmploymentStatus = EmploymentActive
	}
}

func (r *CreateClientEmployeeRequest) Validate() error {
	return validateRequest("client employee", &r.PersonDetails, r.Role())
}

func (r *CreateClientEmployeeRequest) Role() Role {
	return &EmployeeRole{
		EmployerID:       r.EmployerID,
		JobRole:          r.JobRole,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		EmploymentStatus: r.EmploymentStatus,
		Department:       r.Department,
		EmployeeNumber:   r.EmployeeNumber,
	}
}

type CreateDependentRequest struct {
	PersonDetails
	PrimaryEmployeeID id.PersonID
	Relationship      Relationship
	GuardianAccountID id.AccountID
}

func (r *CreateDependentRequest) Normalize() {
	r.normalize()
	r.Relationship = Relationship(stdstrings.ToLower(stdstrings.TrimSpace(string(r.Relationship))))
}

func (r *CreateDependentRequest) Validate() error {
	return validateRequest("dependent", &r.PersonDetails, r.Role())
}

func (r *CreateDependentRequest) Role() Role {
	return &DependentRole{
		PrimaryEmployeeID: r.PrimaryEmployeeID,
		Relationship:      r.Relationship,
		GuardianAccountID: r.GuardianAccountID,
	}
}

type CreateServiceProviderRequest struct {
	PersonDetails
	Category         ProviderCategory
	LicenseNumber    string
	LicenseExpiry    *time.Time
	LicenseAuthority string
	Specializations  []string
	Certifications   []string
	Languages        []string
	HourlyRate       decimal.Decimal
	Currency         string
	MaxClients       *int
	YearsExperience  int
	Bio              string
}

func (r *CreateServiceProviderRequest) Normalize() {
	r.normalize()
	r.Category = ProviderCategory(stdstrings.ToLower(stdstrings.TrimSpace(string(r.Category))))
	r.LicenseNumber = stdstrings.TrimSpace(r.LicenseNumber)
	r.LicenseAuthority = stdstrings.TrimSpace(r.LicenseAuthority)
	r.Currency = stdstrings.ToUpper(stdstrings.TrimSpace(r.Currency))
	r.Specializations = strings.DedupeAndTrim(r.Specializations)
	r.Certifications = strings.DedupeAndTrim(r.Certifications)
	r.Languages = strings.DedupeAndTrim(r.Languages)
}

func (r *CreateServiceProviderRequest) Validate() error {
	return validateRequest("service provider", &r.PersonDetails, r.Role())
}

// Role assembles the provider payload with factory defaults: no clients yet
// and accepting new ones.
func (r *CreateServiceProviderRequest) Role() Role {
	return &ProviderRole{
		Category:            r.Category,
		LicenseNumber:       r.LicenseNumber,
		LicenseExpiry:       r.LicenseExpiry,
		LicenseAuthority:    r.LicenseAuthority,
		Specializations:     r.Specializations,
		Certifications:      r.Certifications,
		Languages:           r.Languages,
		HourlyRate:          r.HourlyRate,
		Currency:            r.Currency,
		MaxClients:          r.MaxClients,
		CurrentClientCount:  0,
		AcceptingNewClients: true,
		YearsExperience:     r.YearsExperience,
		Bio:                 r.Bio,
	}
}
