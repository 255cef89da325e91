package models

import (
	"reflect"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/strings"
)

// ValidationInput carries the context-dependent facts some rules need.
// Zero values switch the matching rule off: no Now skips license expiry, no
// DateOfBirth skips the minor-guardian rule, no PrimaryEmployee skips the
// reference-type rule.
type ValidationInput struct {
	Now             time.Time
	DateOfBirth     *time.Time
	PrimaryEmployee *Person
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Validate checks that p is internally consistent for the types it holds.
//
// Rule categories run in order and stop at the first failing category; every
// failing field within that category is reported:
//  1. discriminator            -> CodeInvalidCombination
//  2. attribute-group presence -> CodeInvalidCombination
//  3. required fields          -> CodeMissingRequiredField
//  4. field well-formedness    -> CodeInvalidInput
//  5. preconditions            -> CodePreconditionViolation
//  6. provider capacity        -> CodeCapacityExceeded
//
// Pure: no I/O, no clock reads.
func Validate(p *Person, in ValidationInput) error {
	if p == nil {
		return dErrors.New(dErrors.CodeMissingRequiredField, "person is required")
	}
	if p.Primary == nil {
		return dErrors.New(dErrors.CodeMissingRequiredField, "person is invalid").
			WithFields(dErrors.FieldError{Field: "person_type", Message: "required"})
	}

	checks := []struct {
		code dErrors.Code
		run  func(*Person, ValidationInput, *violations)
	}{
		{dErrors.CodeInvalidCombination, checkDiscriminator},
		{dErrors.CodeInvalidCombination, checkAttributeGroups},
		{dErrors.CodeMissingRequiredField, checkRequired},
		{dErrors.CodeInvalidInput, checkWellFormed},
		{dErrors.CodePreconditionViolation, checkPreconditions},
		{dErrors.CodeCapacityExceeded, checkCapacity},
	}
	for _, c := range checks {
		v := &violations{}
		c.run(p, in, v)
		if err := v.err(c.code); err != nil {
			return err
		}
	}
	return nil
}

type violations struct {
	fields []dErrors.FieldError
}

func (v *violations) add(field, msg string) {
	v.fields = append(v.fields, dErrors.FieldError{Field: field, Message: msg})
}

func (v *violations) addAll(fields []dErrors.FieldError) {
	v.fields = append(v.fields, fields...)
}

func (v *violations) err(code dErrors.Code) error {
	if len(v.fields) == 0 {
		return nil
	}
	return dErrors.New(code, "person is invalid").WithFields(v.fields...)
}

func checkDiscriminator(p *Person, _ ValidationInput, v *violations) {
	primary := p.Primary.Type()
	if !primary.IsValid() {
		v.add("person_type", "unknown person type")
		return
	}
	if p.Secondary == nil {
		return
	}
	secondary := p.Secondary.Type()
	switch {
	case primary == PersonTypeDependent:
		v.add("secondary_person_type", "dependents cannot hold dual roles")
	case secondary == primary:
		v.add("secondary_person_type", "must differ from person_type")
	case !IsAllowedPair(primary, secondary):
		v.add("secondary_person_type", string(primary)+" cannot be combined with "+string(secondary))
	}
}

func checkAttributeGroups(p *Person, _ ValidationInput, v *violations) {
	if isNilRole(p.Primary) {
		v.add(string(p.Primary.Type()), "attributes must be populated for the primary role")
	}
	if p.Secondary != nil && isNilRole(p.Secondary) {
		v.add(string(p.Secondary.Type()), "attributes must be populated for the secondary role")
	}
}

// isNilRole catches a typed nil pointer stored in the Role interface.
func isNilRole(r Role) bool {
	rv := reflect.ValueOf(r)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func checkRequired(p *Person, _ ValidationInput, v *violations) {
	if p.ID.IsNil() {
		v.add("id", "required")
	}
	if p.ProfileID.IsNil() {
		v.add("profile_id", "required")
	}
	if p.AccountID.IsNil() {
		v.add("account_id", "required")
	}
	if p.Status == "" {
		v.add("status", "required")
	}
	v.addAll(RequiredFieldViolations(p.Primary))
	if p.Secondary != nil {
		v.addAll(RequiredFieldViolations(p.Secondary))
	}
}

// RequiredFieldViolations lists the mandatory attributes r is missing. The
// factory and the dual-role composer share these minimums.
func RequiredFieldViolations(r Role) []dErrors.FieldError {
	var out []dErrors.FieldError
	missing := func(field string) {
		out = append(out, dErrors.FieldError{Field: field, Message: "required"})
	}
	switch role := r.(type) {
	case *StaffRole:
		if role.OrganizationID.IsNil() {
			missing("organization_id")
		}
		if role.Position == "" {
			missing("staff_role")
		}
	case *EmployeeRole:
		if role.EmployerID.IsNil() {
			missing("employer_id")
		}
		if role.StartDate.IsZero() {
			missing("employment_start_date")
		}
		if role.EmploymentStatus == "" {
			missing("employment_status")
		}
	case *DependentRole:
		if role.PrimaryEmployeeID.IsNil() {
			missing("primary_employee_id")
		}
		if role.Relationship == "" {
			missing("relationship")
		}
	case *ProviderRole:
		if role.Category == "" {
			missing("provider_category")
		}
		if strings.Blank(role.LicenseNumber) {
			missing("license_number")
		}
	}
	return out
}

func checkWellFormed(p *Person, _ ValidationInput, v *violations) {
	if p.Status != "" && !p.Status.IsValid() {
		v.add("status", "unknown status")
	}
	for _, r := range []Role{p.Primary, p.Secondary} {
		switch role := r.(type) {
		case *StaffRole:
			if !role.Position.IsValid() {
				v.add("staff_role", "unknown staff role")
			}
		case *EmployeeRole:
			if !role.EmploymentStatus.IsValid() {
				v.add("employment_status", "unknown employment status")
			}
			if role.EndDate != nil && role.EndDate.Before(role.StartDate) {
				v.add("employment_end_date", "must not be before employment_start_date")
			}
		case *DependentRole:
			if !role.Relationship.IsValid() {
				v.add("relationship", "unknown relationship")
			}
		case *ProviderRole:
			if !role.Category.IsValid() {
				v.add("provider_category", "unknown provider category")
			}
			if role.HourlyRate.LessThan(decimal.Zero) {
				v.add("hourly_rate", "must not be negative")
			}
			if role.HourlyRate.IsPositive() && !currencyPattern.MatchString(role.Currency) {
				v.add("currency", "must be a three-letter ISO code when hourly_rate is set")
			}
			if role.CurrentClientCount < 0 {
				v.add("current_client_count", "must not be negative")
			}
			if role.MaxClients != nil && *role.MaxClients < 0 {
				v.add("max_clients", "must not be negative")
			}
			if role.YearsExperience < 0 {
				v.add("years_experience", "must not be negative")
			}
		}
	}
}

func checkPreconditions(p *Person, in ValidationInput, v *violations) {
	if pr, ok := p.Provider(); ok && !in.Now.IsZero() && !pr.LicenseValidAt(in.Now) {
		v.add("license_expiry", "license has expired")
	}
	dep, ok := p.Dependent()
	if !ok {
		return
	}
	if dep.PrimaryEmployeeID == p.ID {
		v.add("primary_employee_id", "a dependent cannot reference itself")
	}
	if dep.Relationship == RelationshipChild && in.DateOfBirth != nil && !dep.HasGuardian() {
		asOf := in.Now
		if asOf.IsZero() {
			asOf = p.CreatedAt
		}
		if AgeAt(*in.DateOfBirth, asOf) < MinorAgeThreshold {
			v.add("guardian_account_id", "guardian required for minor")
		}
	}
	if emp := in.PrimaryEmployee; emp != nil {
		if emp.ID != dep.PrimaryEmployeeID {
			v.add("primary_employee_id", "supplied primary employee does not match the reference")
		} else if !emp.HasRole(PersonTypeClientEmployee) {
			v.add("primary_employee_id", "referenced person is not a client employee")
		}
	}
}

func checkCapacity(p *Person, _ ValidationInput, v *violations) {
	pr, ok := p.Provider()
	if !ok || pr.MaxClients == nil {
		return
	}
	if pr.CurrentClientCount > *pr.MaxClients {
		v.add("current_client_count", "exceeds max_clients")
	}
}
