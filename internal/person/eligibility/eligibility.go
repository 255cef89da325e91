// Package eligibility decides whether a person may currently receive, deliver
// or administer services.
//
// Evaluation is a pure read over already-loaded records: no I/O, no clock
// reads, safe for concurrent use as long as the Lookup is.
package eligibility

import (
	"time"

	"eap/internal/person/models"
	id "eap/pkg/domain"
)

// Lookup resolves the references a record makes.
type Lookup interface {
	Person(personID id.PersonID) (*models.Person, bool)
	OrganizationActive(org id.OrganizationID) bool
}

// Branch is the verdict for one role the person holds.
type Branch struct {
	Role     models.PersonType
	Eligible bool
	Reason   string
}

// Result explains a decision. Eligible is true when any branch passed.
type Result struct {
	Eligible bool
	Reason   string
	Branches []Branch
}

const (
	ReasonEligible          = "eligible"
	ReasonUnknownPerson     = "person not found"
	ReasonDeleted           = "person is deleted"
	ReasonNotActive         = "person is not active"
	ReasonNoBranch          = "no role grants eligibility"
	ReasonNoOrganization    = "no organization assigned"
	ReasonEmploymentStatus  = "employment is not active"
	ReasonEmployerInactive  = "employer organization is inactive"
	ReasonEmployeeNotFound  = "primary employee not found"
	ReasonEmployeeNotActive = "primary employee is not eligible"
	ReasonChainedDependent  = "primary employee is a dependent"
	ReasonNotAccepting      = "not accepting new clients"
	ReasonLicenseExpired    = "license has expired"
	ReasonAtCapacity        = "client capacity reached"
)

type Evaluator struct {
	lookup Lookup
}

func New(lookup Lookup) *Evaluator {
	return &Evaluator{lookup: lookup}
}

// IsEligibleForServices is Evaluate reduced to its verdict.
func (e *Evaluator) IsEligibleForServices(p *models.Person, asOf time.Time) bool {
	return e.Evaluate(p, asOf).Eligible
}

// Evaluate checks lifecycle state, then every applicable role branch.
// Staff counts only as the primary role; a record with no passing branch is
// ineligible.
func (e *Evaluator) Evaluate(p *models.Person, asOf time.Time) Result {
	if gate := lifecycleGate(p); gate != "" {
		return Result{Reason: gate}
	}

	var branches []Branch
	switch role := p.Primary.(type) {
	case *models.StaffRole:
		branches = append(branches, staffBranch(role))
	case *models.DependentRole:
		branches = append(branches, e.dependentBranch(role))
	case *models.EmployeeRole:
		branches = append(branches, e.employeeBranch(role))
	case *models.ProviderRole:
		branches = append(branches, providerBranch(role, asOf))
	}
	switch role := p.Secondary.(type) {
	case *models.EmployeeRole:
		branches = append(branches, e.employeeBranch(role))
	case *models.ProviderRole:
		branches = append(branches, providerBranch(role, asOf))
	}

	res := Result{Branches: branches, Reason: ReasonNoBranch}
	for i, b := range branches {
		if b.Eligible {
			return Result{Eligible: true, Reason: ReasonEligible, Branches: branches}
		}
		if i == 0 {
			res.Reason = b.Reason
		}
	}
	return res
}

func lifecycleGate(p *models.Person) string {
	switch {
	case p == nil:
		return ReasonUnknownPerson
	case p.IsDeleted():
		return ReasonDeleted
	case !p.IsActive():
		return ReasonNotActive
	}
	return ""
}

func staffBranch(r *models.StaffRole) Branch {
	b := Branch{Role: models.PersonTypePlatformStaff}
	if r.OrganizationID.IsNil() {
		b.Reason = ReasonNoOrganization
		return b
	}
	b.Eligible, b.Reason = true, ReasonEligible
	return b
}

func (e *Evaluator) employeeBranch(r *models.EmployeeRole) Branch {
	b := Branch{Role: models.PersonTypeClientEmployee}
	switch {
	case r.EmploymentStatus != models.EmploymentActive:
		b.Reason = ReasonEmploymentStatus
	case !e.lookup.OrganizationActive(r.EmployerID):
		b.Reason = ReasonEmployerInactive
	default:
		b.Eligible, b.Reason = true, ReasonEligible
	}
	return b
}

// dependentBranch follows the employee reference exactly once. The referenced
// record passes through the lifecycle gate and its ClientEmployee branch only.
func (e *Evaluator) dependentBranch(r *models.DependentRole) Branch {
	b := Branch{Role: models.PersonTypeDependent}
	emp, ok := e.lookup.Person(r.PrimaryEmployeeID)
	if !ok || emp == nil {
		b.Reason = ReasonEmployeeNotFound
		return b
	}
	if emp.Type() == models.PersonTypeDependent {
		b.Reason = ReasonChainedDependent
		return b
	}
	employment, ok := emp.Employee()
	if !ok || lifecycleGate(emp) != "" || !e.employeeBranch(employment).Eligible {
		b.Reason = ReasonEmployeeNotActive
		return b
	}
	b.Eligible, b.Reason = true, ReasonEligible
	return b
}

func providerBranch(r *models.ProviderRole, asOf time.Time) Branch {
	b := Branch{Role: models.PersonTypeServiceProvider}
	switch {
	case !r.AcceptingNewClients:
		b.Reason = ReasonNotAccepting
	case !r.LicenseValidAt(asOf):
		b.Reason = ReasonLicenseExpired
	case !r.HasCapacity():
		b.Reason = ReasonAtCapacity
	default:
		b.Eligible, b.Reason = true, ReasonEligible
	}
	return b
}
