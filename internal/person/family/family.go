// Package family resolves the dependent-to-employee relation.
//
// A dependent references its primary employee by ID; the employee never holds
// its dependents. Dependents cannot themselves be primary employees, so every
// walk here is at most one hop.
package family

import (
	"cmp"
	"slices"

	"eap/internal/person/models"
	id "eap/pkg/domain"
)

// Lookup resolves person references and the dependents view.
type Lookup interface {
	Person(personID id.PersonID) (*models.Person, bool)
	DependentsOf(employeeID id.PersonID) []*models.Person
}

type Graph struct {
	lookup Lookup
}

func New(lookup Lookup) *Graph {
	return &Graph{lookup: lookup}
}

// Dependents returns the non-deleted dependents of employee ordered by
// creation time, then ID, so every caller sees the same order. Non-employees
// have none.
func (g *Graph) Dependents(employee *models.Person) []*models.Person {
	if employee == nil || !employee.HasRole(models.PersonTypeClientEmployee) {
		return nil
	}
	var out []*models.Person
	for _, dep := range g.lookup.DependentsOf(employee.ID) {
		if dep.IsDeleted() || dep.ID == employee.ID {
			continue
		}
		if link, ok := dep.Dependent(); !ok || link.PrimaryEmployeeID != employee.ID {
			continue
		}
		out = append(out, dep)
	}
	slices.SortFunc(out, func(a, b *models.Person) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), slices.Compare(a.ID[:], b.ID[:]))
	})
	return out
}

// FamilyUnit returns the employee followed by its dependents. For a dependent
// the unit of its primary employee is returned; anyone else has none.
func (g *Graph) FamilyUnit(p *models.Person) []*models.Person {
	employee := g.primaryEmployee(p)
	if employee == nil {
		return nil
	}
	return append([]*models.Person{employee}, g.Dependents(employee)...)
}

// EffectiveOrganization resolves the organization a person belongs to:
// staff to their organization, employees to their employer, dependents to
// their primary employee's employer. A primary provider is independent even
// when a secondary role names an organization.
func (g *Graph) EffectiveOrganization(p *models.Person) (id.OrganizationID, bool) {
	if p == nil {
		return id.OrganizationID{}, false
	}
	if org, ok := roleOrganization(p.Primary); ok {
		return org, true
	}
	switch p.Primary.(type) {
	case *models.DependentRole:
		employee := g.primaryEmployee(p)
		if employee == nil {
			return id.OrganizationID{}, false
		}
		e, _ := employee.Employee()
		return e.EmployerID, !e.EmployerID.IsNil()
	}
	return id.OrganizationID{}, false
}

func roleOrganization(r models.Role) (id.OrganizationID, bool) {
	switch role := r.(type) {
	case *models.StaffRole:
		return role.OrganizationID, !role.OrganizationID.IsNil()
	case *models.EmployeeRole:
		return role.EmployerID, !role.EmployerID.IsNil()
	}
	return id.OrganizationID{}, false
}

// primaryEmployee returns p when it is an employee, the record p references
// when p is a dependent, and nil otherwise.
func (g *Graph) primaryEmployee(p *models.Person) *models.Person {
	if p == nil {
		return nil
	}
	if dep, ok := p.Dependent(); ok {
		employee, found := g.lookup.Person(dep.PrimaryEmployeeID)
		if !found || employee == nil || !employee.HasRole(models.PersonTypeClientEmployee) {
			return nil
		}
		return employee
	}
	if p.HasRole(models.PersonTypeClientEmployee) {
		return p
	}
	return nil
}
