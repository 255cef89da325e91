// Package directory holds an in-memory arena of person records keyed by ID.
//
// Records reference each other only through IDs; the arena resolves those
// references and answers the lookups the eligibility evaluator and family
// graph need. It is built per query from store reads and is not safe for
// concurrent mutation.
package directory

import (
	"slices"

	"eap/internal/person/models"
	id "eap/pkg/domain"
)

// Directory is a snapshot of persons, their dependent links, and the activity
// flag of the organizations they belong to.
type Directory struct {
	persons    map[id.PersonID]*models.Person
	dependents map[id.PersonID][]id.PersonID
	orgActive  map[id.OrganizationID]bool
}

func New() *Directory {
	return &Directory{
		persons:    make(map[id.PersonID]*models.Person),
		dependents: make(map[id.PersonID][]id.PersonID),
		orgActive:  make(map[id.OrganizationID]bool),
	}
}

// Add stores p and indexes its dependent link. Adding the same ID twice
// replaces the record.
func (d *Directory) Add(persons ...*models.Person) {
	for _, p := range persons {
		if p == nil {
			continue
		}
		if prev, ok := d.persons[p.ID]; ok {
			d.unlink(prev)
		}
		d.persons[p.ID] = p
		if dep, ok := p.Dependent(); ok {
			d.dependents[dep.PrimaryEmployeeID] = append(d.dependents[dep.PrimaryEmployeeID], p.ID)
		}
	}
}

func (d *Directory) unlink(p *models.Person) {
	dep, ok := p.Dependent()
	if !ok {
		return
	}
	ids := d.dependents[dep.PrimaryEmployeeID]
	d.dependents[dep.PrimaryEmployeeID] = slices.DeleteFunc(ids, func(x id.PersonID) bool { return x == p.ID })
}

func (d *Directory) SetOrganizationActive(org id.OrganizationID, active bool) {
	d.orgActive[org] = active
}

// Person resolves a reference. Unknown IDs resolve to nil.
func (d *Directory) Person(personID id.PersonID) (*models.Person, bool) {
	p, ok := d.persons[personID]
	return p, ok
}

// DependentsOf returns every known record pointing at employeeID, deleted or
// not, in insertion order.
func (d *Directory) DependentsOf(employeeID id.PersonID) []*models.Person {
	ids := d.dependents[employeeID]
	out := make([]*models.Person, 0, len(ids))
	for _, depID := range ids {
		if p, ok := d.persons[depID]; ok {
			out = append(out, p)
		}
	}
	return out
}

// OrganizationActive reports the recorded flag; unknown organizations are
// inactive.
func (d *Directory) OrganizationActive(org id.OrganizationID) bool {
	return d.orgActive[org]
}

// Organizations lists the organization IDs referenced by the stored roles
// that have no activity flag yet.
func (d *Directory) Organizations() []id.OrganizationID {
	seen := make(map[id.OrganizationID]bool)
	var out []id.OrganizationID
	add := func(org id.OrganizationID) {
		if org.IsNil() || seen[org] {
			return
		}
		seen[org] = true
		if _, known := d.orgActive[org]; !known {
			out = append(out, org)
		}
	}
	for _, p := range d.persons {
		if s, ok := p.Staff(); ok {
			add(s.OrganizationID)
		}
		if e, ok := p.Employee(); ok {
			add(e.EmployerID)
		}
	}
	return out
}

func (d *Directory) Len() int { return len(d.persons) }
