package family_test

import (
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"eap/internal/person/directory"
	"eap/internal/person/family"
	"eap/internal/person/models"
	id "eap/pkg/domain"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type FamilySuite struct {
	suite.Suite
	dir   *directory.Directory
	graph *family.Graph
	seq   int
}

func TestFamilySuite(t *testing.T) {
	suite.Run(t, new(FamilySuite))
}

func (s *FamilySuite) SetupTest() {
	s.dir = directory.New()
	s.graph = family.New(s.dir)
	s.seq = 0
}

func (s *FamilySuite) add(primary models.Role) *models.Person {
	s.seq++
	p := &models.Person{
		ID:        id.PersonID(uuid.New()),
		Primary:   primary,
		Status:    models.StatusActive,
		CreatedAt: base.Add(time.Duration(s.seq) * time.Minute),
	}
	s.dir.Add(p)
	return p
}

func (s *FamilySuite) employee(employer id.OrganizationID) *models.Person {
	return s.add(&models.EmployeeRole{
		EmployerID:       employer,
		StartDate:        base,
		EmploymentStatus: models.EmploymentActive,
	})
}

func (s *FamilySuite) dependent(employee *models.Person) *models.Person {
	return s.add(&models.DependentRole{PrimaryEmployeeID: employee.ID, Relationship: models.RelationshipChild})
}

func (s *FamilySuite) TestDependents() {
	emp := s.employee(id.OrganizationID(uuid.New()))
	later := s.dependent(emp)
	earlier := s.dependent(emp)
	earlier.CreatedAt = base
	deleted := s.dependent(emp)
	deleted.ApplySoftDelete(base)

	s.Equal([]*models.Person{earlier, later}, s.graph.Dependents(emp))
	s.Nil(s.graph.Dependents(later), "dependents have no dependents")
	s.Nil(s.graph.Dependents(s.add(&models.StaffRole{OrganizationID: id.OrganizationID(uuid.New())})))
}

func (s *FamilySuite) TestDependentsWithSameCreationTime() {
	emp := s.employee(id.OrganizationID(uuid.New()))
	a := s.dependent(emp)
	b := s.dependent(emp)
	a.CreatedAt, b.CreatedAt = base, base

	want := []*models.Person{a, b}
	if slices.Compare(b.ID[:], a.ID[:]) < 0 {
		want = []*models.Person{b, a}
	}
	s.Equal(want, s.graph.Dependents(emp))

	// Insertion order must not leak into the result.
	reversed := directory.New()
	reversed.Add(b, a, emp)
	s.Equal(want, family.New(reversed).Dependents(emp))
	s.Equal(s.graph.FamilyUnit(a), family.New(reversed).FamilyUnit(b))
}

func (s *FamilySuite) TestFamilyUnit() {
	emp := s.employee(id.OrganizationID(uuid.New()))
	d1 := s.dependent(emp)
	d2 := s.dependent(emp)

	s.Run("employee first then dependents", func() {
		s.Equal([]*models.Person{emp, d1, d2}, s.graph.FamilyUnit(emp))
	})

	s.Run("dependent and its employee resolve to the same unit", func() {
		s.Equal(s.graph.FamilyUnit(emp), s.graph.FamilyUnit(d1))
		s.Equal(s.graph.FamilyUnit(emp), s.graph.FamilyUnit(d2))
	})

	s.Run("providers have no family unit", func() {
		s.Nil(s.graph.FamilyUnit(s.add(&models.ProviderRole{Category: models.ProviderCoach, LicenseNumber: "x"})))
	})

	s.Run("dangling reference", func() {
		orphan := s.add(&models.DependentRole{PrimaryEmployeeID: id.PersonID(uuid.New()), Relationship: models.RelationshipSpouse})
		s.Nil(s.graph.FamilyUnit(orphan))
	})

	s.Run("staff who is also an employee heads a unit", func() {
		staff := s.add(&models.StaffRole{OrganizationID: id.OrganizationID(uuid.New())})
		staff.Secondary = &models.EmployeeRole{EmployerID: id.OrganizationID(uuid.New()), StartDate: base, EmploymentStatus: models.EmploymentActive}
		dep := s.dependent(staff)
		s.Equal([]*models.Person{staff, dep}, s.graph.FamilyUnit(dep))
	})
}

func (s *FamilySuite) TestEffectiveOrganization() {
	employer := id.OrganizationID(uuid.New())
	operator := id.OrganizationID(uuid.New())
	emp := s.employee(employer)

	org, ok := s.graph.EffectiveOrganization(emp)
	s.True(ok)
	s.Equal(employer, org)

	org, ok = s.graph.EffectiveOrganization(s.dependent(emp))
	s.True(ok)
	s.Equal(employer, org)

	org, ok = s.graph.EffectiveOrganization(s.add(&models.StaffRole{OrganizationID: operator}))
	s.True(ok)
	s.Equal(operator, org)

	prov := s.add(&models.ProviderRole{Category: models.ProviderCoach, LicenseNumber: "x"})
	_, ok = s.graph.EffectiveOrganization(prov)
	s.False(ok, "independent providers have no organization")

	prov.Secondary = &models.EmployeeRole{EmployerID: employer, StartDate: base, EmploymentStatus: models.EmploymentActive}
	_, ok = s.graph.EffectiveOrganization(prov)
	s.False(ok, "a secondary role does not attach a primary provider")

	org, ok = s.graph.EffectiveOrganization(s.add(&models.EmployeeRole{EmployerID: employer, StartDate: base, EmploymentStatus: models.EmploymentActive}))
	s.True(ok)
	s.Equal(employer, org)
}
