package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"eap/internal/person/eligibility"
	"eap/internal/person/metrics"
	"eap/internal/person/models"
	"eap/internal/person/store/account"
	"eap/internal/person/store/organization"
	personstore "eap/internal/person/store/person"
	"eap/internal/person/store/profile"
	"eap/internal/person/store/session"
	id "eap/pkg/domain"
	dErrors "eap/pkg/domain-errors"
	"eap/pkg/platform/audit"
	auditmemory "eap/pkg/platform/audit/store/memory"
	"eap/pkg/platform/sentinel"
	"eap/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	now      time.Time
	persons  *personstore.InMemory
	profiles *profile.InMemory
	accounts *account.InMemory
	orgs     *organization.InMemory
	sessions *session.InMemory
	audit    *auditmemory.InMemoryStore
	service  *Service

	acme    id.OrganizationID
	defunct id.OrganizationID
	seq     int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithRequestID(requestcontext.WithTime(context.Background(), s.now), "req-1")
	s.persons = personstore.NewInMemory()
	s.profiles = profile.NewInMemory()
	s.accounts = account.NewInMemory()
	s.orgs = organization.NewInMemory()
	s.sessions = session.NewInMemory()
	s.audit = auditmemory.NewInMemoryStore()
	s.service = s.newService(s.audit)

	s.acme = id.NewOrganizationID()
	s.defunct = id.NewOrganizationID()
	s.Require().NoError(s.orgs.Create(s.ctx, &models.Organization{ID: s.acme, Name: "Acme", Active: true}))
	s.Require().NoError(s.orgs.Create(s.ctx, &models.Organization{ID: s.defunct, Name: "Defunct", Active: false}))
}

func (s *ServiceSuite) newService(auditStore AuditStore) *Service {
	return New(Stores{
		Persons:       s.persons,
		Profiles:      s.profiles,
		Accounts:      s.accounts,
		Organizations: s.orgs,
		Sessions:      s.sessions,
		Audit:         auditStore,
	},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
}

func (s *ServiceSuite) details(dob *time.Time) models.PersonDetails {
	s.seq++
	return models.PersonDetails{
		NewProfile: &models.NewProfile{
			FirstName:   "Test",
			LastName:    "Person",
			DateOfBirth: dob,
		},
		AccountEmail: fmt.Sprintf("person%d@example.com", s.seq),
	}
}

func (s *ServiceSuite) createEmployee(employer id.OrganizationID) *models.Person {
	p, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
		PersonDetails: s.details(nil),
		EmployerID:    employer,
		JobRole:       "Staff",
		StartDate:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) createDependent(employee id.PersonID) *models.Person {
	dob := time.Date(1985, 6, 1, 0, 0, 0, 0, time.UTC)
	p, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
		PersonDetails:     s.details(&dob),
		PrimaryEmployeeID: employee,
		Relationship:      models.RelationshipSpouse,
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) createProvider(maxClients *int) *models.Person {
	expiry := s.now.AddDate(1, 0, 0)
	p, err := s.service.CreateServiceProvider(s.ctx, &models.CreateServiceProviderRequest{
		PersonDetails: s.details(nil),
		Category:      models.ProviderCounselor,
		LicenseNumber: "LIC-42",
		LicenseExpiry: &expiry,
		HourlyRate:    decimal.NewFromInt(90),
		Currency:      "usd",
		MaxClients:    maxClients,
	})
	s.Require().NoError(err)
	return p
}

func (s *ServiceSuite) personCount() int {
	n, err := s.persons.Count(s.ctx)
	s.Require().NoError(err)
	return n
}

func intPtr(n int) *int { return &n }

func (s *ServiceSuite) TestCreateClientEmployee() {
	s.Run("links existing profile and account", func() {
		profileID := id.NewProfileID()
		accountID := id.NewAccountID()
		s.Require().NoError(s.profiles.Create(s.ctx, &models.Profile{ID: profileID, FirstName: "P", LastName: "One"}))
		s.Require().NoError(s.accounts.Create(s.ctx, &models.Account{ID: accountID, Email: "u1@example.com"}))

		p, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: models.PersonDetails{ProfileID: profileID, AccountID: accountID},
			EmployerID:    s.acme,
			JobRole:       "Staff",
			StartDate:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		s.Require().NoError(err)
		s.Equal(models.PersonTypeClientEmployee, p.Type())
		s.Equal(models.StatusActive, p.Status)
		s.False(p.IsDualRole())
		e, ok := p.Employee()
		s.Require().True(ok)
		s.Equal(models.EmploymentActive, e.EmploymentStatus)
		s.Equal(s.now, p.CreatedAt)

		events, err := s.audit.ListByPerson(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventPersonCreated), events[0].Action)
		s.Equal("req-1", events[0].RequestID)

		s.Run("profile backs at most one person", func() {
			_, err := s.service.CreateServiceProvider(s.ctx, &models.CreateServiceProviderRequest{
				PersonDetails: models.PersonDetails{ProfileID: profileID, AccountID: accountID},
				Category:      models.ProviderCoach,
				LicenseNumber: "LIC-1",
			})
			s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		})
	})

	s.Run("creates profile and inactive account from raw data", func() {
		d := s.details(nil)
		email := d.AccountEmail
		p, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: d,
			EmployerID:    s.acme,
			StartDate:     s.now.AddDate(-1, 0, 0),
		})
		s.Require().NoError(err)

		prof, err := s.profiles.FindByID(s.ctx, p.ProfileID)
		s.Require().NoError(err)
		s.Equal("Test", prof.FirstName)
		acct, err := s.accounts.FindByEmail(s.ctx, email)
		s.Require().NoError(err)
		s.Equal(p.AccountID, acct.ID)
		s.False(acct.Active)
	})

	s.Run("missing start date", func() {
		_, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: s.details(nil),
			EmployerID:    s.acme,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
	})

	s.Run("unknown employer", func() {
		before := s.personCount()
		_, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: s.details(nil),
			EmployerID:    id.NewOrganizationID(),
			StartDate:     s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReferenceNotFound))
		s.Equal("employer_id", dErrors.FieldsOf(err)[0].Field)
		s.Equal(before, s.personCount())
	})

	s.Run("unknown profile", func() {
		_, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: models.PersonDetails{ProfileID: id.NewProfileID(), AccountEmail: "x@example.com"},
			EmployerID:    s.acme,
			StartDate:     s.now,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReferenceNotFound))
	})

	s.Run("end date before start date", func() {
		end := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := s.service.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
			PersonDetails: s.details(nil),
			EmployerID:    s.acme,
			StartDate:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:       &end,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *ServiceSuite) TestCreateDependent() {
	employee := s.createEmployee(s.acme)
	tenYearsOld := s.now.AddDate(-10, 0, 0)

	s.Run("minor child without guardian", func() {
		before := s.personCount()
		d := s.details(&tenYearsOld)
		_, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
			PersonDetails:     d,
			PrimaryEmployeeID: employee.ID,
			Relationship:      models.RelationshipChild,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
		s.Equal(before, s.personCount())

		_, err = s.accounts.FindByEmail(s.ctx, d.AccountEmail)
		s.ErrorIs(err, sentinel.ErrNotFound, "account creation rolled back")
	})

	s.Run("minor child with guardian", func() {
		dep, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
			PersonDetails:     s.details(&tenYearsOld),
			PrimaryEmployeeID: employee.ID,
			Relationship:      models.RelationshipChild,
			GuardianAccountID: employee.AccountID,
		})
		s.Require().NoError(err)
		s.Equal(models.PersonTypeDependent, dep.Type())
	})

	s.Run("unknown guardian", func() {
		_, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
			PersonDetails:     s.details(&tenYearsOld),
			PrimaryEmployeeID: employee.ID,
			Relationship:      models.RelationshipChild,
			GuardianAccountID: id.NewAccountID(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReferenceNotFound))
	})

	s.Run("primary employee without the employee role", func() {
		provider := s.createProvider(nil)
		_, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
			PersonDetails:     s.details(nil),
			PrimaryEmployeeID: provider.ID,
			Relationship:      models.RelationshipSpouse,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
		s.Equal("primary_employee_id", dErrors.FieldsOf(err)[0].Field)
	})

	s.Run("unknown primary employee", func() {
		_, err := s.service.CreateDependent(s.ctx, &models.CreateDependentRequest{
			PersonDetails:     s.details(nil),
			PrimaryEmployeeID: id.NewPersonID(),
			Relationship:      models.RelationshipSpouse,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReferenceNotFound))
	})
}

func (s *ServiceSuite) TestCreateProviderAndStaff() {
	s.Run("provider defaults", func() {
		p := s.createProvider(intPtr(5))
		r, ok := p.Provider()
		s.Require().True(ok)
		s.True(r.AcceptingNewClients)
		s.Zero(r.CurrentClientCount)
		s.Equal("USD", r.Currency)
	})

	s.Run("expired license", func() {
		expired := s.now.AddDate(0, 0, -1)
		_, err := s.service.CreateServiceProvider(s.ctx, &models.CreateServiceProviderRequest{
			PersonDetails: s.details(nil),
			Category:      models.ProviderPsychologist,
			LicenseNumber: "LIC-9",
			LicenseExpiry: &expired,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
	})

	s.Run("staff", func() {
		p, err := s.service.CreatePlatformStaff(s.ctx, &models.CreatePlatformStaffRequest{
			PersonDetails:  s.details(nil),
			OrganizationID: s.acme,
			Position:       models.StaffPositionCaseManager,
		})
		s.Require().NoError(err)
		s.Equal(models.PersonTypePlatformStaff, p.Type())
	})

	s.Run("staff without position", func() {
		_, err := s.service.CreatePlatformStaff(s.ctx, &models.CreatePlatformStaffRequest{
			PersonDetails:  s.details(nil),
			OrganizationID: s.acme,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
	})
}

func (s *ServiceSuite) TestSecondaryRoles() {
	employee := s.createEmployee(s.acme)

	s.Run("staff role without fields", func() {
		_, err := s.service.AddSecondaryRole(s.ctx, employee.ID, models.PersonTypePlatformStaff, models.RoleFields{})
		s.True(dErrors.HasCode(err, dErrors.CodeMissingRequiredField))
	})

	s.Run("staff role at an unknown organization", func() {
		_, err := s.service.AddSecondaryRole(s.ctx, employee.ID, models.PersonTypePlatformStaff, models.RoleFields{
			"organization_id": id.NewOrganizationID().String(),
			"staff_role":      "support",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeReferenceNotFound))
	})

	s.Run("add, add again, remove, remove again", func() {
		fields := models.RoleFields{
			"organization_id": s.acme.String(),
			"staff_role":      "coordinator",
			"desk":            "3F",
		}
		p, err := s.service.AddSecondaryRole(s.ctx, employee.ID, models.PersonTypePlatformStaff, fields)
		s.Require().NoError(err)
		s.True(p.IsDualRole())
		secondary, _ := p.SecondaryType()
		s.Equal(models.PersonTypePlatformStaff, secondary)
		s.Equal("3F", p.RoleExtras(models.PersonTypePlatformStaff)["desk"])

		_, err = s.service.AddSecondaryRole(s.ctx, employee.ID, models.PersonTypePlatformStaff, fields)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCombination))

		p, err = s.service.RemoveSecondaryRole(s.ctx, employee.ID)
		s.Require().NoError(err)
		s.False(p.IsDualRole())
		_, ok := p.SecondaryType()
		s.False(ok)

		_, err = s.service.RemoveSecondaryRole(s.ctx, employee.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))

		events, err := s.audit.ListByPerson(s.ctx, employee.ID)
		s.Require().NoError(err)
		s.Len(events, 3)
	})

	s.Run("dependents cannot hold dual roles", func() {
		dep := s.createDependent(employee.ID)
		_, err := s.service.AddSecondaryRole(s.ctx, dep.ID, models.PersonTypeServiceProvider, models.RoleFields{
			"provider_category": "coach",
			"license_number":    "L-1",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCombination))
	})

	s.Run("unknown person", func() {
		_, err := s.service.RemoveSecondaryRole(s.ctx, id.NewPersonID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDeactivate() {
	employee := s.createEmployee(s.acme)
	dep := s.createDependent(employee.ID)

	_, err := s.service.Deactivate(s.ctx, employee.ID, "left company")
	s.True(dErrors.HasCode(err, dErrors.CodeBusinessRuleViolation))

	_, err = s.service.Deactivate(s.ctx, dep.ID, "coverage ended")
	s.Require().NoError(err)

	actor := id.NewAccountID()
	ctx := requestcontext.WithActor(s.ctx, actor)
	p, err := s.service.Deactivate(ctx, employee.ID, "left company")
	s.Require().NoError(err)
	s.Equal(models.StatusInactive, p.Status)
	s.Require().Len(p.StatusHistory, 1)
	s.Equal(models.StatusChange{
		From:      models.StatusActive,
		To:        models.StatusInactive,
		Reason:    "left company",
		ChangedAt: s.now,
		ChangedBy: actor,
	}, p.StatusHistory[0])
	e, _ := p.Employee()
	s.Equal(models.EmploymentInactive, e.EmploymentStatus)

	s.Run("already inactive", func() {
		_, err := s.service.Deactivate(s.ctx, employee.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
	})

	s.Run("activate reopens employment", func() {
		p, err := s.service.Activate(s.ctx, employee.ID, "rehired")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, p.Status)
		e, _ := p.Employee()
		s.Equal(models.EmploymentActive, e.EmploymentStatus)
		s.Len(p.StatusHistory, 2)
	})

	s.Run("suspended provider stops accepting clients", func() {
		provider := s.createProvider(nil)
		p, err := s.service.Suspend(s.ctx, provider.ID, "license review")
		s.Require().NoError(err)
		r, _ := p.Provider()
		s.False(r.AcceptingNewClients)
		s.Equal(models.StatusSuspended, p.Status)
	})

	s.Run("provider with an expired license cannot be reactivated", func() {
		provider := s.createProvider(nil)
		_, err := s.service.Suspend(s.ctx, provider.ID, "license review")
		s.Require().NoError(err)

		later := requestcontext.WithTime(s.ctx, s.now.AddDate(2, 0, 0))
		_, err = s.service.Activate(later, provider.ID, "review passed")
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))

		stored, err := s.service.GetPerson(s.ctx, provider.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusSuspended, stored.Status)
		r, _ := stored.Provider()
		s.False(r.AcceptingNewClients)
	})
}

func (s *ServiceSuite) TestSuspendEmployeeWithActiveDependents() {
	employee := s.createEmployee(s.acme)
	dep := s.createDependent(employee.ID)

	_, err := s.service.Suspend(s.ctx, employee.ID, "investigation")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBusinessRuleViolation))

	stored, err := s.service.GetPerson(s.ctx, employee.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, stored.Status)
	e, _ := stored.Employee()
	s.Equal(models.EmploymentActive, e.EmploymentStatus)

	eligible, err := s.service.IsEligible(s.ctx, dep.ID, s.now)
	s.Require().NoError(err)
	s.True(eligible, "dependent keeps coverage")

	_, err = s.service.Suspend(s.ctx, dep.ID, "coverage paused")
	s.Require().NoError(err)
	p, err := s.service.Suspend(s.ctx, employee.ID, "investigation")
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, p.Status)
}

func (s *ServiceSuite) TestEligibility() {
	employee := s.createEmployee(s.acme)
	dep := s.createDependent(employee.ID)

	eligible, err := s.service.IsEligible(s.ctx, dep.ID, time.Time{})
	s.Require().NoError(err)
	s.True(eligible)

	s.Run("terminated primary employee", func() {
		terminated := models.EmploymentTerminated
		end := s.now
		_, err := s.service.UpdateEmployment(s.ctx, employee.ID, EmploymentUpdate{Status: &terminated, EndDate: &end})
		s.Require().NoError(err)

		eligible, err := s.service.IsEligible(s.ctx, dep.ID, s.now)
		s.Require().NoError(err)
		s.False(eligible)

		res, err := s.service.Evaluate(s.ctx, dep.ID, s.now)
		s.Require().NoError(err)
		s.Equal(eligibility.ReasonEmployeeNotActive, res.Reason)

		stored, err := s.persons.FindByID(s.ctx, dep.ID)
		s.Require().NoError(err)
		s.Equal(dep.UpdatedAt, stored.UpdatedAt, "dependent record untouched")
	})

	s.Run("employer inactive", func() {
		other := s.createEmployee(s.defunct)
		eligible, err := s.service.IsEligible(s.ctx, other.ID, s.now)
		s.Require().NoError(err)
		s.False(eligible)
	})

	s.Run("provider at capacity", func() {
		provider := s.createProvider(intPtr(1))
		_, err := s.service.AssignClient(s.ctx, provider.ID)
		s.Require().NoError(err)
		res, err := s.service.Evaluate(s.ctx, provider.ID, s.now)
		s.Require().NoError(err)
		s.False(res.Eligible)
		s.Equal(eligibility.ReasonAtCapacity, res.Reason)
	})

	s.Run("unknown person", func() {
		_, err := s.service.IsEligible(s.ctx, id.NewPersonID(), s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestFamily() {
	employee := s.createEmployee(s.acme)
	first := s.createDependent(employee.ID)
	second := s.createDependent(employee.ID)

	fromEmployee, err := s.service.GetFamilyUnit(s.ctx, employee.ID)
	s.Require().NoError(err)
	fromDependent, err := s.service.GetFamilyUnit(s.ctx, second.ID)
	s.Require().NoError(err)

	ids := func(ps []*models.Person) []id.PersonID {
		out := make([]id.PersonID, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}
	s.Require().Len(fromEmployee, 3)
	s.Equal(employee.ID, fromEmployee[0].ID)
	s.ElementsMatch([]id.PersonID{first.ID, second.ID}, ids(fromEmployee[1:]))
	s.Equal(ids(fromEmployee), ids(fromDependent), "unit order does not depend on the starting member")

	fromFirst, err := s.service.GetFamilyUnit(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(ids(fromEmployee), ids(fromFirst))

	deps, err := s.service.ListDependents(s.ctx, employee.ID)
	s.Require().NoError(err)
	s.Equal(ids(fromEmployee[1:]), ids(deps))

	s.Run("effective organization", func() {
		org, ok, err := s.service.EffectiveOrganization(s.ctx, second.ID)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(s.acme, org)

		provider := s.createProvider(nil)
		_, ok, err = s.service.EffectiveOrganization(s.ctx, provider.ID)
		s.Require().NoError(err)
		s.False(ok)

		unit, err := s.service.GetFamilyUnit(s.ctx, provider.ID)
		s.Require().NoError(err)
		s.Empty(unit)
	})
}

func (s *ServiceSuite) TestDelete() {
	employee := s.createEmployee(s.acme)
	dep := s.createDependent(employee.ID)

	err := s.service.Delete(s.ctx, employee.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeBusinessRuleViolation))

	s.Run("open session blocks deletion", func() {
		s.Require().NoError(s.sessions.Save(s.ctx, &models.ServiceSession{
			ID: id.NewSessionID(), PersonID: dep.ID, Status: models.SessionScheduled, StartsAt: s.now,
		}))
		err := s.service.Delete(s.ctx, dep.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeBusinessRuleViolation))
	})

	s.Run("deleted records disappear from reads", func() {
		provider := s.createProvider(nil)
		s.Require().NoError(s.service.Delete(s.ctx, provider.ID))

		_, err := s.service.GetPerson(s.ctx, provider.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.True(dErrors.HasCode(s.service.Delete(s.ctx, provider.ID), dErrors.CodeNotFound))

		stored, err := s.persons.FindByID(s.ctx, provider.ID)
		s.Require().NoError(err)
		s.NotNil(stored.DeletedAt)

		eligible, err := s.service.IsEligible(s.ctx, provider.ID, s.now)
		s.Require().NoError(err)
		s.False(eligible)
	})
}

func (s *ServiceSuite) TestCaseload() {
	provider := s.createProvider(intPtr(2))

	for range 2 {
		_, err := s.service.AssignClient(s.ctx, provider.ID)
		s.Require().NoError(err)
	}
	_, err := s.service.AssignClient(s.ctx, provider.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded))

	p, err := s.service.ReleaseClient(s.ctx, provider.ID)
	s.Require().NoError(err)
	r, _ := p.Provider()
	s.Equal(1, r.CurrentClientCount)

	s.Run("release below zero", func() {
		other := s.createProvider(nil)
		_, err := s.service.ReleaseClient(s.ctx, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
	})

	s.Run("not a provider", func() {
		employee := s.createEmployee(s.acme)
		_, err := s.service.AssignClient(s.ctx, employee.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionViolation))
	})

	s.Run("service delivery only moves forward", func() {
		later := s.now.Add(-time.Hour)
		earlier := s.now.Add(-48 * time.Hour)
		_, err := s.service.RecordServiceDelivery(s.ctx, provider.ID, later)
		s.Require().NoError(err)
		p, err := s.service.RecordServiceDelivery(s.ctx, provider.ID, earlier)
		s.Require().NoError(err)
		s.Equal(later, *p.LastServiceDate)
	})
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

// TestCreationIsAtomic verifies a failure at the last step leaves no
// profile, account or person behind.
func (s *ServiceSuite) TestCreationIsAtomic() {
	svc := s.newService(failingAudit{})
	d := s.details(nil)
	before := s.personCount()

	_, err := svc.CreateClientEmployee(s.ctx, &models.CreateClientEmployeeRequest{
		PersonDetails: d,
		EmployerID:    s.acme,
		StartDate:     s.now,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(before, s.personCount())
	_, err = s.accounts.FindByEmail(s.ctx, d.AccountEmail)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
