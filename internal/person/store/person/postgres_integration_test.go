//go:build integration

package person_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"eap/internal/person/models"
	"eap/internal/person/store/account"
	"eap/internal/person/store/person"
	"eap/internal/person/store/profile"
	"eap/internal/platform/postgres"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	"eap/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *person.PostgresStore
	profiles *profile.PostgresStore
	accounts *account.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = person.NewPostgres(s.postgres.DB)
	s.profiles = profile.NewPostgres(s.postgres.DB)
	s.accounts = account.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"outbox", "service_sessions", "persons", "accounts", "profiles", "organizations")
	s.Require().NoError(err)
}

// refs inserts the profile and account a person row points at.
func (s *PostgresStoreSuite) refs() (id.ProfileID, id.AccountID) {
	ctx := context.Background()
	profileID := id.NewProfileID()
	accountID := id.NewAccountID()
	s.Require().NoError(s.profiles.Create(ctx, &models.Profile{
		ID: profileID, FirstName: "Test", LastName: "Person", CreatedAt: s.now,
	}))
	s.Require().NoError(s.accounts.Create(ctx, &models.Account{
		ID: accountID, Email: accountID.String() + "@example.com", CreatedAt: s.now,
	}))
	return profileID, accountID
}

func (s *PostgresStoreSuite) newEmployee(profileID id.ProfileID, accountID id.AccountID) *models.Person {
	return &models.Person{
		ID:        id.NewPersonID(),
		ProfileID: profileID,
		AccountID: accountID,
		Primary: &models.EmployeeRole{
			EmployerID:       id.NewOrganizationID(),
			JobRole:          "Analyst",
			StartDate:        s.now.AddDate(-1, 0, 0),
			EmploymentStatus: models.EmploymentActive,
		},
		Status:    models.StatusActive,
		Metadata:  map[string]any{},
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	profileID, accountID := s.refs()
	maxClients := 12
	p := s.newEmployee(profileID, accountID)
	p.Secondary = &models.ProviderRole{
		Category:            models.ProviderCounselor,
		LicenseNumber:       "LIC-1",
		HourlyRate:          decimal.RequireFromString("95.50"),
		Currency:            "USD",
		MaxClients:          &maxClients,
		AcceptingNewClients: true,
		Languages:           []string{"en", "pt"},
	}
	p.EmergencyContact = &models.EmergencyContact{Name: "Rui", Phone: "+351 900 000 000"}
	p.Notes = "prefers mornings"
	s.Require().NoError(s.store.Create(ctx, p))

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)
	s.Equal(models.PersonTypeClientEmployee, found.Type())
	secondary, ok := found.SecondaryType()
	s.True(ok)
	s.Equal(models.PersonTypeServiceProvider, secondary)

	provider, ok := found.Provider()
	s.Require().True(ok)
	s.True(provider.HourlyRate.Equal(decimal.RequireFromString("95.50")))
	s.Equal(12, *provider.MaxClients)
	s.Equal([]string{"en", "pt"}, provider.Languages)
	s.Equal("Rui", found.EmergencyContact.Name)
	s.Equal("prefers mornings", found.Notes)

	byProfile, err := s.store.FindByProfileID(ctx, profileID)
	s.Require().NoError(err)
	s.Equal(p.ID, byProfile.ID)
}

func (s *PostgresStoreSuite) TestFindUnknown() {
	_, err := s.store.FindByID(context.Background(), id.NewPersonID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListDependents() {
	ctx := context.Background()
	profileID, accountID := s.refs()
	emp := s.newEmployee(profileID, accountID)
	s.Require().NoError(s.store.Create(ctx, emp))

	var ids []id.PersonID
	for i := range 3 {
		profileID, accountID := s.refs()
		dep := s.newEmployee(profileID, accountID)
		dep.Primary = &models.DependentRole{PrimaryEmployeeID: emp.ID, Relationship: models.RelationshipChild}
		dep.CreatedAt = s.now.Add(time.Duration(i) * time.Minute)
		if i == 1 {
			dep.ApplySoftDelete(s.now)
		} else {
			ids = append(ids, dep.ID)
		}
		s.Require().NoError(s.store.Create(ctx, dep))
	}

	deps, err := s.store.ListDependents(ctx, emp.ID)
	s.Require().NoError(err)
	s.Require().Len(deps, 2)
	s.Equal(ids[0], deps[0].ID)
	s.Equal(ids[1], deps[1].ID)
}

func (s *PostgresStoreSuite) TestExecute() {
	ctx := context.Background()
	profileID, accountID := s.refs()
	p := s.newEmployee(profileID, accountID)
	s.Require().NoError(s.store.Create(ctx, p))

	s.Run("persists the mutation and history", func() {
		updated, err := s.store.Execute(ctx, p.ID,
			func(p *models.Person) error { return p.CanDeactivate() },
			func(p *models.Person) { p.ApplyDeactivation(s.now, "contract ended", id.AccountID{}) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, updated.Status)

		found, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, found.Status)
		s.Require().Len(found.StatusHistory, 1)
		s.Equal("contract ended", found.StatusHistory[0].Reason)
		employee, _ := found.Employee()
		s.Equal(models.EmploymentInactive, employee.EmploymentStatus)
	})

	s.Run("validation error leaves the row unchanged", func() {
		_, err := s.store.Execute(ctx, p.ID,
			func(p *models.Person) error { return p.CanDeactivate() },
			func(p *models.Person) {},
		)
		s.Error(err)
		found, err := s.store.FindByID(ctx, p.ID)
		s.Require().NoError(err)
		s.Len(found.StatusHistory, 1)
	})
}

func (s *PostgresStoreSuite) TestExecuteInsideTransaction() {
	ctx := context.Background()
	profileID, accountID := s.refs()
	p := s.newEmployee(profileID, accountID)
	s.Require().NoError(s.store.Create(ctx, p))

	runner := postgres.NewTxRunner(s.postgres.DB, 0)
	boom := errors.New("later step failed")
	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.store.Execute(txCtx, p.ID,
			func(p *models.Person) error { return p.CanSuspend() },
			func(p *models.Person) { p.ApplySuspension(s.now, "", id.AccountID{}) },
		); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, found.Status)
}

// TestConcurrentProfileUniqueness verifies that concurrent creation attempts
// for the same profile result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentProfileUniqueness() {
	ctx := context.Background()
	profileID, accountID := s.refs()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newEmployee(profileID, accountID))
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get ErrAlreadyUsed")

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}
