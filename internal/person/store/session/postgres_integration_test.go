//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"eap/internal/person/models"
	"eap/internal/person/store/account"
	"eap/internal/person/store/person"
	"eap/internal/person/store/profile"
	"eap/internal/person/store/session"
	id "eap/pkg/domain"
	"eap/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *session.PostgresStore
	persons  *person.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = session.NewPostgres(s.postgres.DB)
	s.persons = person.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"service_sessions", "persons", "accounts", "profiles"))
}

func (s *PostgresStoreSuite) createPerson() id.PersonID {
	ctx := context.Background()
	now := time.Now().UTC()
	p := &models.Person{
		ID:        id.NewPersonID(),
		ProfileID: id.NewProfileID(),
		AccountID: id.NewAccountID(),
		Primary: &models.StaffRole{
			OrganizationID: id.NewOrganizationID(),
			Position:       models.StaffPositionCaseManager,
		},
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(profile.NewPostgres(s.postgres.DB).Create(ctx, &models.Profile{
		ID: p.ProfileID, FirstName: "Case", LastName: "Manager", CreatedAt: now,
	}))
	s.Require().NoError(account.NewPostgres(s.postgres.DB).Create(ctx, &models.Account{
		ID: p.AccountID, Email: p.AccountID.String() + "@example.com", CreatedAt: now,
	}))
	s.Require().NoError(s.persons.Create(ctx, p))
	return p.ID
}

func (s *PostgresStoreSuite) TestHasActiveSessions() {
	ctx := context.Background()
	client := s.createPerson()
	provider := s.createPerson()

	active, err := s.store.HasActiveSessions(ctx, client)
	s.Require().NoError(err)
	s.False(active)

	sess := &models.ServiceSession{
		ID:         id.NewSessionID(),
		PersonID:   client,
		ProviderID: &provider,
		Status:     models.SessionScheduled,
		StartsAt:   time.Now().Add(24 * time.Hour),
	}
	s.Require().NoError(s.store.Save(ctx, sess))

	for _, personID := range []id.PersonID{client, provider} {
		active, err := s.store.HasActiveSessions(ctx, personID)
		s.Require().NoError(err)
		s.True(active)
	}

	sess.Status = models.SessionCompleted
	s.Require().NoError(s.store.Save(ctx, sess))
	active, err = s.store.HasActiveSessions(ctx, client)
	s.Require().NoError(err)
	s.False(active)
}
