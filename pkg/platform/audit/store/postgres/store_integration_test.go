//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	platformpg "eap/internal/platform/postgres"
	id "eap/pkg/domain"
	audit "eap/pkg/platform/audit"
	auditpg "eap/pkg/platform/audit/store/postgres"
	"eap/pkg/requestcontext"
	"eap/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
	now      time.Time
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpg.New(s.postgres.DB)
}

func (s *OutboxSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *OutboxSuite) append(personID id.PersonID, action audit.AuditEvent, offset time.Duration) {
	ctx := requestcontext.WithTime(context.Background(), s.now.Add(offset))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Category:  action.Category(),
		Timestamp: s.now.Add(offset),
		PersonID:  personID,
		Subject:   "client_employee",
		Action:    string(action),
		RequestID: "req-outbox",
	}))
}

func (s *OutboxSuite) TestPendingAndMarkPublished() {
	ctx := context.Background()
	personID := id.NewPersonID()
	s.append(personID, audit.EventPersonCreated, 0)
	s.append(personID, audit.EventPersonSuspended, time.Minute)
	s.append(personID, audit.EventPersonActivated, 2*time.Minute)

	s.Run("pending is oldest first and bounded", func() {
		pending, err := s.store.Pending(ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(pending, 2)
		s.Equal(string(audit.EventPersonCreated), pending[0].EventType)
		s.Equal(string(audit.EventPersonSuspended), pending[1].EventType)
		s.Equal(personID.String(), pending[0].AggregateID)
	})

	s.Run("published entries leave the pending set", func() {
		pending, err := s.store.Pending(ctx, 10)
		s.Require().NoError(err)
		s.Require().NoError(s.store.MarkPublished(ctx, []string{pending[0].ID, pending[1].ID}, s.now.Add(time.Hour)))

		rest, err := s.store.Pending(ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(rest, 1)
		s.Equal(string(audit.EventPersonActivated), rest[0].EventType)
	})

	s.Run("history keeps published entries", func() {
		events, err := s.store.ListByPerson(ctx, personID)
		s.Require().NoError(err)
		s.Require().Len(events, 3)
		s.Equal(string(audit.EventPersonCreated), events[0].Action)
		s.Equal("req-outbox", events[0].RequestID)
	})
}

func (s *OutboxSuite) TestAppendJoinsTransaction() {
	personID := id.NewPersonID()
	runner := platformpg.NewTxRunner(s.postgres.DB, 0)
	errAbort := errors.New("abort")

	err := runner.RunInTx(context.Background(), func(txCtx context.Context) error {
		s.Require().NoError(s.store.Append(txCtx, audit.Event{
			Category: audit.CategoryCompliance,
			PersonID: personID,
			Action:   string(audit.EventPersonCreated),
		}))
		return errAbort
	})
	s.Require().ErrorIs(err, errAbort)

	events, err := s.store.ListByPerson(context.Background(), personID)
	s.Require().NoError(err)
	s.Empty(events, "rolled back append must not reach the outbox")
}
