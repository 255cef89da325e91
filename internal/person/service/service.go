// Package service is the person factory and lifecycle service. Every mutating
// operation runs inside one StoreTx transaction: the records it writes and
// the audit outbox entry commit together or not at all.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks PersonStore,ProfileStore,AccountStore,OrganizationStore,SessionStore,AuditStore,StoreTx

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"eap/internal/person/metrics"
	"eap/internal/person/models"
	id "eap/pkg/domain"
	"eap/pkg/platform/audit"
)

// PersonStore persists person records. ListDependents is the dependent view
// the family rules read.
type PersonStore interface {
	Create(ctx context.Context, p *models.Person) error
	FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error)
	FindByProfileID(ctx context.Context, profileID id.ProfileID) (*models.Person, error)
	ListDependents(ctx context.Context, employeeID id.PersonID) ([]*models.Person, error)
	Execute(ctx context.Context, personID id.PersonID, validate func(*models.Person) error, mutate func(*models.Person)) (*models.Person, error)
}

type ProfileStore interface {
	Create(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

type OrganizationStore interface {
	FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
}

type SessionStore interface {
	HasActiveSessions(ctx context.Context, personID id.PersonID) (bool, error)
}

// AuditStore appends to the transactional outbox.
type AuditStore interface {
	Append(ctx context.Context, event audit.Event) error
}

// StoreTx runs fn inside one transaction carried by the context fn receives.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores groups the collaborators the service needs. Audit may be nil, in
// which case audit events are only logged.
type Stores struct {
	Persons       PersonStore
	Profiles      ProfileStore
	Accounts      AccountStore
	Organizations OrganizationStore
	Sessions      SessionStore
	Audit         AuditStore
}

type Service struct {
	persons  PersonStore
	profiles ProfileStore
	accounts AccountStore
	orgs     OrganizationStore
	sessions SessionStore
	audit    AuditStore
	tx       StoreTx
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTx sets the transaction runner. Without it the service serializes
// writes with an in-memory runner, which suits the in-memory stores only.
func WithTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(stores Stores, opts ...Option) *Service {
	s := &Service{
		persons:  stores.Persons,
		profiles: stores.Profiles,
		accounts: stores.Accounts,
		orgs:     stores.Organizations,
		sessions: stores.Sessions,
		audit:    stores.Audit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = newInMemoryStoreTx(0)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("eap/internal/person/service")
	}
	return s
}
