// Package app assembles the person service on its PostgreSQL stores for the
// binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"eap/internal/person/metrics"
	"eap/internal/person/service"
	"eap/internal/person/store/account"
	"eap/internal/person/store/organization"
	personstore "eap/internal/person/store/person"
	"eap/internal/person/store/profile"
	"eap/internal/person/store/session"
	"eap/internal/platform/config"
	"eap/internal/platform/httpserver"
	platformmetrics "eap/internal/platform/metrics"
	"eap/internal/platform/postgres"
	redisclient "eap/internal/platform/redis"
	auditstore "eap/pkg/platform/audit/store/postgres"
)

type App struct {
	DB       *sql.DB
	Redis    *redisclient.Client
	Registry *prometheus.Registry
	Outbox   *auditstore.Store
	Service  *service.Service

	logger *slog.Logger
}

// New opens the database, applies the schema and builds the service. With
// Redis configured, organization reads go through the cache.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &App{
		DB:       db,
		Redis:    rdb,
		Registry: platformmetrics.NewRegistry(),
		Outbox:   auditstore.New(db),
		logger:   logger,
	}

	var orgs service.OrganizationStore = organization.NewPostgres(db)
	if rdb != nil {
		orgs = organization.NewRedisCache(rdb.Client, organization.NewPostgres(db), cfg.OrgCacheTTL,
			organization.WithLogger(logger))
		logger.InfoContext(ctx, "organization cache enabled", "ttl", cfg.OrgCacheTTL.String())
	}

	a.Service = service.New(service.Stores{
		Persons:       personstore.NewPostgres(db),
		Profiles:      profile.NewPostgres(db),
		Accounts:      account.NewPostgres(db),
		Organizations: orgs,
		Sessions:      session.NewPostgres(db),
		Audit:         a.Outbox,
	},
		service.WithTx(postgres.NewTxRunner(db, cfg.TxTimeout)),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(a.Registry)),
	)
	return a, nil
}

// HealthChecks lists the dependencies /healthz checks.
func (a *App) HealthChecks() map[string]httpserver.HealthCheck {
	checks := map[string]httpserver.HealthCheck{
		"postgres": a.DB.PingContext,
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	return checks
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
