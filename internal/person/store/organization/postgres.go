package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"eap/internal/person/models"
	"eap/internal/platform/postgres"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	txcontext "eap/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *models.Organization) error {
	query := `INSERT INTO organizations (id, name, active) VALUES ($1, $2, $3)`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, uuid.UUID(o.ID), o.Name, o.Active)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create organization: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	query := `SELECT id, name, active FROM organizations WHERE id = $1`
	var (
		o   models.Organization
		oid uuid.UUID
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(orgID)).Scan(&oid, &o.Name, &o.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find organization: %w", err)
	}
	o.ID = id.OrganizationID(oid)
	return &o, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, orgID id.OrganizationID, active bool) error {
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE organizations SET active = $2 WHERE id = $1`, uuid.UUID(orgID), active)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
