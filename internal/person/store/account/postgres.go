package account

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

// PostgresStore relies on accounts_email_key (unique on LOWER(email)).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *models.Account) error {
	query := `INSERT INTO accounts (id, email, active, created_at) VALUES ($1, $2, $3, $4)`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query, uuid.UUID(a.ID), a.Email, a.Active, a.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create account: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	query := `SELECT id, email, active, created_at FROM accounts WHERE id = $1`
	return scanAccount(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(accountID)))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT id, email, active, created_at FROM accounts WHERE LOWER(email) = LOWER($1)`
	return scanAccount(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, email))
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var (
		a   models.Account
		aid uuid.UUID
	)
	err := row.Scan(&aid, &a.Email, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.ID = id.AccountID(aid)
	return &a, nil
}
