package profile

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

func (s *PostgresStore) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, first_name, last_name, date_of_birth, email, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), p.FirstName, p.LastName, p.DateOfBirth, p.Email, p.Phone, p.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create profile: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `
		SELECT id, first_name, last_name, date_of_birth, email, phone, created_at
		FROM profiles
		WHERE id = $1
	`
	var (
		p   models.Profile
		pid uuid.UUID
		dob sql.NullTime
	)
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(profileID)).
		Scan(&pid, &p.FirstName, &p.LastName, &dob, &p.Email, &p.Phone, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	p.ID = id.ProfileID(pid)
	if dob.Valid {
		p.DateOfBirth = &dob.Time
	}
	return &p, nil
}
