package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"eap/internal/person/models"
	id "eap/pkg/domain"
	txcontext "eap/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, sess *models.ServiceSession) error {
	var provider *uuid.UUID
	if sess.ProviderID != nil {
		u := uuid.UUID(*sess.ProviderID)
		provider = &u
	}
	query := `
		INSERT INTO service_sessions (id, person_id, provider_id, status, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			provider_id = EXCLUDED.provider_id,
			starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(sess.ID), uuid.UUID(sess.PersonID), provider, string(sess.Status), sess.StartsAt, sess.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasActiveSessions(ctx context.Context, personID id.PersonID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM service_sessions
			WHERE (person_id = $1 OR provider_id = $1)
			  AND status IN ($2, $3)
		)
	`
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(personID), string(models.SessionScheduled), string(models.SessionInProgress),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active sessions: %w", err)
	}
	return exists, nil
}
