package person

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"eap/internal/person/models"
	"eap/internal/platform/postgres"
	id "eap/pkg/domain"
	"eap/pkg/platform/sentinel"
	txcontext "eap/pkg/platform/tx"
)

// PostgresStore persists persons in PostgreSQL. Role payloads are JSONB
// columns next to their type discriminators; the profile link is guarded by
// the persons_profile_id_key unique constraint.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const personColumns = `
	id, profile_id, account_id, person_type, primary_role, secondary_type,
	secondary_role, status, status_history, last_service_date,
	emergency_contact, notes, metadata, deleted_at, created_at, updated_at`

// Create inserts p. A taken profile or ID yields sentinel.ErrAlreadyUsed.
func (s *PostgresStore) Create(ctx context.Context, p *models.Person) error {
	row, err := encode(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO persons (
			id, profile_id, account_id, person_type, primary_role, secondary_type,
			secondary_role, primary_employee_id, status, status_history,
			last_service_date, emergency_contact, notes, metadata, deleted_at,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.ProfileID), uuid.UUID(p.AccountID),
		row.personType, jsonArg(row.primaryRole), row.secondaryType, jsonArg(row.secondaryRole),
		row.primaryEmployeeID, string(p.Status), jsonArg(row.history), p.LastServiceDate,
		jsonArg(row.emergencyContact), p.Notes, jsonArg(row.metadata), p.DeletedAt,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("create person: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, personID id.PersonID) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1`
	return scanPerson(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(personID)))
}

func (s *PostgresStore) FindByProfileID(ctx context.Context, profileID id.ProfileID) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE profile_id = $1`
	return scanPerson(txcontext.Exec(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(profileID)))
}

// ListDependents returns the non-deleted records referencing employeeID,
// oldest first.
func (s *PostgresStore) ListDependents(ctx context.Context, employeeID id.PersonID) ([]*models.Person, error) {
	query := `SELECT ` + personColumns + `
		FROM persons
		WHERE primary_employee_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, uuid.UUID(employeeID))
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	var out []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dependents: %w", err)
	}
	return out, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate then
// mutate, and writes the result back. Without a transaction in ctx it opens
// its own.
func (s *PostgresStore) Execute(ctx context.Context, personID id.PersonID, validate func(*models.Person) error, mutate func(*models.Person)) (*models.Person, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.execute(ctx, tx, personID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin person update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	p, err := s.execute(ctx, tx, personID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit person update: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) execute(ctx context.Context, tx *sql.Tx, personID id.PersonID, validate func(*models.Person) error, mutate func(*models.Person)) (*models.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE id = $1 FOR UPDATE`
	p, err := scanPerson(tx.QueryRowContext(ctx, query, uuid.UUID(personID)))
	if err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	keepID, keepProfile, keepCreated := p.ID, p.ProfileID, p.CreatedAt
	mutate(p)
	p.ID, p.ProfileID, p.CreatedAt = keepID, keepProfile, keepCreated

	row, err := encode(p)
	if err != nil {
		return nil, err
	}
	update := `
		UPDATE persons SET
			account_id = $2, person_type = $3, primary_role = $4, secondary_type = $5,
			secondary_role = $6, primary_employee_id = $7, status = $8,
			status_history = $9, last_service_date = $10, emergency_contact = $11,
			notes = $12, metadata = $13, deleted_at = $14, updated_at = $15
		WHERE id = $1
	`
	_, err = tx.ExecContext(ctx, update,
		uuid.UUID(p.ID), uuid.UUID(p.AccountID),
		row.personType, jsonArg(row.primaryRole), row.secondaryType, jsonArg(row.secondaryRole),
		row.primaryEmployeeID, string(p.Status), jsonArg(row.history), p.LastServiceDate,
		jsonArg(row.emergencyContact), p.Notes, jsonArg(row.metadata), p.DeletedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return n, nil
}

// personRow holds the encoded forms of the columns that are not plain
// scalars.
type personRow struct {
	personType        string
	primaryRole       []byte
	secondaryType     sql.NullString
	secondaryRole     []byte
	primaryEmployeeID *uuid.UUID
	history           []byte
	emergencyContact  []byte
	metadata          []byte
}

func encode(p *models.Person) (personRow, error) {
	var row personRow
	var err error
	if p.Primary == nil {
		return row, errors.New("encode person: primary role is required")
	}
	row.personType = string(p.Type())
	if row.primaryRole, err = models.MarshalRole(p.Primary); err != nil {
		return row, fmt.Errorf("encode primary role: %w", err)
	}
	if p.Secondary != nil {
		row.secondaryType = sql.NullString{String: string(p.Secondary.Type()), Valid: true}
		if row.secondaryRole, err = models.MarshalRole(p.Secondary); err != nil {
			return row, fmt.Errorf("encode secondary role: %w", err)
		}
	}
	if dep, ok := p.Dependent(); ok && !dep.PrimaryEmployeeID.IsNil() {
		u := uuid.UUID(dep.PrimaryEmployeeID)
		row.primaryEmployeeID = &u
	}
	history := p.StatusHistory
	if history == nil {
		history = []models.StatusChange{}
	}
	if row.history, err = json.Marshal(history); err != nil {
		return row, fmt.Errorf("encode status history: %w", err)
	}
	if p.EmergencyContact != nil {
		if row.emergencyContact, err = json.Marshal(p.EmergencyContact); err != nil {
			return row, fmt.Errorf("encode emergency contact: %w", err)
		}
	}
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if row.metadata, err = json.Marshal(metadata); err != nil {
		return row, fmt.Errorf("encode metadata: %w", err)
	}
	return row, nil
}

// jsonArg passes JSON as text so both drivers accept it for JSONB columns.
func jsonArg(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (*models.Person, error) {
	var (
		p                          models.Person
		personID, profile, account uuid.UUID
		personType, status         string
		primaryRole                []byte
		secondaryType              sql.NullString
		secondaryRole              []byte
		history, contact, metadata []byte
		lastService, deletedAt     sql.NullTime
		createdAt, updatedAt       time.Time
	)
	err := row.Scan(
		&personID, &profile, &account, &personType, &primaryRole, &secondaryType,
		&secondaryRole, &status, &history, &lastService,
		&contact, &p.Notes, &metadata, &deletedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}

	p.ID = id.PersonID(personID)
	p.ProfileID = id.ProfileID(profile)
	p.AccountID = id.AccountID(account)
	p.Status = models.Status(status)
	p.CreatedAt = createdAt
	p.UpdatedAt = updatedAt
	if lastService.Valid {
		t := lastService.Time
		p.LastServiceDate = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	if p.Primary, err = models.UnmarshalRole(models.PersonType(personType), primaryRole); err != nil {
		return nil, err
	}
	if secondaryType.Valid {
		if p.Secondary, err = models.UnmarshalRole(models.PersonType(secondaryType.String), secondaryRole); err != nil {
			return nil, err
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &p.StatusHistory); err != nil {
			return nil, fmt.Errorf("decode status history: %w", err)
		}
	}
	if len(contact) > 0 {
		p.EmergencyContact = &models.EmergencyContact{}
		if err := json.Unmarshal(contact, p.EmergencyContact); err != nil {
			return nil, fmt.Errorf("decode emergency contact: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		if len(p.Metadata) == 0 {
			p.Metadata = nil
		}
	}
	return &p, nil
}
