package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"consentd/internal/purpose/models"
)

// PostgresStore persists purposes in PostgreSQL. Data categories keep their
// declared order, so they are stored as a JSONB array.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed purpose store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, purpose *models.Purpose) error {
	if purpose == nil {
		return fmt.Errorf("purpose is required")
	}
	query := `
		INSERT INTO purposes (id, fiduciary_id, fiduciary_name, fiduciary_contact, name, description, data_categories, retention_period_days, legal_basis, mandatory, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	categories, err := json.Marshal(purpose.DataCategories)
	if err != nil {
		return fmt.Errorf("encode data categories: %w", err)
	}
	_, err = s.db.ExecContext(ctx, query,
		purpose.ID,
		purpose.FiduciaryID,
		purpose.FiduciaryName,
		purpose.FiduciaryContact,
		purpose.Name,
		purpose.Description,
		categories,
		purpose.RetentionPeriodDays,
		string(purpose.LegalBasis),
		purpose.Mandatory,
		purpose.Active,
		purpose.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save purpose: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Purpose, error) {
	query := `
		SELECT id, fiduciary_id, fiduciary_name, fiduciary_contact, name, description, data_categories, retention_period_days, legal_basis, mandatory, active, created_at
		FROM purposes
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, id)
	purpose, err := scanPurpose(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find purpose: %w", err)
	}
	return purpose, nil
}

func (s *PostgresStore) ListByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) ([]*models.Purpose, error) {
	query := `
		SELECT id, fiduciary_id, fiduciary_name, fiduciary_contact, name, description, data_categories, retention_period_days, legal_basis, mandatory, active, created_at
		FROM purposes
		WHERE fiduciary_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, fiduciaryID)
	if err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}
	defer rows.Close()

	var out []*models.Purpose
	for rows.Next() {
		purpose, err := scanPurpose(rows)
		if err != nil {
			return nil, fmt.Errorf("list purposes: %w", err)
		}
		out = append(out, purpose)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE purposes SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate purpose: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate purpose: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurpose(row scanner) (*models.Purpose, error) {
	var p models.Purpose
	var basis string
	var categories []byte
	if err := row.Scan(
		&p.ID,
		&p.FiduciaryID,
		&p.FiduciaryName,
		&p.FiduciaryContact,
		&p.Name,
		&p.Description,
		&categories,
		&p.RetentionPeriodDays,
		&basis,
		&p.Mandatory,
		&p.Active,
		&p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.DataCategories); err != nil {
			return nil, fmt.Errorf("decode data categories: %w", err)
		}
	}
	p.LegalBasis = models.LegalBasis(basis)
	return &p, nil
}
