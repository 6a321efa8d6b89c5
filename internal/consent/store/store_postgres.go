package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"consentd/internal/consent/models"
	purposemodels "consentd/internal/purpose/models"
)

// uniqueViolation is the PostgreSQL error code raised by the partial unique
// index on (principal_id, purpose_id) WHERE status = 'granted'.
const uniqueViolation = "23505"

// PostgresStore persists consent records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed consent store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `
	id, principal_id, principal_name, principal_contact,
	fiduciary_id, fiduciary_name, fiduciary_contact,
	purpose_id, purpose_name, purpose_description, purpose_data_categories,
	purpose_legal_basis, purpose_retention_days,
	status, granted_at, expires_at, revoked_at, renewed_at,
	receipt_id, receipt_signature
`

func (s *PostgresStore) Save(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("consent record is required")
	}
	categories, err := json.Marshal(record.Purpose.DataCategories)
	if err != nil {
		return fmt.Errorf("encode data categories: %w", err)
	}
	query := `
		INSERT INTO consents (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.Principal.ID, record.Principal.Name, record.Principal.Contact,
		record.Fiduciary.ID, record.Fiduciary.Name, record.Fiduciary.Contact,
		record.Purpose.ID, record.Purpose.Name, record.Purpose.Description, categories,
		string(record.Purpose.LegalBasis), record.Purpose.RetentionPeriodDays,
		string(record.Status), record.GrantedAt, record.ExpiresAt, record.RevokedAt, record.RenewedAt,
		record.ReceiptID, record.ReceiptSignature,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateActive
		}
		return fmt.Errorf("save consent: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consents WHERE id = $1`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find consent: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID, filter *models.RecordFilter) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consents WHERE principal_id = $1`
	args := []any{principalID}
	if filter != nil && filter.PurposeID != nil {
		args = append(args, *filter.PurposeID)
		query += fmt.Sprintf(" AND purpose_id = $%d", len(args))
	}
	// Status filtering happens after scanning: stored status lags lazily
	// observed expiry, so the filter must apply to the computed status.
	query += " ORDER BY granted_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list consents: %w", err)
		}
		if filter != nil && filter.Status != nil && record.ComputeStatus(now) != *filter.Status {
			continue
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list consents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	query := `
		UPDATE consents
		SET status = $2, expires_at = $3, revoked_at = $4, renewed_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		record.ID,
		string(record.Status),
		record.ExpiresAt,
		record.RevokedAt,
		record.RenewedAt,
	)
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListExpiredGranted(ctx context.Context, now time.Time, limit int) ([]*models.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM consents
		WHERE status = 'granted' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired consents: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list expired consents: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired consents: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var r models.Record
	var categories []byte
	var basis, status string
	var revokedAt, renewedAt sql.NullTime
	if err := row.Scan(
		&r.ID,
		&r.Principal.ID, &r.Principal.Name, &r.Principal.Contact,
		&r.Fiduciary.ID, &r.Fiduciary.Name, &r.Fiduciary.Contact,
		&r.Purpose.ID, &r.Purpose.Name, &r.Purpose.Description, &categories,
		&basis, &r.Purpose.RetentionPeriodDays,
		&status, &r.GrantedAt, &r.ExpiresAt, &revokedAt, &renewedAt,
		&r.ReceiptID, &r.ReceiptSignature,
	); err != nil {
		return nil, err
	}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &r.Purpose.DataCategories); err != nil {
			return nil, fmt.Errorf("decode data categories: %w", err)
		}
	}
	r.Purpose.LegalBasis = purposemodels.LegalBasis(basis)
	r.Status = models.Status(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		r.RevokedAt = &t
	}
	if renewedAt.Valid {
		t := renewedAt.Time
		r.RenewedAt = &t
	}
	return &r, nil
}
