package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"consentd/internal/webhook/models"
)

// PostgresRegistrationStore persists webhook registrations in PostgreSQL.
type PostgresRegistrationStore struct {
	db *sql.DB
}

func NewPostgresRegistrationStore(db *sql.DB) *PostgresRegistrationStore {
	return &PostgresRegistrationStore{db: db}
}

const registrationColumns = `
	id, fiduciary_id, name, url, events, active, secret, secret_hash, created_at, updated_at
`

func (s *PostgresRegistrationStore) Save(ctx context.Context, reg *models.Registration) error {
	events, err := json.Marshal(reg.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	query := `
		INSERT INTO webhook_registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		reg.ID, reg.FiduciaryID, reg.Name, reg.URL, events,
		reg.Active, reg.Secret, reg.SecretHash, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save webhook registration: %w", err)
	}
	return nil
}

func (s *PostgresRegistrationStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM webhook_registrations WHERE id = $1`
	reg, err := scanRegistration(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresRegistrationStore) ListByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM webhook_registrations
		WHERE fiduciary_id = $1
		ORDER BY created_at ASC
	`
	return s.list(ctx, query, fiduciaryID)
}

func (s *PostgresRegistrationStore) ListActive(ctx context.Context) ([]*models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM webhook_registrations
		WHERE active
		ORDER BY created_at ASC
	`
	return s.list(ctx, query)
}

func (s *PostgresRegistrationStore) list(ctx context.Context, query string, args ...any) ([]*models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list webhook registrations: %w", err)
	}
	defer rows.Close()

	var out []*models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("list webhook registrations: %w", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list webhook registrations: %w", err)
	}
	return out, nil
}

func (s *PostgresRegistrationStore) Update(ctx context.Context, reg *models.Registration) error {
	events, err := json.Marshal(reg.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	query := `
		UPDATE webhook_registrations
		SET name = $2, url = $3, events = $4, active = $5, secret = $6, secret_hash = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		reg.ID, reg.Name, reg.URL, events, reg.Active, reg.Secret, reg.SecretHash, reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update webhook registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update webhook registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRegistrationStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhook_registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete webhook registration: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresRegistrationStore) CountActiveByFiduciary(ctx context.Context, fiduciaryID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM webhook_registrations WHERE fiduciary_id = $1 AND active`
	if err := s.db.QueryRowContext(ctx, query, fiduciaryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count webhook registrations: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*models.Registration, error) {
	var r models.Registration
	var events []byte
	if err := row.Scan(
		&r.ID, &r.FiduciaryID, &r.Name, &r.URL, &events,
		&r.Active, &r.Secret, &r.SecretHash, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &r.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	return &r, nil
}

// PostgresDeliveryLog persists delivery attempts in PostgreSQL.
type PostgresDeliveryLog struct {
	db *sql.DB
}

func NewPostgresDeliveryLog(db *sql.DB) *PostgresDeliveryLog {
	return &PostgresDeliveryLog{db: db}
}

func (l *PostgresDeliveryLog) Append(ctx context.Context, attempt *models.DeliveryAttempt) error {
	query := `
		INSERT INTO webhook_deliveries (
			id, registration_id, delivery_id, event_type, attempt,
			status, response_code, response_body, error, latency_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := l.db.ExecContext(ctx, query,
		attempt.ID, attempt.RegistrationID, attempt.DeliveryID, string(attempt.EventType), attempt.Attempt,
		string(attempt.Status), attempt.ResponseCode, attempt.ResponseBody, attempt.Error, attempt.LatencyMS, attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append delivery attempt: %w", err)
	}
	return nil
}

func (l *PostgresDeliveryLog) CountByStatus(ctx context.Context, registrationID uuid.UUID) (map[models.AttemptStatus]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM webhook_deliveries
		WHERE registration_id = $1
		GROUP BY status
	`
	rows, err := l.db.QueryContext(ctx, query, registrationID)
	if err != nil {
		return nil, fmt.Errorf("count delivery attempts: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AttemptStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("count delivery attempts: %w", err)
		}
		counts[models.AttemptStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count delivery attempts: %w", err)
	}
	return counts, nil
}

func (l *PostgresDeliveryLog) ListByRegistration(ctx context.Context, registrationID uuid.UUID, limit int) ([]*models.DeliveryAttempt, error) {
	query := `
		SELECT id, registration_id, delivery_id, event_type, attempt,
			status, response_code, response_body, error, latency_ms, created_at
		FROM webhook_deliveries
		WHERE registration_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, registrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	defer rows.Close()

	var out []*models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var eventType, status string
		var responseCode sql.NullInt64
		if err := rows.Scan(
			&a.ID, &a.RegistrationID, &a.DeliveryID, &eventType, &a.Attempt,
			&status, &responseCode, &a.ResponseBody, &a.Error, &a.LatencyMS, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list delivery attempts: %w", err)
		}
		a.EventType = models.EventType(eventType)
		a.Status = models.AttemptStatus(status)
		if responseCode.Valid {
			code := int(responseCode.Int64)
			a.ResponseCode = &code
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	return out, nil
}
