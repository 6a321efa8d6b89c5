package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO audit_entries (id, action, actor_type, actor_id, resource_type, resource_id, detail, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.ActorType,
		entry.ActorID,
		entry.ResourceType,
		entry.ResourceID,
		[]byte(entry.Detail),
		nullable(entry.IP),
		nullable(entry.UserAgent),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string) ([]Entry, error) {
	query := `
		SELECT id, action, actor_type, actor_id, resource_type, resource_id, detail, ip, user_agent, created_at
		FROM audit_entries
		WHERE actor_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListByResource(ctx context.Context, resourceType, resourceID string) ([]Entry, error) {
	query := `
		SELECT id, action, actor_type, actor_id, resource_type, resource_id, detail, ip, user_agent, created_at
		FROM audit_entries
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// AnonymizeActor scrubs the actor reference and origin metadata. Rows are
// rewritten, never deleted, so the audit trail stays complete.
func (s *PostgresStore) AnonymizeActor(ctx context.Context, actorID string) (int, error) {
	query := `
		UPDATE audit_entries
		SET actor_id = $1, ip = '', user_agent = ''
		WHERE actor_id = $2
	`
	res, err := s.db.ExecContext(ctx, query, AnonymizedActor, actorID)
	if err != nil {
		return 0, fmt.Errorf("anonymize audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("anonymize audit entries: %w", err)
	}
	return int(n), nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail []byte
		var ip, userAgent sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.ActorType, &e.ActorID, &e.ResourceType, &e.ResourceID, &detail, &ip, &userAgent, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Detail = detail
		e.IP = ip.String
		e.UserAgent = userAgent.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
