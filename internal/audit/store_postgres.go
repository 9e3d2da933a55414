package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"scorevc/pkg/platform/tx"
)

// PostgresStore writes events to audit_events. Inside a tx.Run callback the
// insert joins that transaction, so the event commits with the state change.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	var detail []byte
	if len(event.Detail) > 0 {
		var err error
		if detail, err = json.Marshal(event.Detail); err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (id, action, principal, timestamp, request_id, client_agent, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), string(event.Action), event.Principal, event.Timestamp,
		nullable(event.RequestID), nullable(event.ClientAgent), detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByPrincipal returns the newest limit events for principal, oldest first.
func (s *PostgresStore) ListByPrincipal(ctx context.Context, principal string, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action, principal, timestamp, request_id, client_agent, detail
		FROM (
			SELECT * FROM audit_events
			WHERE principal = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC
	`, principal, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e                    Event
			action               string
			requestID, userAgent sql.NullString
			detail               []byte
		)
		if err := rows.Scan(&action, &e.Principal, &e.Timestamp, &requestID, &userAgent, &detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = Action(action)
		e.RequestID = requestID.String
		e.ClientAgent = userAgent.String
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return out, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
