package events

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can self-bootstrap its database
// schema.
//
//go:embed schema.sql
var schemaSQL string

// Store is the durable, append-only persistence layer for security
// events. Rows are never deleted by this subsystem; retention is an
// external concern.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a connection pool and fails fast if the database is
// unreachable.
func NewStore(dbURL string) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (s *Store) EnsureSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Insert persists one event under the given ID. The caller owns ID
// generation so fire-and-forget logging can return the ID before the
// write completes.
func (s *Store) Insert(ctx context.Context, id string, in Input) error {
	if id == "" {
		return errors.New("event id required")
	}
	if in.Type == "" {
		return errors.New("event type required")
	}
	if in.Severity == "" {
		in.Severity = SeverityMedium
	}
	if in.Details == nil {
		in.Details = map[string]interface{}{}
	}

	detailsJSON, err := json.Marshal(in.Details)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO security_events
			(id, type, severity, message, details,
			 ip_address, user_agent, path, method, client_id, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, id, in.Type, in.Severity, in.Message, detailsJSON,
		nullable(in.IPAddress), nullable(in.UserAgent), nullable(in.Path),
		nullable(in.Method), nullable(in.ClientID), nullable(in.SessionID))
	return err
}

// Filter narrows QueryRecent. Zero values mean "any".
type Filter struct {
	Limit        int
	Type         Type
	Severity     Severity
	Acknowledged *bool
}

// defaultQueryLimit caps QueryRecent results when the caller does not
// bound them.
const defaultQueryLimit = 100

// QueryRecent returns events newest-first, bounded by the filter limit
// (default and maximum 100).
func (s *Store) QueryRecent(ctx context.Context, f Filter) ([]SecurityEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > defaultQueryLimit {
		limit = defaultQueryLimit
	}

	query := `
		SELECT id, type, severity, message, details,
		       COALESCE(ip_address,''), COALESCE(user_agent,''),
		       COALESCE(path,''), COALESCE(method,''),
		       COALESCE(client_id,''), COALESCE(session_id,''),
		       created_at, acknowledged, acknowledged_at, COALESCE(acknowledged_by,'')
		FROM security_events`

	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Acknowledged != nil {
		add("acknowledged = $%d", *f.Acknowledged)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecurityEvent
	for rows.Next() {
		var (
			ev          SecurityEvent
			detailsJSON []byte
		)
		if err := rows.Scan(
			&ev.ID, &ev.Type, &ev.Severity, &ev.Message, &detailsJSON,
			&ev.IPAddress, &ev.UserAgent, &ev.Path, &ev.Method,
			&ev.ClientID, &ev.SessionID,
			&ev.CreatedAt, &ev.Acknowledged, &ev.AcknowledgedAt, &ev.AcknowledgedBy,
		); err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			_ = json.Unmarshal(detailsJSON, &ev.Details)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Acknowledge marks an event as handled. Returns false, nil when the
// event does not exist; acknowledging twice simply refreshes the
// acknowledgment fields.
func (s *Store) Acknowledge(ctx context.Context, id, acknowledgedBy string) (bool, error) {
	// Malformed IDs cannot match any row; treat them as "not found"
	// instead of surfacing a cast error from the uuid column.
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE security_events
		SET acknowledged = TRUE, acknowledged_at = now(), acknowledged_by = $2
		WHERE id = $1
	`, id, acknowledgedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// nullable maps empty strings to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
