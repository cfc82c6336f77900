package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSink persists audit events to the audit_log table via
// hand-written SQL, matching internal/store's PostgresStore - no query
// generator output travels with this codebase.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink wraps an existing connection pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// Write persists an audit event to the database.
func (s *PostgresSink) Write(ctx context.Context, event AuditEvent) error {
	var actorID *string
	if event.Actor.ID != nil {
		actorID = event.Actor.ID
	}

	beforeState, _ := json.Marshal(event.BeforeState)
	afterState, _ := json.Marshal(event.AfterState)
	changes, _ := json.Marshal(event.Changes)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_log
			(occurred_at, request_id, actor_kind, actor_id, actor_display,
			 ip_address, user_agent, action, resource_type, resource_id,
			 environment, before_state, after_state, changes, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		event.OccurredAt, event.RequestID, event.Actor.Kind, actorID, event.Actor.Display,
		event.Source.IPAddress, event.Source.UserAgent, event.Action, event.ResourceType, event.ResourceID,
		event.Environment, beforeState, afterState, changes, event.Status, event.ErrorMessage,
	)
	return err
}
