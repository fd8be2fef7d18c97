package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type InsertAuditLogParams struct {
	EntityType string
	EntityID   uuid.UUID
	ActorID    *uuid.UUID
	Action     string
	PrevState  *string
	NextState  *string
	Metadata   []byte
}

// InsertAuditLog appends an immutable audit trail row.
func (q *Queries) InsertAuditLog(ctx context.Context, params InsertAuditLogParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, actor_id, action, prev_state, next_state, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, params.EntityType, params.EntityID, params.ActorID, params.Action, params.PrevState, params.NextState, params.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
