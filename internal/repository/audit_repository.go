package repository

import (
	"fmt"
	"time"

	"github.com/rafflekit/engine/internal/model"
)

// AuditRepository appends entries to the audit log. Entries are never
// updated or deleted.
type AuditRepository struct {
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append writes one audit entry
func (r *AuditRepository) Append(db DBExecutor, entry *model.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (actor_id, action, entity_type, entity_id, before_state, after_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := db.Exec(query,
		entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		entry.Before, entry.After, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// ListByEntity returns the audit trail for one entity, oldest first.
func (r *AuditRepository) ListByEntity(db DBExecutor, entityType string, entityID int64) ([]model.AuditEntry, error) {
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, before_state, after_state, created_at
		FROM audit_entries
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY id ASC
	`

	var entries []model.AuditEntry
	if err := db.Select(&entries, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	return entries, nil
}
