package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/inkpress/inkpress/internal/platform/db"
)

// Audit actions recorded by the domain services.
const (
	AuditPostStatusChanged = "post.status_changed"
	AuditPostArchived      = "post.archived"
	AuditUserDeleted       = "user.deleted"
	AuditUserVerified      = "user.verified"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID int64
	Meta     map[string]any
	At       time.Time
}

// AuditRecorder persists audit rows. Implementations must write through
// the caller's transaction so the row commits or rolls back with it.
type AuditRecorder interface {
	Record(ctx context.Context, q db.Querier, log AuditLog) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct{}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// Record persists the log entry using q, normally an open pgx.Tx.
func (l *AuditLogger) Record(ctx context.Context, q db.Querier, log AuditLog) error {
	if q == nil {
		return errors.New("audit logger: nil querier")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == 0 {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return fmt.Errorf("audit log meta: %w", err)
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	var actor *int64
	if log.ActorID != 0 {
		actor = &log.ActorID
	}
	_, err = q.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, at) VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		actor, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
