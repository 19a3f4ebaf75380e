package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/internal/repository"
)

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor, action, entity_type, entity_id, changes, metadata, ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.conn(ctx).ExecContext(ctx, query,
		log.ID,
		log.Actor,
		log.Action,
		log.EntityType,
		log.EntityID,
		jsonObject(log.Changes),
		jsonObject(log.Metadata),
		log.IPAddress,
		log.UserAgent,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, f model.AuditFilter) ([]*model.AuditLog, error) {
	var w where
	if f.EntityType != "" {
		w.add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != nil {
		w.add("entity_id = ?", *f.EntityID)
	}
	if f.Actor != "" {
		w.add("LOWER(actor) = LOWER(?)", f.Actor)
	}
	if f.Action != "" {
		w.add("action = ?", f.Action)
	}
	p := f.Pagination.Normalize()
	query := `
		SELECT id, actor, action, entity_type, entity_id, changes, metadata, ip_address, user_agent, created_at
		FROM audit_logs` + w.String() + ` ORDER BY created_at DESC` + w.page(p.Limit, p.Offset)

	logs := []*model.AuditLog{}
	if err := r.selectAll(ctx, &logs, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return res.RowsAffected()
}

// jsonObject stores an empty document as {} so reads never scan NULL into RawMessage.
func jsonObject(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}
