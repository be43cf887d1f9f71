package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/homevisit-api/internal/model"
	"github.com/jwalitptl/homevisit-api/internal/repository"
)

type auditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (
			id, actor_id, action, entity_type, entity_id, metadata, occurred_at, created_at
		) VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :metadata, :occurred_at, :created_at)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
			return fmt.Errorf("failed to create audit log: %w", err)
		}
		return nil
	})
}

func (r *auditRepository) List(ctx context.Context, filters model.AuditLogFilters) ([]*model.AuditLog, error) {
	query := `SELECT id, actor_id, action, entity_type, entity_id, metadata, occurred_at, created_at
		FROM audit_logs WHERE 1=1`
	var args []interface{}

	if filters.EntityType != "" {
		args = append(args, filters.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filters.EntityID != uuid.Nil {
		args = append(args, filters.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if filters.Action != "" {
		args = append(args, filters.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	query += " ORDER BY occurred_at DESC"
	if filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var logs []*model.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM audit_logs
		WHERE created_at < $1
	`
	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected()
}
