package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"room_coordinator/internal/domain"
	"room_coordinator/pkg/logger"
)

// AuditRepository - журнал аудита, только добавление
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, actor_role, action, entity_type, entity_id,
		                       before_state, after_state, origin_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		event.Timestamp, event.ActorUserID, event.ActorRole, event.Action, event.EntityType, event.EntityID,
		nullableJSON(event.Before), nullableJSON(event.After), event.OriginIP,
	).Scan(&event.ID)

	if err != nil {
		r.log.Error("Failed to create audit log", "error", err, "action", event.Action)
		return err
	}

	return nil
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

type memoryAuditRepository struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

// NewMemoryAuditRepository хранит журнал в памяти процесса (DATABASE_DRIVER=memory)
func NewMemoryAuditRepository() AuditRepository {
	return &memoryAuditRepository{}
}

func (r *memoryAuditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = int64(len(r.events) + 1)
	r.events = append(r.events, *event)
	return nil
}
