package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"room_coordinator/internal/domain"
)

// Store - хранилище комнат, участников и записей восстановления.
// Каждая операция атомарна на уровне одной строки; инварианты между строками
// (единственный HOST) обеспечивает менеджер жизненного цикла.
type Store interface {
	// CreateRoom сохраняет комнату вместе с участником-хостом.
	// Код комнаты уникален среди незавершенных комнат: иначе ErrDuplicateRoomCode.
	CreateRoom(ctx context.Context, room *domain.Room, host *domain.Participant) error
	// FindRoomByCode ищет только среди незавершенных комнат
	FindRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.Room, error)
	// ListParticipants упорядочен по joined_at, затем по user_id
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	UpsertParticipant(ctx context.Context, participant *domain.Participant) error
	DeleteParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	// UpdateRoomStatus меняет статус только если текущий равен from, иначе ErrConflict
	UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to domain.RoomStatus, at time.Time) error
	// SetHost атомарно понижает прежних HOST до PLAYER, повышает hostUserID
	// и обновляет хоста комнаты. Двух HOST не видно ни в какой момент.
	SetHost(ctx context.Context, roomID, hostUserID uuid.UUID, at time.Time) error
	UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, settings domain.RoomSettings, at time.Time) error
	UpdateHeartbeat(ctx context.Context, hb domain.Heartbeat) error
	// ListRecoveryCandidates - незавершенные комнаты без участников или с устаревшим heartbeat хоста
	ListRecoveryCandidates(ctx context.Context, staleBefore time.Time) ([]domain.RecoveryCandidate, error)
	CountRooms(ctx context.Context, staleBefore time.Time) (total int, stale int, err error)
	RecordRecoveryOutcome(ctx context.Context, record *domain.RecoveryRecord) error
	ListRecoveryRecordsSince(ctx context.Context, since time.Time) ([]*domain.RecoveryRecord, error)
	PurgeRecoveryRecordsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
