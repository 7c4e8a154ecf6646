package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"room_coordinator/internal/domain"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

type postgresStore struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewPostgresStore(db *pgxpool.Pool, log logger.Logger) Store {
	return &postgresStore{db: db, log: log}
}

const roomColumns = `
	id, room_code, name, host_user_id, status, is_private, password_hash,
	max_participants, allow_join_in_progress, created_at, updated_at,
	last_host_heartbeat_at, ended_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	room := &domain.Room{}
	var status string
	err := row.Scan(
		&room.ID, &room.RoomCode, &room.Name, &room.HostUserID, &status, &room.IsPrivate, &room.PasswordHash,
		&room.MaxParticipants, &room.AllowJoinInProgress, &room.CreatedAt, &room.UpdatedAt,
		&room.LastHostHeartbeatAt, &room.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	room.Status = domain.RoomStatus(status)
	room.HasPassword = room.PasswordHash != nil
	return room, nil
}

func (r *postgresStore) CreateRoom(ctx context.Context, room *domain.Room, host *domain.Participant) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rooms (id, room_code, name, host_user_id, status, is_private, password_hash,
		                   max_participants, allow_join_in_progress, created_at, updated_at, last_host_heartbeat_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.Exec(ctx, query,
		room.ID, room.RoomCode, room.Name, room.HostUserID, string(room.Status), room.IsPrivate, room.PasswordHash,
		room.MaxParticipants, room.AllowJoinInProgress, room.CreatedAt, room.UpdatedAt, room.LastHostHeartbeatAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 = unique_violation по частичному индексу кода незавершенных комнат
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.log.Warn("Room code collision", "room_code", room.RoomCode)
			return apperrors.ErrDuplicateRoomCode
		}
		r.log.Error("Failed to create room", "error", err)
		return err
	}

	if err := insertParticipant(ctx, tx, host); err != nil {
		r.log.Error("Failed to create host participant", "error", err, "room_id", room.ID)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit room creation", "error", err)
		return err
	}
	return nil
}

func (r *postgresStore) FindRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms
		WHERE upper(room_code) = upper($1) AND status <> 'ENDED'
	`
	room, err := scanRoom(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room by code", "error", err)
		return nil, err
	}
	return room, nil
}

func (r *postgresStore) FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + `
		FROM rooms
		WHERE id = $1
	`
	room, err := scanRoom(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room by ID", "error", err)
		return nil, err
	}
	return room, nil
}

func (r *postgresStore) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to domain.RoomStatus, at time.Time) error {
	query := `
		UPDATE rooms
		SET status = $3,
		    updated_at = $4,
		    ended_at = CASE WHEN $3 = 'ENDED' THEN $4 ELSE ended_at END
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Exec(ctx, query, roomID, string(from), string(to), at)
	if err != nil {
		r.log.Error("Failed to update room status", "error", err, "room_id", roomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, roomID, "room status changed concurrently")
	}
	return nil
}

func (r *postgresStore) SetHost(ctx context.Context, roomID, hostUserID uuid.UUID, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	// строка комнаты блокируется первой, переназначения одной комнаты идут по очереди
	tag, err := tx.Exec(ctx, `
		UPDATE rooms
		SET host_user_id = $2, last_host_heartbeat_at = $3, updated_at = $3
		WHERE id = $1 AND status <> 'ENDED'
	`, roomID, hostUserID, at)
	if err != nil {
		r.log.Error("Failed to update room host", "error", err, "room_id", roomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, roomID, "")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE participants
		SET role = 'PLAYER'
		WHERE room_id = $1 AND role = 'HOST' AND user_id <> $2
	`, roomID, hostUserID); err != nil {
		r.log.Error("Failed to demote previous host", "error", err, "room_id", roomID)
		return err
	}

	tag, err = tx.Exec(ctx, `
		UPDATE participants
		SET role = 'HOST'
		WHERE room_id = $1 AND user_id = $2
	`, roomID, hostUserID)
	if err != nil {
		r.log.Error("Failed to promote new host", "error", err, "room_id", roomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit host change", "error", err, "room_id", roomID)
		return err
	}
	return nil
}

func (r *postgresStore) UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, settings domain.RoomSettings, at time.Time) error {
	query := `
		UPDATE rooms
		SET is_private = $2, password_hash = $3, updated_at = $4
		WHERE id = $1 AND status <> 'ENDED'
	`
	tag, err := r.db.Exec(ctx, query, roomID, settings.IsPrivate, settings.PasswordHash, at)
	if err != nil {
		r.log.Error("Failed to update room settings", "error", err, "room_id", roomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, roomID, "")
	}
	return nil
}

// missOrConflict различает отсутствующую комнату и проигранную гонку
func (r *postgresStore) missOrConflict(ctx context.Context, roomID uuid.UUID, reason string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM rooms WHERE id = $1`, roomID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	if reason == "" || domain.RoomStatus(status).IsTerminal() {
		return apperrors.ErrRoomEnded
	}
	return apperrors.Conflict(reason)
}
