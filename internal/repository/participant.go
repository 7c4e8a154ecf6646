package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"room_coordinator/internal/domain"
	apperrors "room_coordinator/pkg/errors"
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertParticipant(ctx context.Context, db execer, p *domain.Participant) error {
	query := `
		INSERT INTO room_participants (id, room_id, user_id, role, is_online, joined_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, is_online = EXCLUDED.is_online, last_seen_at = EXCLUDED.last_seen_at
	`
	_, err := db.Exec(ctx, query,
		p.ID, p.RoomID, p.UserID, string(p.Role), p.IsOnline, p.JoinedAt, p.LastSeenAt,
	)
	return err
}

func (r *postgresStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT id, room_id, user_id, role, is_online, joined_at, last_seen_at
		FROM room_participants
		WHERE room_id = $1
		ORDER BY joined_at ASC, user_id::text ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to get participants by room", "error", err)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		var role string
		if err := rows.Scan(&p.ID, &p.RoomID, &p.UserID, &role, &p.IsOnline, &p.JoinedAt, &p.LastSeenAt); err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		p.Role = domain.ParticipantRole(role)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// пустой список неотличим от отсутствующей комнаты
	if len(participants) == 0 {
		if _, err := r.FindRoomByID(ctx, roomID); err != nil {
			return nil, err
		}
	}
	return participants, nil
}

func (r *postgresStore) UpsertParticipant(ctx context.Context, participant *domain.Participant) error {
	if err := insertParticipant(ctx, r.db, participant); err != nil {
		var pgErr *pgconn.PgError
		// 23503 = foreign_key_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to upsert participant", "error", err, "room_id", participant.RoomID)
		return err
	}
	return nil
}

func (r *postgresStore) DeleteParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM room_participants WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	if err != nil {
		r.log.Error("Failed to delete participant", "error", err, "room_id", roomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}
	return nil
}

// UpdateHeartbeat пишет присутствие участника и, для хоста, heartbeat комнаты одним batch
func (r *postgresStore) UpdateHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		UPDATE room_participants SET is_online = $3, last_seen_at = $4
		WHERE room_id = $1 AND user_id = $2
	`, hb.RoomID, hb.UserID, hb.Online, hb.At)
	if hb.IsHost && hb.Online {
		batch.Queue(`
			UPDATE rooms SET last_host_heartbeat_at = $3
			WHERE id = $1 AND host_user_id = $2 AND status <> 'ENDED'
		`, hb.RoomID, hb.UserID, hb.At)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	tag, err := results.Exec()
	if err != nil {
		r.log.Error("Failed to update participant presence", "error", err, "room_id", hb.RoomID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrParticipantNotFound
	}
	if hb.IsHost && hb.Online {
		if _, err := results.Exec(); err != nil {
			r.log.Error("Failed to update host heartbeat", "error", err, "room_id", hb.RoomID)
			return err
		}
	}
	return nil
}
