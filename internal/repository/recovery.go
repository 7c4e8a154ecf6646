package repository

import (
	"context"
	"time"

	"room_coordinator/internal/domain"
)

func (r *postgresStore) ListRecoveryCandidates(ctx context.Context, staleBefore time.Time) ([]domain.RecoveryCandidate, error) {
	query := `
		SELECT r.id, COUNT(p.id) AS participant_count
		FROM rooms r
		LEFT JOIN room_participants p ON p.room_id = r.id
		WHERE r.status <> 'ENDED'
		GROUP BY r.id, r.last_host_heartbeat_at, r.created_at
		HAVING COUNT(p.id) = 0 OR r.last_host_heartbeat_at < $1
		ORDER BY r.created_at ASC
	`

	rows, err := r.db.Query(ctx, query, staleBefore)
	if err != nil {
		r.log.Error("Failed to list recovery candidates", "error", err)
		return nil, err
	}
	defer rows.Close()

	var candidates []domain.RecoveryCandidate
	for rows.Next() {
		var c domain.RecoveryCandidate
		if err := rows.Scan(&c.RoomID, &c.ParticipantCount); err != nil {
			r.log.Error("Failed to scan recovery candidate", "error", err)
			return nil, err
		}
		c.Reason = domain.RecoveryReasonStaleHost
		if c.ParticipantCount == 0 {
			c.Reason = domain.RecoveryReasonNoParticipants
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *postgresStore) CountRooms(ctx context.Context, staleBefore time.Time) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE last_host_heartbeat_at < $1)
		FROM rooms
		WHERE status <> 'ENDED'
	`
	var total, stale int
	if err := r.db.QueryRow(ctx, query, staleBefore).Scan(&total, &stale); err != nil {
		r.log.Error("Failed to count rooms", "error", err)
		return 0, 0, err
	}
	return total, stale, nil
}

func (r *postgresStore) RecordRecoveryOutcome(ctx context.Context, record *domain.RecoveryRecord) error {
	query := `
		INSERT INTO recovery_records (room_id, detected_at, reason, recovered, new_host_user_id, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		record.RoomID, record.DetectedAt, record.Reason, record.Recovered, record.NewHostUserID, record.ResolvedAt,
	).Scan(&record.ID)
	if err != nil {
		r.log.Error("Failed to record recovery outcome", "error", err, "room_id", record.RoomID)
		return err
	}
	return nil
}

func (r *postgresStore) ListRecoveryRecordsSince(ctx context.Context, since time.Time) ([]*domain.RecoveryRecord, error) {
	query := `
		SELECT id, room_id, detected_at, reason, recovered, new_host_user_id, resolved_at
		FROM recovery_records
		WHERE resolved_at >= $1
		ORDER BY resolved_at ASC
	`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.log.Error("Failed to list recovery records", "error", err)
		return nil, err
	}
	defer rows.Close()

	var records []*domain.RecoveryRecord
	for rows.Next() {
		rec := &domain.RecoveryRecord{}
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.DetectedAt, &rec.Reason, &rec.Recovered, &rec.NewHostUserID, &rec.ResolvedAt); err != nil {
			r.log.Error("Failed to scan recovery record", "error", err)
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *postgresStore) PurgeRecoveryRecordsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM recovery_records WHERE resolved_at < $1`, cutoff)
	if err != nil {
		r.log.Error("Failed to purge recovery records", "error", err)
		return 0, err
	}
	return tag.RowsAffected(), nil
}
