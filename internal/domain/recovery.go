package domain

import (
	"time"

	"github.com/google/uuid"
)

// Причины восстановления
const (
	RecoveryReasonStaleHost       = "stale_host_heartbeat"
	RecoveryReasonNoParticipants  = "no_participants"
	RecoveryReasonManual          = "manual"
	RecoveryReasonNoEligibleHost  = "no_eligible_host"
	RecoveryReasonHostStillActive = "host_still_active"
	RecoveryReasonAlreadyEnded    = "room_already_ended"
	RecoveryReasonFailed          = "recovery_failed"
)

// RecoveryRecord создается только менеджером восстановления
type RecoveryRecord struct {
	ID            int64      `json:"id"`
	RoomID        uuid.UUID  `json:"room_id"`
	DetectedAt    time.Time  `json:"detected_at"`
	Reason        string     `json:"reason"`
	Recovered     bool       `json:"recovered"`
	NewHostUserID *uuid.UUID `json:"new_host_user_id,omitempty"`
	ResolvedAt    time.Time  `json:"resolved_at"`
}

// RecoveryCandidate - комната, отобранная для прохода восстановления
type RecoveryCandidate struct {
	RoomID           uuid.UUID
	Reason           string
	ParticipantCount int
}

// RecoveryResult - итог по одной комнате. Error заполнен, если восстановление не удалось.
type RecoveryResult struct {
	RoomID        uuid.UUID  `json:"roomId"`
	Reason        string     `json:"reason"`
	Recovered     bool       `json:"recovered"`
	Retired       bool       `json:"retired"`
	NewHostUserID *uuid.UUID `json:"newHostUserId,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// RecoveryStats - агрегаты для административной панели
type RecoveryStats struct {
	TotalRooms       int        `json:"totalRooms"`
	StaleRooms       int        `json:"staleRooms"`
	RecoveredLast24h int        `json:"recoveredLast24h"`
	RetiredLast24h   int        `json:"retiredLast24h"`
	LastSweepAt      *time.Time `json:"lastSweepAt"`
	TotalSweeps      int64      `json:"totalSweeps"`
	RoomsRecovered   int64      `json:"roomsRecovered"`
	RoomsRetired     int64      `json:"roomsRetired"`
}
