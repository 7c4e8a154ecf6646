package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"room_coordinator/internal/domain"
	apperrors "room_coordinator/pkg/errors"
)

// memoryStore - Store в памяти процесса (DATABASE_DRIVER=memory и тесты).
// Наружу отдаются только копии.
type memoryStore struct {
	mu           sync.RWMutex
	rooms        map[uuid.UUID]*domain.Room
	participants map[uuid.UUID]map[uuid.UUID]*domain.Participant
	records      []*domain.RecoveryRecord
	nextRecordID int64
}

func NewMemoryStore() Store {
	return &memoryStore{
		rooms:        make(map[uuid.UUID]*domain.Room),
		participants: make(map[uuid.UUID]map[uuid.UUID]*domain.Participant),
	}
}

func copyRoom(r *domain.Room) *domain.Room {
	c := *r
	if r.PasswordHash != nil {
		h := *r.PasswordHash
		c.PasswordHash = &h
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func copyParticipant(p *domain.Participant) *domain.Participant {
	c := *p
	return &c
}

func (s *memoryStore) CreateRoom(ctx context.Context, room *domain.Room, host *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.rooms {
		if r.Status != domain.RoomStatusEnded && strings.EqualFold(r.RoomCode, room.RoomCode) {
			return apperrors.ErrDuplicateRoomCode
		}
	}

	s.rooms[room.ID] = copyRoom(room)
	s.participants[room.ID] = map[uuid.UUID]*domain.Participant{
		host.UserID: copyParticipant(host),
	}
	return nil
}

func (s *memoryStore) FindRoomByCode(ctx context.Context, code string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rooms {
		if r.Status != domain.RoomStatusEnded && strings.EqualFold(r.RoomCode, code) {
			return copyRoom(r), nil
		}
	}
	return nil, apperrors.ErrRoomNotFound
}

func (s *memoryStore) FindRoomByID(ctx context.Context, id uuid.UUID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[id]
	if !ok {
		return nil, apperrors.ErrRoomNotFound
	}
	return copyRoom(r), nil
}

func (s *memoryStore) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.rooms[roomID]; !ok {
		return nil, apperrors.ErrRoomNotFound
	}

	list := make([]*domain.Participant, 0, len(s.participants[roomID]))
	for _, p := range s.participants[roomID] {
		list = append(list, copyParticipant(p))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].JoinedAt.Equal(list[j].JoinedAt) {
			return list[i].JoinedAt.Before(list[j].JoinedAt)
		}
		return list[i].UserID.String() < list[j].UserID.String()
	})
	return list, nil
}

func (s *memoryStore) UpsertParticipant(ctx context.Context, participant *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[participant.RoomID]; !ok {
		return apperrors.ErrRoomNotFound
	}
	members := s.participants[participant.RoomID]
	if existing, ok := members[participant.UserID]; ok {
		// идентификатор и время входа не меняются
		updated := copyParticipant(participant)
		updated.ID = existing.ID
		updated.JoinedAt = existing.JoinedAt
		members[participant.UserID] = updated
		return nil
	}
	members[participant.UserID] = copyParticipant(participant)
	return nil
}

func (s *memoryStore) DeleteParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.participants[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if _, ok := members[userID]; !ok {
		return apperrors.ErrParticipantNotFound
	}
	delete(members, userID)
	return nil
}

func (s *memoryStore) UpdateRoomStatus(ctx context.Context, roomID uuid.UUID, from, to domain.RoomStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if r.Status != from {
		return apperrors.Conflict("room status changed concurrently")
	}
	r.Status = to
	r.UpdatedAt = at
	if to == domain.RoomStatusEnded {
		ended := at
		r.EndedAt = &ended
	}
	return nil
}

func (s *memoryStore) SetHost(ctx context.Context, roomID, hostUserID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if r.Status == domain.RoomStatusEnded {
		return apperrors.ErrRoomEnded
	}
	members := s.participants[roomID]
	target, ok := members[hostUserID]
	if !ok {
		return apperrors.ErrParticipantNotFound
	}
	for id, p := range members {
		if id != hostUserID && p.Role == domain.ParticipantRoleHost {
			p.Role = domain.ParticipantRolePlayer
		}
	}
	target.Role = domain.ParticipantRoleHost
	r.HostUserID = hostUserID
	// новый хост получает свежий heartbeat, иначе комната сразу попадет в следующий проход
	r.LastHostHeartbeatAt = at
	r.UpdatedAt = at
	return nil
}

func (s *memoryStore) UpdateRoomSettings(ctx context.Context, roomID uuid.UUID, settings domain.RoomSettings, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	if r.Status == domain.RoomStatusEnded {
		return apperrors.ErrRoomEnded
	}
	r.IsPrivate = settings.IsPrivate
	r.PasswordHash = nil
	r.HasPassword = false
	if settings.PasswordHash != nil {
		h := *settings.PasswordHash
		r.PasswordHash = &h
		r.HasPassword = true
	}
	r.UpdatedAt = at
	return nil
}

func (s *memoryStore) UpdateHeartbeat(ctx context.Context, hb domain.Heartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[hb.RoomID]
	if !ok {
		return apperrors.ErrRoomNotFound
	}
	p, ok := s.participants[hb.RoomID][hb.UserID]
	if !ok {
		return apperrors.ErrParticipantNotFound
	}
	p.IsOnline = hb.Online
	p.LastSeenAt = hb.At
	if hb.IsHost && hb.Online && r.HostUserID == hb.UserID && r.Status != domain.RoomStatusEnded {
		r.LastHostHeartbeatAt = hb.At
	}
	return nil
}

func (s *memoryStore) ListRecoveryCandidates(ctx context.Context, staleBefore time.Time) ([]domain.RecoveryCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]*domain.Room, 0)
	for _, r := range s.rooms {
		if r.Status != domain.RoomStatusEnded {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].CreatedAt.Before(rooms[j].CreatedAt) })

	var candidates []domain.RecoveryCandidate
	for _, r := range rooms {
		count := len(s.participants[r.ID])
		switch {
		case count == 0:
			candidates = append(candidates, domain.RecoveryCandidate{RoomID: r.ID, Reason: domain.RecoveryReasonNoParticipants})
		case r.LastHostHeartbeatAt.Before(staleBefore):
			candidates = append(candidates, domain.RecoveryCandidate{RoomID: r.ID, Reason: domain.RecoveryReasonStaleHost, ParticipantCount: count})
		}
	}
	return candidates, nil
}

func (s *memoryStore) CountRooms(ctx context.Context, staleBefore time.Time) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, stale := 0, 0
	for _, r := range s.rooms {
		if r.Status == domain.RoomStatusEnded {
			continue
		}
		total++
		if r.LastHostHeartbeatAt.Before(staleBefore) {
			stale++
		}
	}
	return total, stale, nil
}

func (s *memoryStore) RecordRecoveryOutcome(ctx context.Context, record *domain.RecoveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextRecordID++
	record.ID = s.nextRecordID
	c := *record
	s.records = append(s.records, &c)
	return nil
}

func (s *memoryStore) ListRecoveryRecordsSince(ctx context.Context, since time.Time) ([]*domain.RecoveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.RecoveryRecord
	for _, r := range s.records {
		if !r.ResolvedAt.Before(since) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *memoryStore) PurgeRecoveryRecordsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var purged int64
	for _, r := range s.records {
		if r.ResolvedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return purged, nil
}
