package permission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"room_coordinator/internal/domain"
)

func hostCtx(status domain.RoomStatus) Context {
	return Context{
		ActorIsParticipant: true,
		ActorRole:          domain.ParticipantRoleHost,
		ActorIsHost:        true,
		ActorIsOnline:      true,
		RoomStatus:         status,
	}
}

func playerCtx(status domain.RoomStatus) Context {
	return Context{
		ActorIsParticipant: true,
		ActorRole:          domain.ParticipantRolePlayer,
		ActorIsOnline:      true,
		RoomStatus:         status,
	}
}

func TestValidateAction_HostRules(t *testing.T) {
	cases := []struct {
		action  Action
		status  domain.RoomStatus
		allowed bool
	}{
		{ActionKickPlayer, domain.RoomStatusWaiting, true},
		{ActionKickPlayer, domain.RoomStatusActive, true},
		{ActionKickPlayer, domain.RoomStatusPaused, true},
		{ActionKickPlayer, domain.RoomStatusEnded, false},
		{ActionStartGame, domain.RoomStatusWaiting, true},
		{ActionStartGame, domain.RoomStatusActive, false},
		{ActionPauseGame, domain.RoomStatusActive, true},
		{ActionPauseGame, domain.RoomStatusPaused, true},
		{ActionPauseGame, domain.RoomStatusWaiting, false},
		{ActionResumeGame, domain.RoomStatusPaused, true},
		{ActionResumeGame, domain.RoomStatusWaiting, false},
		{ActionTransferHost, domain.RoomStatusActive, true},
		{ActionTransferHost, domain.RoomStatusEnded, false},
		{ActionEndRoom, domain.RoomStatusWaiting, true},
		{ActionEndRoom, domain.RoomStatusEnded, false},
		{ActionChangeVisibility, domain.RoomStatusPaused, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.action)+"/"+string(tc.status), func(t *testing.T) {
			res := ValidateAction(tc.action, hostCtx(tc.status))
			assert.Equal(t, tc.allowed, res.Allowed, res.Reason)
			if !tc.allowed {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestValidateAction_PlayerCannotKick(t *testing.T) {
	res := ValidateAction(ActionKickPlayer, playerCtx(domain.RoomStatusActive))

	assert.False(t, res.Allowed)
	assert.Equal(t, "only the host can kick players", res.Reason)
}

func TestValidateAction_ParticipationDominates(t *testing.T) {
	// не участник + закрытая комната + неподходящий статус: причина только одна
	c := Context{RoomStatus: domain.RoomStatusEnded, RoomIsPrivate: true}

	for action := range rules {
		if action == ActionJoinRoom {
			continue
		}
		res := ValidateAction(action, c)
		assert.False(t, res.Allowed)
		assert.Equal(t, "not a participant of this room", res.Reason, string(action))
	}
}

func TestValidateAction_RoleBeforeStatus(t *testing.T) {
	res := ValidateAction(ActionStartGame, playerCtx(domain.RoomStatusEnded))

	assert.Equal(t, "only the host can start the game", res.Reason)
}

func TestValidateAction_EndedRoomReason(t *testing.T) {
	res := ValidateAction(ActionKickPlayer, hostCtx(domain.RoomStatusEnded))

	assert.Equal(t, "room has ended", res.Reason)
}

func TestValidateAction_StatusReasonIsSpecific(t *testing.T) {
	res := ValidateAction(ActionStartGame, hostCtx(domain.RoomStatusPaused))

	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "PAUSED")
	assert.Contains(t, res.Reason, "WAITING")
}

func TestValidateAction_SystemActor(t *testing.T) {
	c := Context{ActorIsSystem: true, RoomStatus: domain.RoomStatusActive}

	assert.True(t, ValidateAction(ActionTransferHost, c).Allowed)
	assert.True(t, ValidateAction(ActionEndRoom, c).Allowed)
	// системный актор не получает прочие права хоста
	assert.False(t, ValidateAction(ActionKickPlayer, c).Allowed)

	c.RoomStatus = domain.RoomStatusEnded
	assert.Equal(t, "room has ended", ValidateAction(ActionTransferHost, c).Reason)
}

func TestValidateAction_PasswordRequiresPremium(t *testing.T) {
	c := hostCtx(domain.RoomStatusWaiting).WithPasswordChange(true)

	res := ValidateAction(ActionChangePassword, c)
	assert.False(t, res.Allowed)
	assert.Equal(t, "password protection requires a premium account", res.Reason)

	c.ActorIsPremium = true
	assert.True(t, ValidateAction(ActionChangePassword, c).Allowed)

	// снятие пароля премиум не требует
	clear := hostCtx(domain.RoomStatusWaiting).WithPasswordChange(false)
	assert.True(t, ValidateAction(ActionChangePassword, clear).Allowed)
}

func TestValidateAction_JoinPrivateRoom(t *testing.T) {
	c := Context{RoomStatus: domain.RoomStatusWaiting, RoomIsPrivate: true}
	assert.False(t, ValidateAction(ActionJoinRoom, c).Allowed)

	c.ActorIsPremium = true
	assert.True(t, ValidateAction(ActionJoinRoom, c).Allowed)

	withPassword := Context{RoomStatus: domain.RoomStatusActive, RoomIsPrivate: true, RoomHasPassword: true}
	assert.True(t, ValidateAction(ActionJoinRoom, withPassword).Allowed)

	ended := Context{RoomStatus: domain.RoomStatusEnded}
	assert.Equal(t, "room has ended", ValidateAction(ActionJoinRoom, ended).Reason)
}

func TestValidateAction_UnknownAction(t *testing.T) {
	res := ValidateAction(Action("teleport"), hostCtx(domain.RoomStatusActive))

	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "teleport")
}

func TestValidateAction_IsPure(t *testing.T) {
	contexts := []Context{
		hostCtx(domain.RoomStatusActive),
		playerCtx(domain.RoomStatusPaused),
		{ActorIsSystem: true, RoomStatus: domain.RoomStatusWaiting},
		hostCtx(domain.RoomStatusWaiting).WithPasswordChange(true),
	}

	for action := range rules {
		for _, c := range contexts {
			first := ValidateAction(action, c)
			for i := 0; i < 50; i++ {
				assert.Equal(t, first, ValidateAction(action, c))
			}
		}
	}
}

func TestNewContext(t *testing.T) {
	userID := uuid.New()
	room := &domain.Room{ID: uuid.New(), Status: domain.RoomStatusActive, IsPrivate: true, HasPassword: true}
	p := &domain.Participant{UserID: userID, Role: domain.ParticipantRoleHost, IsOnline: true, JoinedAt: time.Now()}

	c := NewContext(room, p, domain.UserActor(userID), true)
	assert.True(t, c.ActorIsParticipant)
	assert.True(t, c.ActorIsHost)
	assert.True(t, c.ActorIsOnline)
	assert.True(t, c.ActorIsPremium)
	assert.True(t, c.RoomIsPrivate)
	assert.True(t, c.RoomHasPassword)
	assert.Equal(t, domain.RoomStatusActive, c.RoomStatus)

	// запись участника удалена конкурентно
	gone := NewContext(room, nil, domain.UserActor(userID), true)
	assert.False(t, gone.ActorIsParticipant)
	assert.Equal(t, "not a participant of this room", ValidateAction(ActionKickPlayer, gone).Reason)

	// чужая запись не дает прав
	other := NewContext(room, p, domain.UserActor(uuid.New()), false)
	assert.False(t, other.ActorIsHost)
}
