package domain

import (
	"github.com/google/uuid"
)

const GlobalRoleAdmin = "admin"

// Identity - пользователь из проверенного bearer-токена. Учетные записи ведет внешний сервис.
type Identity struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (i Identity) IsAdmin() bool {
	return i.HasRole(GlobalRoleAdmin)
}
