package types

import "github.com/google/uuid"

type Role string

const (
	RoleClient  Role = "CLIENT"
	RoleCleaner Role = "CLEANER"
	RoleAdmin   Role = "ADMIN"
	RoleSystem  Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleCleaner, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the identity driving an operation, as asserted by the upstream auth layer.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// SystemActor drives scheduler initiated transitions such as auto-confirm.
var SystemActor = Actor{ID: uuid.Nil, Role: RoleSystem}
