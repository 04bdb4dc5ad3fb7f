package domain

import "github.com/google/uuid"

// RoleKind enumerates the staff capabilities a user can hold in a theatre.
// The set is closed: stored role names are mapped onto it, never the reverse.
type RoleKind int

const (
	RoleTheatreOwner RoleKind = iota + 1
	RoleTicketManager
	RoleTicketChecker
	RoleUserManager
	RoleScreeningsManager
)

// AllRoleKinds lists every RoleKind in declaration order.
func AllRoleKinds() []RoleKind {
	return []RoleKind{
		RoleTheatreOwner,
		RoleTicketManager,
		RoleTicketChecker,
		RoleUserManager,
		RoleScreeningsManager,
	}
}

// String returns the stored role name.
func (k RoleKind) String() string {
	switch k {
	case RoleTheatreOwner:
		return "TheatreOwner"
	case RoleTicketManager:
		return "TicketManager"
	case RoleTicketChecker:
		return "TicketChecker"
	case RoleUserManager:
		return "UserManager"
	case RoleScreeningsManager:
		return "ScreeningsManager"
	default:
		return "Unknown"
	}
}

// Valid reports whether k is one of the declared kinds.
func (k RoleKind) Valid() bool {
	return k >= RoleTheatreOwner && k <= RoleScreeningsManager
}

// ParseRoleKind maps an exact stored name back to its RoleKind.
func ParseRoleKind(name string) (RoleKind, bool) {
	for _, kind := range AllRoleKinds() {
		if kind.String() == name {
			return kind, true
		}
	}
	return 0, false
}

// RoleRecord is the persisted row backing a RoleKind.
type RoleRecord struct {
	ID   uuid.UUID
	Name string
}

// UserTheatreRole grants RoleID to UserID within TheatreID only.
type UserTheatreRole struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	TheatreID uuid.UUID
}
