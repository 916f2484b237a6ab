package services

import (
	"slices"

	. "cleanmarket/internal/models"
	"cleanmarket/internal/types"
)

var (
	partyRoles   = []types.Role{types.RoleClient, types.RoleCleaner, types.RoleAdmin}
	workerRoles  = []types.Role{types.RoleCleaner, types.RoleAdmin}
	confirmRoles = []types.Role{types.RoleClient, types.RoleAdmin, types.RoleSystem}
	adminRoles   = []types.Role{types.RoleAdmin}
)

// AllowedTransitions maps each status to the statuses it may move to and the roles
// that may drive each edge. Every non-terminal status can be cancelled; a dispute is
// only cancelled by an admin.
var AllowedTransitions = map[BookingStatus]map[BookingStatus][]types.Role{
	BookingStatusRequested: {
		BookingStatusAccepted:  workerRoles,
		BookingStatusCancelled: partyRoles,
	},
	BookingStatusAccepted: {
		BookingStatusOnTheWay:  workerRoles,
		BookingStatusCancelled: partyRoles,
	},
	BookingStatusOnTheWay: {
		BookingStatusArrived:   workerRoles,
		BookingStatusCancelled: partyRoles,
	},
	BookingStatusArrived: {
		BookingStatusInProgress: workerRoles,
		BookingStatusCancelled:  partyRoles,
	},
	BookingStatusInProgress: {
		BookingStatusCompleted: workerRoles,
		BookingStatusCancelled: partyRoles,
	},
	BookingStatusCompleted: {
		BookingStatusClientConfirmed: confirmRoles,
		BookingStatusDisputed:        partyRoles,
		BookingStatusCancelled:       partyRoles,
	},
	BookingStatusClientConfirmed: {
		BookingStatusDisputed: partyRoles,
	},
	BookingStatusDisputed: {
		BookingStatusResolved:  adminRoles,
		BookingStatusRejected:  adminRoles,
		BookingStatusCancelled: adminRoles,
	},
}

// CanTransition reports whether the edge exists, regardless of who drives it.
func CanTransition(from, to BookingStatus) bool {
	_, ok := AllowedTransitions[from][to]
	return ok
}

// mayDrive checks the actor against the edge's roles and their relation to the booking.
// Callers must have checked that the edge exists.
func mayDrive(booking *Booking, actor types.Actor, to BookingStatus) bool {
	if !slices.Contains(AllowedTransitions[booking.Status][to], actor.Role) {
		return false
	}

	switch actor.Role {
	case types.RoleAdmin:
		// admins may only accept on behalf of a cleaner that is already assigned
		return to != BookingStatusAccepted || booking.CleanerID != nil
	case types.RoleSystem:
		return true
	case types.RoleClient:
		return booking.IsClient(actor.ID)
	case types.RoleCleaner:
		if to == BookingStatusAccepted {
			return booking.CleanerID == nil || booking.IsAssignedCleaner(actor.ID)
		}
		return booking.IsAssignedCleaner(actor.ID)
	}

	return false
}
