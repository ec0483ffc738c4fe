package service

import "user-management-backend/internal/models"

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role models.Role
}

// RoleAllows is the flat capability check: the caller's role must equal the required role.
func RoleAllows(role, required models.Role) bool {
	return role == required
}

// CanActOn allows admins on any resource and anyone on a resource they own.
func CanActOn(actor Actor, ownerID string) bool {
	if RoleAllows(actor.Role, models.RoleAdmin) {
		return true
	}
	return actor.ID != "" && actor.ID == ownerID
}
