package auth

import "campusmarket/internal/model"

// CanMutate reports whether identity may modify a resource owned by ownerID.
// Admins may mutate anything; users only what they own.
func CanMutate(identity model.Identity, ownerID int64) bool {
	switch identity.Role {
	case model.RoleAdmin:
		return true
	case model.RoleUser:
		return identity.ID != 0 && identity.ID == ownerID
	default:
		return false
	}
}
