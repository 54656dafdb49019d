package model

// AdminDisplayName is the fixed name shown for administrator identities.
const AdminDisplayName = "Administrator"

// Identity is the authenticated principal of a request. It is embedded in
// every issued token and does not change for the token's lifetime.
type Identity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}
