package metadata

// Role names. Administrator is a superset of ContentManager, which is a
// superset of the read-only Default role.
const (
	RoleDefault        = "default"
	RoleContentManager = "content_manager"
	RoleAdmin          = "admin"
)

// UserContext represents the authenticated user, set by auth middleware.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

// HasRole checks whether the user has a specific role.
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin checks whether the user has the admin role.
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

// CanEditContent reports whether the user may create, edit or delete
// queries, groups and rules.
func (u *UserContext) CanEditContent() bool {
	return u.HasRole(RoleContentManager) || u.IsAdmin()
}
