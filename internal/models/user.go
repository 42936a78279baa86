package models

// Roles known to the service.
const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// User is an authenticated staff member.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
