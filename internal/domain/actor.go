package domain

// Role of an authenticated actor
type Role string

const (
	RoleOwner         Role = "owner"
	RoleAdministrator Role = "admin"
)

// Actor is a pre-validated identity handed to the core by the request layer
type Actor struct {
	ID   uint `json:"id"`
	Role Role `json:"role"`
}

// IsAdmin reports whether the actor holds the administrator role
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdministrator
}
