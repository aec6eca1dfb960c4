package users

import "strings"

// Role is the staff role carried by an access token
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleConsultant Role = "consultant"
)

// ManagerRoles may edit events, zones and any booking
var ManagerRoles = []string{string(RoleAdmin), string(RoleEditor)}

// Principal is the authenticated caller
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func IsValidRole(role string) bool {
	switch Role(role) {
	case RoleAdmin, RoleEditor, RoleConsultant:
		return true
	default:
		return false
	}
}

// ParseRole normalizes a role claim. Unknown roles fall back to consultant.
func ParseRole(role string) Role {
	r := strings.ToLower(strings.TrimSpace(role))
	if IsValidRole(r) {
		return Role(r)
	}
	return RoleConsultant
}

// CanManage reports whether the principal may act on behalf of others
func (p Principal) CanManage() bool {
	return p.Role == RoleAdmin || p.Role == RoleEditor
}

// Owns reports whether the principal is the named requester
func (p Principal) Owns(requester string) bool {
	return p.Username != "" && p.Username == requester
}
