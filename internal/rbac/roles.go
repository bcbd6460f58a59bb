package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleOperator watches live calls.
	RoleOperator = "operator"
	// RoleSupervisor can also end calls and pin transfer overrides.
	RoleSupervisor = "supervisor"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnownRole reports whether role is one the admin API recognizes.
func IsKnownRole(role string) bool {
	switch role {
	case RoleOperator, RoleSupervisor, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
