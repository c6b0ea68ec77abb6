package permission

// Role is an explicit tagged role with a total-order hierarchy. Runtime
// permission checks compare ranks; there is no dynamic lookup.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleDeveloper  Role = "developer"
	RoleTester     Role = "tester"
	RoleHost       Role = "host"
	RoleGuest      Role = "guest"
)

// rank orders roles from least to most privileged.
var rank = map[Role]int{
	RoleGuest:      1,
	RoleHost:       2,
	RoleTester:     3,
	RoleDeveloper:  4,
	RoleAdmin:      5,
	RoleSuperAdmin: 6,
}

// Known reports whether the role is part of the hierarchy.
func (r Role) Known() bool {
	_, ok := rank[r]
	return ok
}

// AtLeast reports whether the role carries at least the privilege of required.
func (r Role) AtLeast(required Role) bool {
	return rank[r] >= rank[required]
}

// Primary returns the most privileged role in the set, defaulting to guest
// for principals with no explicit grants.
func Primary(roles []Role) Role {
	primary := RoleGuest
	for _, role := range roles {
		if rank[role] > rank[primary] {
			primary = role
		}
	}
	return primary
}

// HasAtLeast reports whether any role in the set satisfies the requirement.
// super_admin short-circuits to full access everywhere.
func HasAtLeast(roles []Role, required Role) bool {
	for _, role := range roles {
		if role == RoleSuperAdmin || role.AtLeast(required) {
			return true
		}
	}
	return false
}
