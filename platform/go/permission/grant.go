package permission

import (
	"time"
)

// TenantAll marks a grant valid in every tenant.
const TenantAll = "all"

// Grant records one role assignment for a principal. Grants are append-only;
// expiry makes a grant inert without deleting its history.
type Grant struct {
	Principal string     `firestore:"principal"`
	Tenant    string     `firestore:"tenant"`
	Role      Role       `firestore:"role"`
	GrantedBy string     `firestore:"grantedBy"`
	GrantedAt time.Time  `firestore:"grantedAt"`
	ExpiresAt *time.Time `firestore:"expiresAt,omitempty"`
}

// Expired reports whether the grant has lapsed at the given instant.
func (g Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !now.Before(*g.ExpiresAt)
}

// AppliesTo reports whether the grant is valid in the given tenant.
func (g Grant) AppliesTo(tenantID string) bool {
	return g.Tenant == TenantAll || g.Tenant == tenantID
}

// EffectiveRoles is the pure resolution rule: the union of roles from
// non-expired grants matching the tenant (or "all"). Expired grants are
// filtered, never removed. An empty result means the caller should treat the
// principal as a plain guest.
func EffectiveRoles(grants []Grant, tenantID string, now time.Time) []Role {
	seen := make(map[Role]struct{}, len(grants))
	var roles []Role
	for _, g := range grants {
		if !g.Role.Known() || g.Expired(now) || !g.AppliesTo(tenantID) {
			continue
		}
		if _, dup := seen[g.Role]; dup {
			continue
		}
		seen[g.Role] = struct{}{}
		roles = append(roles, g.Role)
	}
	return roles
}
