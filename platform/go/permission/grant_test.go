package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func expiring(at time.Time) *time.Time {
	return &at
}

func TestEffectiveRolesFiltersExpired(t *testing.T) {
	t.Parallel()

	grants := []Grant{
		{Principal: "p1", Tenant: "venue-1", Role: RoleAdmin, ExpiresAt: expiring(now.Add(-time.Minute))},
		{Principal: "p1", Tenant: "venue-1", Role: RoleHost, ExpiresAt: expiring(now.Add(time.Hour))},
		{Principal: "p1", Tenant: "venue-1", Role: RoleGuest},
	}

	roles := EffectiveRoles(grants, "venue-1", now)
	require.ElementsMatch(t, []Role{RoleHost, RoleGuest}, roles)
}

func TestEffectiveRolesExpiryBoundaryIsExclusive(t *testing.T) {
	t.Parallel()

	g := Grant{Principal: "p1", Tenant: "venue-1", Role: RoleHost, ExpiresAt: expiring(now)}
	require.True(t, g.Expired(now), "a grant is inert from its expiry instant onward")
	require.Empty(t, EffectiveRoles([]Grant{g}, "venue-1", now))
}

func TestEffectiveRolesScopesByTenant(t *testing.T) {
	t.Parallel()

	grants := []Grant{
		{Principal: "p1", Tenant: "venue-1", Role: RoleHost},
		{Principal: "p1", Tenant: "venue-2", Role: RoleAdmin},
		{Principal: "p1", Tenant: TenantAll, Role: RoleTester},
	}

	require.ElementsMatch(t, []Role{RoleHost, RoleTester}, EffectiveRoles(grants, "venue-1", now))
	require.ElementsMatch(t, []Role{RoleAdmin, RoleTester}, EffectiveRoles(grants, "venue-2", now))
	require.ElementsMatch(t, []Role{RoleTester}, EffectiveRoles(grants, "venue-3", now))
}

func TestEffectiveRolesDropsUnknownAndDuplicates(t *testing.T) {
	t.Parallel()

	grants := []Grant{
		{Principal: "p1", Tenant: "venue-1", Role: Role("owner")},
		{Principal: "p1", Tenant: "venue-1", Role: RoleHost},
		{Principal: "p1", Tenant: TenantAll, Role: RoleHost},
	}

	require.Equal(t, []Role{RoleHost}, EffectiveRoles(grants, "venue-1", now))
}
