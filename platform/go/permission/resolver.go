package permission

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openmic-live/openmic/platform/go/tenant"
)

// GrantStore is the persistence surface the resolver needs.
type GrantStore interface {
	// ListByPrincipal returns every grant held by the principal across tenants.
	ListByPrincipal(ctx context.Context, principalID string) ([]Grant, error)
	// EnsureGuestGrant records the default guest grant for a first-time-seen
	// principal. It must be idempotent: re-running it never duplicates.
	EnsureGuestGrant(ctx context.Context, principalID, tenantID string) error
}

// Resolver turns an authenticated principal into its effective role set for a tenant.
type Resolver struct {
	store  GrantStore
	logger *zap.Logger
	now    func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(store GrantStore, logger *zap.Logger) *Resolver {
	if store == nil {
		panic("grant store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Resolver{store: store, logger: logger, now: time.Now}
}

// Resolve returns the effective role set for the principal in the tenant.
// Principals with no valid grants default to guest; the default grant is
// bootstrapped in the background and a bootstrap failure never blocks the
// principal's use of guest-level features.
func (r *Resolver) Resolve(ctx context.Context, principalID string, space tenant.Space) ([]Role, error) {
	if principalID == "" {
		return []Role{RoleGuest}, nil
	}

	grants, err := r.store.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list grants for %s: %w", principalID, err)
	}

	roles := EffectiveRoles(grants, space.ID, r.now())
	if len(roles) > 0 {
		return roles, nil
	}

	if err := r.store.EnsureGuestGrant(ctx, principalID, space.ID); err != nil {
		r.logger.Warn("guest grant bootstrap failed",
			zap.String("principal_id", principalID),
			zap.String("tenant", space.ID),
			zap.Error(err),
		)
	}

	return []Role{RoleGuest}, nil
}

// PrimaryRole resolves the single highest role for display purposes.
func (r *Resolver) PrimaryRole(ctx context.Context, principalID string, space tenant.Space) (Role, error) {
	roles, err := r.Resolve(ctx, principalID, space)
	if err != nil {
		return RoleGuest, err
	}
	return Primary(roles), nil
}
