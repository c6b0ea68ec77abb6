package permission

import (
	"context"
	"sync"
	"time"
)

// MemoryGrantStore is an in-memory GrantStore for tests and local development.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string]Grant

	// BootstrapErr, when set, makes EnsureGuestGrant fail. Tests use it to
	// prove that a bootstrap failure does not block guest access.
	BootstrapErr error
}

// NewMemoryGrantStore constructs an empty store.
func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]Grant)}
}

func (s *MemoryGrantStore) ListByPrincipal(ctx context.Context, principalID string) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Grant
	for _, g := range s.grants {
		if g.Principal == principalID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *MemoryGrantStore) EnsureGuestGrant(ctx context.Context, principalID, tenantID string) error {
	if s.BootstrapErr != nil {
		return s.BootstrapErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := grantDocID(principalID, tenantID, RoleGuest)
	if _, exists := s.grants[key]; exists {
		return nil
	}
	s.grants[key] = Grant{
		Principal: principalID,
		Tenant:    tenantID,
		Role:      RoleGuest,
		GrantedBy: "bootstrap",
		GrantedAt: time.Now().UTC(),
	}
	return nil
}

// Put records an explicit grant.
func (s *MemoryGrantStore) Put(ctx context.Context, g Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[grantDocID(g.Principal, g.Tenant, g.Role)] = g
	return nil
}
