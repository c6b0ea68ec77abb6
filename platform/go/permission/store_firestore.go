package permission

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/openmic-live/openmic/platform/go/persistence"
)

// GrantsCollection is a top-level collection rather than a per-tenant
// subcollection because grants scoped to "all" span tenants by definition.
const GrantsCollection = "permissionGrants"

// FirestoreGrantStore persists grants in Firestore.
type FirestoreGrantStore struct {
	client *firestore.Client
}

// NewFirestoreGrantStore constructs the store.
func NewFirestoreGrantStore(client *firestore.Client) *FirestoreGrantStore {
	if client == nil {
		panic("firestore client is required")
	}
	return &FirestoreGrantStore{client: client}
}

func (s *FirestoreGrantStore) ListByPrincipal(ctx context.Context, principalID string) ([]Grant, error) {
	ctx, cancel := persistence.OpContext(ctx)
	defer cancel()

	iter := s.client.Collection(GrantsCollection).
		Where("principal", "==", principalID).
		Documents(ctx)
	defer iter.Stop()

	var grants []Grant
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, persistence.MapError(err)
		}

		var g Grant
		if err := doc.DataTo(&g); err != nil {
			return nil, fmt.Errorf("decode grant %s: %w", doc.Ref.ID, err)
		}
		grants = append(grants, g)
	}

	return grants, nil
}

func (s *FirestoreGrantStore) EnsureGuestGrant(ctx context.Context, principalID, tenantID string) error {
	ctx, cancel := persistence.OpContext(ctx)
	defer cancel()

	// Deterministic document id makes the bootstrap idempotent: a concurrent
	// duplicate create fails with AlreadyExists and is treated as success.
	ref := s.client.Collection(GrantsCollection).Doc(grantDocID(principalID, tenantID, RoleGuest))
	_, err := ref.Create(ctx, Grant{
		Principal: principalID,
		Tenant:    tenantID,
		Role:      RoleGuest,
		GrantedBy: "bootstrap",
		GrantedAt: time.Now().UTC(),
	})
	if err != nil && !persistence.IsAlreadyExists(err) {
		return persistence.MapError(err)
	}
	return nil
}

// Put records an explicit grant, replacing an identical-scope one if present.
// Used by the admin CLI.
func (s *FirestoreGrantStore) Put(ctx context.Context, g Grant) error {
	ctx, cancel := persistence.OpContext(ctx)
	defer cancel()

	ref := s.client.Collection(GrantsCollection).Doc(grantDocID(g.Principal, g.Tenant, g.Role))
	_, err := ref.Set(ctx, g)
	return persistence.MapError(err)
}

func grantDocID(principalID, tenantID string, role Role) string {
	return principalID + "__" + tenantID + "__" + string(role)
}
