package repo

import (
	"context"
	"time"

	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Repository defines the persistence operations required by the parties service.
type Repository interface {
	Create(ctx context.Context, party persistence.PartyRecord, host persistence.ParticipantRecord) error
	Get(ctx context.Context, partyID string) (persistence.PartyRecord, error)
	GetByCode(ctx context.Context, code string) (persistence.PartyRecord, error)
	Transition(ctx context.Context, partyID, target string, now time.Time) (persistence.PartyRecord, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]persistence.PartyRecord, error)
}

type storeRepository struct {
	store persistence.PartyStore
}

// NewStoreRepository constructs a repository backed by the shared document store.
// The tenant space is taken from the context on every call so a request can
// never address parties outside its namespace.
func NewStoreRepository(store persistence.PartyStore) Repository {
	if store == nil {
		panic("party store is required")
	}
	return &storeRepository{store: store}
}

func (r *storeRepository) Create(ctx context.Context, party persistence.PartyRecord, host persistence.ParticipantRecord) error {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return err
	}
	return r.store.CreateParty(ctx, space, party, host)
}

func (r *storeRepository) Get(ctx context.Context, partyID string) (persistence.PartyRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.PartyRecord{}, err
	}
	return r.store.GetParty(ctx, space, partyID)
}

func (r *storeRepository) GetByCode(ctx context.Context, code string) (persistence.PartyRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.PartyRecord{}, err
	}
	return r.store.GetPartyByCode(ctx, space, code)
}

func (r *storeRepository) Transition(ctx context.Context, partyID, target string, now time.Time) (persistence.PartyRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.PartyRecord{}, err
	}
	return r.store.TransitionParty(ctx, space, partyID, target, now)
}

func (r *storeRepository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]persistence.PartyRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListStaleActiveParties(ctx, space, cutoff)
}
