package repo

import (
	"context"
	"time"

	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Repository defines the persistence operations required by the queue service.
type Repository interface {
	Add(ctx context.Context, partyID string, entry persistence.QueueEntryRecord, maxSongsPerPerson int, allowDuplicates bool) error
	Get(ctx context.Context, partyID, entryID string) (persistence.QueueEntryRecord, error)
	List(ctx context.Context, partyID string) ([]persistence.QueueEntryRecord, error)
	Boost(ctx context.Context, partyID, entryID, boosterID string, now time.Time) (persistence.QueueEntryRecord, int, error)
	UpdateStatus(ctx context.Context, partyID, entryID, target string, now time.Time) (persistence.QueueEntryRecord, error)
	Remove(ctx context.Context, partyID, entryID, requesterID string) error
	AddPraise(ctx context.Context, partyID, entryID string, praise persistence.PraiseRecord) (persistence.QueueEntryRecord, error)
}

type storeRepository struct {
	store persistence.QueueStore
}

// NewStoreRepository constructs a repository backed by the shared document store.
func NewStoreRepository(store persistence.QueueStore) Repository {
	if store == nil {
		panic("queue store is required")
	}
	return &storeRepository{store: store}
}

func (r *storeRepository) Add(ctx context.Context, partyID string, entry persistence.QueueEntryRecord, maxSongsPerPerson int, allowDuplicates bool) error {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return err
	}
	return r.store.AddEntry(ctx, space, partyID, entry, maxSongsPerPerson, allowDuplicates)
}

func (r *storeRepository) Get(ctx context.Context, partyID, entryID string) (persistence.QueueEntryRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.QueueEntryRecord{}, err
	}
	return r.store.GetEntry(ctx, space, partyID, entryID)
}

func (r *storeRepository) List(ctx context.Context, partyID string) ([]persistence.QueueEntryRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListEntries(ctx, space, partyID)
}

func (r *storeRepository) Boost(ctx context.Context, partyID, entryID, boosterID string, now time.Time) (persistence.QueueEntryRecord, int, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.QueueEntryRecord{}, 0, err
	}
	return r.store.BoostEntry(ctx, space, partyID, entryID, boosterID, now)
}

func (r *storeRepository) UpdateStatus(ctx context.Context, partyID, entryID, target string, now time.Time) (persistence.QueueEntryRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.QueueEntryRecord{}, err
	}
	return r.store.UpdateEntryStatus(ctx, space, partyID, entryID, target, now)
}

func (r *storeRepository) Remove(ctx context.Context, partyID, entryID, requesterID string) error {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return err
	}
	return r.store.RemoveEntry(ctx, space, partyID, entryID, requesterID)
}

func (r *storeRepository) AddPraise(ctx context.Context, partyID, entryID string, praise persistence.PraiseRecord) (persistence.QueueEntryRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.QueueEntryRecord{}, err
	}
	return r.store.AddPraise(ctx, space, partyID, entryID, praise)
}
