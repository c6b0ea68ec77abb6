package repo

import (
	"context"
	"time"

	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Repository defines the persistence operations required by the participants
// service.
type Repository interface {
	Join(ctx context.Context, partyID string, candidate persistence.ParticipantRecord) (persistence.ParticipantRecord, bool, error)
	Leave(ctx context.Context, partyID, participantID string, now time.Time) (persistence.ParticipantRecord, error)
	Get(ctx context.Context, partyID, participantID string) (persistence.ParticipantRecord, error)
	FindByPrincipal(ctx context.Context, partyID, principalID string) (persistence.ParticipantRecord, error)
	List(ctx context.Context, partyID string) ([]persistence.ParticipantRecord, error)
	AdjustCredits(ctx context.Context, partyID, participantID string, delta int) (persistence.ParticipantRecord, error)
	AddScore(ctx context.Context, partyID, participantID string, delta int) error
}

type storeRepository struct {
	store persistence.ParticipantStore
}

// NewStoreRepository constructs a repository backed by the shared document store.
func NewStoreRepository(store persistence.ParticipantStore) Repository {
	if store == nil {
		panic("participant store is required")
	}
	return &storeRepository{store: store}
}

func (r *storeRepository) Join(ctx context.Context, partyID string, candidate persistence.ParticipantRecord) (persistence.ParticipantRecord, bool, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.ParticipantRecord{}, false, err
	}
	return r.store.JoinParty(ctx, space, partyID, candidate)
}

func (r *storeRepository) Leave(ctx context.Context, partyID, participantID string, now time.Time) (persistence.ParticipantRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.ParticipantRecord{}, err
	}
	return r.store.LeaveParty(ctx, space, partyID, participantID, now)
}

func (r *storeRepository) Get(ctx context.Context, partyID, participantID string) (persistence.ParticipantRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.ParticipantRecord{}, err
	}
	return r.store.GetParticipant(ctx, space, partyID, participantID)
}

func (r *storeRepository) FindByPrincipal(ctx context.Context, partyID, principalID string) (persistence.ParticipantRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.ParticipantRecord{}, err
	}
	return r.store.FindParticipantByPrincipal(ctx, space, partyID, principalID)
}

func (r *storeRepository) List(ctx context.Context, partyID string) ([]persistence.ParticipantRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ListParticipants(ctx, space, partyID)
}

func (r *storeRepository) AdjustCredits(ctx context.Context, partyID, participantID string, delta int) (persistence.ParticipantRecord, error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return persistence.ParticipantRecord{}, err
	}
	return r.store.AdjustCredits(ctx, space, partyID, participantID, delta)
}

func (r *storeRepository) AddScore(ctx context.Context, partyID, participantID string, delta int) error {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return err
	}
	return r.store.AddScore(ctx, space, partyID, participantID, delta)
}
