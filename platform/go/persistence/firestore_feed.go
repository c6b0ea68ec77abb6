package persistence

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"

	"github.com/openmic-live/openmic/platform/go/tenant"
)

// SubscribePartyChanges merges the snapshot streams of the party document and
// its two subcollections into a single payload-free tick channel. The channel
// is closed once all streams stop (context cancelled or listen permission
// revoked); observers treat that as end of feed, not as an error.
func (s *FirestoreStore) SubscribePartyChanges(ctx context.Context, space tenant.Space, partyID string) (<-chan struct{}, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	ticks := make(chan struct{}, 1)

	var wg sync.WaitGroup
	notify := func() {
		// Drop the tick when one is already pending; observers recompute
		// from current state, so intermediate ticks carry no information.
		select {
		case ticks <- struct{}{}:
		default:
		}
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		iter := s.parties(space).Doc(partyID).Snapshots(ctx)
		defer iter.Stop()
		for {
			if _, err := iter.Next(); err != nil {
				return
			}
			notify()
		}
	}()
	go func() {
		defer wg.Done()
		pumpQuerySnapshots(ctx, s.participants(space, partyID).Query, notify)
	}()
	go func() {
		defer wg.Done()
		pumpQuerySnapshots(ctx, s.entries(space, partyID).Query, notify)
	}()

	go func() {
		wg.Wait()
		close(ticks)
	}()

	return ticks, cancel, nil
}

func pumpQuerySnapshots(ctx context.Context, q firestore.Query, notify func()) {
	iter := q.Snapshots(ctx)
	defer iter.Stop()
	for {
		if _, err := iter.Next(); err != nil {
			return
		}
		notify()
	}
}
