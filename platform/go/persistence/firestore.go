package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Firestore collection names under tenants/<id>.
const (
	partiesCollection      = "parties"
	partyCodesCollection   = "partyCodes"
	participantsCollection = "participants"
	queueCollection        = "queueEntries"
)

// FirestoreStore implements Store against Firestore. Every path is rooted at
// the tenant document, so no operation can cross tenants.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore constructs the store.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	if client == nil {
		panic("firestore client is required")
	}
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) tenantDoc(space tenant.Space) *firestore.DocumentRef {
	return s.client.Collection("tenants").Doc(space.ID)
}

func (s *FirestoreStore) parties(space tenant.Space) *firestore.CollectionRef {
	return s.tenantDoc(space).Collection(partiesCollection)
}

func (s *FirestoreStore) codes(space tenant.Space) *firestore.CollectionRef {
	return s.tenantDoc(space).Collection(partyCodesCollection)
}

func (s *FirestoreStore) participants(space tenant.Space, partyID string) *firestore.CollectionRef {
	return s.parties(space).Doc(partyID).Collection(participantsCollection)
}

func (s *FirestoreStore) entries(space tenant.Space, partyID string) *firestore.CollectionRef {
	return s.parties(space).Doc(partyID).Collection(queueCollection)
}

func (s *FirestoreStore) CreateParty(ctx context.Context, space tenant.Space, party PartyRecord, host ParticipantRecord) error {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	codeRef := s.codes(space).Doc(party.Code)
	partyRef := s.parties(space).Doc(party.ID)
	hostRef := s.participants(space, party.ID).Doc(host.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Creating the code document is the uniqueness reservation: a
		// concurrent create of the same code fails the transaction.
		if err := tx.Create(codeRef, CodeRecord{PartyID: party.ID, ReservedAt: party.CreatedAt}); err != nil {
			return err
		}
		if err := tx.Create(partyRef, party); err != nil {
			return err
		}
		return tx.Create(hostRef, host)
	})
	if err != nil {
		if IsAlreadyExists(err) {
			return ErrCodeTaken
		}
		return MapError(err)
	}
	return nil
}

func (s *FirestoreStore) GetParty(ctx context.Context, space tenant.Space, partyID string) (PartyRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	snap, err := s.parties(space).Doc(partyID).Get(ctx)
	if err != nil {
		if IsNotFound(err) {
			return PartyRecord{}, ErrPartyNotFound
		}
		return PartyRecord{}, MapError(err)
	}
	return decodeParty(snap)
}

func (s *FirestoreStore) GetPartyByCode(ctx context.Context, space tenant.Space, code string) (PartyRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	codeSnap, err := s.codes(space).Doc(code).Get(ctx)
	if err != nil {
		if IsNotFound(err) {
			return PartyRecord{}, ErrPartyNotFound
		}
		return PartyRecord{}, MapError(err)
	}

	var rec CodeRecord
	if err := codeSnap.DataTo(&rec); err != nil {
		return PartyRecord{}, fmt.Errorf("decode code %s: %w", code, err)
	}

	return s.GetParty(ctx, space, rec.PartyID)
}

func (s *FirestoreStore) TransitionParty(ctx context.Context, space tenant.Space, partyID, target string, now time.Time) (PartyRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	ref := s.parties(space).Doc(partyID)
	var out PartyRecord

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if IsNotFound(err) {
				return ErrPartyNotFound
			}
			return err
		}

		party, err := decodeParty(snap)
		if err != nil {
			return err
		}

		// Ending twice is a tolerated client replay, not an error.
		if party.Status == PartyEnded && target == PartyEnded {
			out = party
			return nil
		}
		if !CanTransitionParty(party.Status, target) {
			return ErrInvalidPartyStatus
		}

		party.Status = target
		updates := []firestore.Update{{Path: "status", Value: target}}
		if target == PartyEnded {
			party.EndedAt = &now
			updates = append(updates, firestore.Update{Path: "endedAt", Value: now})
		}
		out = party
		return tx.Update(ref, updates)
	})
	if err != nil {
		return PartyRecord{}, MapError(err)
	}
	return out, nil
}

func (s *FirestoreStore) ListStaleActiveParties(ctx context.Context, space tenant.Space, cutoff time.Time) ([]PartyRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	iter := s.parties(space).
		Where("status", "==", PartyActive).
		Where("createdAt", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var out []PartyRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, MapError(err)
		}
		party, err := decodeParty(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, party)
	}
	return out, nil
}

func decodeParty(snap *firestore.DocumentSnapshot) (PartyRecord, error) {
	var party PartyRecord
	if err := snap.DataTo(&party); err != nil {
		return PartyRecord{}, fmt.Errorf("decode party %s: %w", snap.Ref.ID, err)
	}
	return party, nil
}
