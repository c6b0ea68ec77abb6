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

func (s *FirestoreStore) JoinParty(ctx context.Context, space tenant.Space, partyID string, candidate ParticipantRecord) (ParticipantRecord, bool, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	var out ParticipantRecord
	var already bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		already = false

		partySnap, err := tx.Get(partyRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrPartyNotFound
			}
			return err
		}
		party, err := decodeParty(partySnap)
		if err != nil {
			return err
		}
		if party.Status != PartyActive {
			return ErrPartyNotActive
		}

		// All reads must happen before any write in a Firestore transaction,
		// so look up a previous membership first.
		existing, found, err := s.txFindByPrincipal(tx, space, partyID, candidate.PrincipalID)
		if err != nil {
			return err
		}

		switch {
		case found && existing.LeftAt == nil:
			// Idempotent: the principal is already in.
			out, already = existing, true
			return nil

		case found:
			// Rejoin revives the old record; the credit balance persists.
			existing.LeftAt = nil
			existing.DisplayName = candidate.DisplayName
			existing.Anonymous = candidate.Anonymous
			if len(party.ParticipantIDs) >= party.Settings.MaxParticipants {
				return ErrPartyFull
			}
			out = existing
			if err := tx.Set(s.participants(space, partyID).Doc(existing.ID), existing); err != nil {
				return err
			}
			return tx.Update(partyRef, []firestore.Update{
				{Path: "participantIds", Value: firestore.ArrayUnion(existing.ID)},
			})

		default:
			if len(party.ParticipantIDs) >= party.Settings.MaxParticipants {
				return ErrPartyFull
			}
			// First join seeds the boost allowance from the party settings.
			candidate.BoostCredits = party.Settings.BoostsPerPerson
			out = candidate
			if err := tx.Create(s.participants(space, partyID).Doc(candidate.ID), candidate); err != nil {
				return err
			}
			return tx.Update(partyRef, []firestore.Update{
				{Path: "participantIds", Value: firestore.ArrayUnion(candidate.ID)},
			})
		}
	})
	if err != nil {
		return ParticipantRecord{}, false, MapError(err)
	}
	return out, already, nil
}

func (s *FirestoreStore) LeaveParty(ctx context.Context, space tenant.Space, partyID, participantID string, now time.Time) (ParticipantRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	ref := s.participants(space, partyID).Doc(participantID)
	var out ParticipantRecord

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		partySnap, err := tx.Get(partyRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrPartyNotFound
			}
			return err
		}
		party, err := decodeParty(partySnap)
		if err != nil {
			return err
		}
		if party.Status == PartyEnded {
			return ErrPartyEnded
		}

		snap, err := tx.Get(ref)
		if err != nil {
			if IsNotFound(err) {
				return ErrParticipantNotFound
			}
			return err
		}
		participant, err := decodeParticipant(snap)
		if err != nil {
			return err
		}
		if participant.LeftAt != nil {
			return ErrAlreadyLeft
		}

		participant.LeftAt = &now
		out = participant
		if err := tx.Update(ref, []firestore.Update{{Path: "leftAt", Value: now}}); err != nil {
			return err
		}
		return tx.Update(partyRef, []firestore.Update{
			{Path: "participantIds", Value: firestore.ArrayRemove(participantID)},
		})
	})
	if err != nil {
		return ParticipantRecord{}, MapError(err)
	}
	return out, nil
}

func (s *FirestoreStore) GetParticipant(ctx context.Context, space tenant.Space, partyID, participantID string) (ParticipantRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	snap, err := s.participants(space, partyID).Doc(participantID).Get(ctx)
	if err != nil {
		if IsNotFound(err) {
			return ParticipantRecord{}, ErrParticipantNotFound
		}
		return ParticipantRecord{}, MapError(err)
	}
	return decodeParticipant(snap)
}

func (s *FirestoreStore) FindParticipantByPrincipal(ctx context.Context, space tenant.Space, partyID, principalID string) (ParticipantRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	iter := s.participants(space, partyID).
		Where("principalId", "==", principalID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return ParticipantRecord{}, ErrParticipantNotFound
	}
	if err != nil {
		return ParticipantRecord{}, MapError(err)
	}
	return decodeParticipant(snap)
}

func (s *FirestoreStore) ListParticipants(ctx context.Context, space tenant.Space, partyID string) ([]ParticipantRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	iter := s.participants(space, partyID).OrderBy("joinedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []ParticipantRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, MapError(err)
		}
		participant, err := decodeParticipant(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, participant)
	}
	return out, nil
}

func (s *FirestoreStore) AdjustCredits(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) (ParticipantRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	ref := s.participants(space, partyID).Doc(participantID)
	var out ParticipantRecord

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if IsNotFound(err) {
				return ErrParticipantNotFound
			}
			return err
		}
		participant, err := decodeParticipant(snap)
		if err != nil {
			return err
		}
		if participant.BoostCredits+delta < 0 {
			return ErrInsufficientCredits
		}

		participant.BoostCredits += delta
		out = participant
		return tx.Update(ref, []firestore.Update{{Path: "boostCredits", Value: participant.BoostCredits}})
	})
	if err != nil {
		return ParticipantRecord{}, MapError(err)
	}
	return out, nil
}

func (s *FirestoreStore) AddScore(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) error {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	_, err := s.participants(space, partyID).Doc(participantID).Update(ctx, []firestore.Update{
		{Path: "score", Value: firestore.Increment(delta)},
	})
	if IsNotFound(err) {
		return ErrParticipantNotFound
	}
	return MapError(err)
}

func (s *FirestoreStore) txFindByPrincipal(tx *firestore.Transaction, space tenant.Space, partyID, principalID string) (ParticipantRecord, bool, error) {
	iter := tx.Documents(s.participants(space, partyID).
		Where("principalId", "==", principalID).
		Limit(1))
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return ParticipantRecord{}, false, nil
	}
	if err != nil {
		return ParticipantRecord{}, false, err
	}
	participant, err := decodeParticipant(snap)
	if err != nil {
		return ParticipantRecord{}, false, err
	}
	return participant, true, nil
}

func decodeParticipant(snap *firestore.DocumentSnapshot) (ParticipantRecord, error) {
	var participant ParticipantRecord
	if err := snap.DataTo(&participant); err != nil {
		return ParticipantRecord{}, fmt.Errorf("decode participant %s: %w", snap.Ref.ID, err)
	}
	return participant, nil
}
