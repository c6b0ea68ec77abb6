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

func (s *FirestoreStore) AddEntry(ctx context.Context, space tenant.Space, partyID string, entry QueueEntryRecord, maxSongsPerPerson int, allowDuplicates bool) error {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	entriesRef := s.entries(space, partyID)

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
		if party.Status != PartyActive {
			return ErrPartyNotActive
		}

		if !allowDuplicates {
			dup := tx.Documents(entriesRef.
				Where("videoId", "==", entry.VideoID).
				Where("status", "==", EntryQueued).
				Limit(1))
			_, err := dup.Next()
			dup.Stop()
			if err == nil {
				return ErrDuplicateSong
			}
			if !errors.Is(err, iterator.Done) {
				return err
			}
		}

		if maxSongsPerPerson > 0 {
			count := 0
			mine := tx.Documents(entriesRef.
				Where("requesterId", "==", entry.RequesterID).
				Where("status", "==", EntryQueued))
			for {
				_, err := mine.Next()
				if errors.Is(err, iterator.Done) {
					break
				}
				if err != nil {
					mine.Stop()
					return err
				}
				count++
			}
			mine.Stop()
			if count >= maxSongsPerPerson {
				return ErrSongLimitReached
			}
		}

		return tx.Create(entriesRef.Doc(entry.ID), entry)
	})
	return MapError(err)
}

func (s *FirestoreStore) GetEntry(ctx context.Context, space tenant.Space, partyID, entryID string) (QueueEntryRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	snap, err := s.entries(space, partyID).Doc(entryID).Get(ctx)
	if err != nil {
		if IsNotFound(err) {
			return QueueEntryRecord{}, ErrEntryNotFound
		}
		return QueueEntryRecord{}, MapError(err)
	}
	return decodeEntry(snap)
}

func (s *FirestoreStore) ListEntries(ctx context.Context, space tenant.Space, partyID string) ([]QueueEntryRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	iter := s.entries(space, partyID).Documents(ctx)
	defer iter.Stop()

	var out []QueueEntryRecord
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, MapError(err)
		}
		entry, err := decodeEntry(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

// BoostEntry flags the entry and debits the booster inside one transaction.
// Either both writes commit or neither does; a concurrent boost on the same
// entry is re-read by the retried transaction and rejected as already boosted.
func (s *FirestoreStore) BoostEntry(ctx context.Context, space tenant.Space, partyID, entryID, boosterID string, now time.Time) (QueueEntryRecord, int, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	entryRef := s.entries(space, partyID).Doc(entryID)
	boosterRef := s.participants(space, partyID).Doc(boosterID)

	var out QueueEntryRecord
	var remaining int

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

		entrySnap, err := tx.Get(entryRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrEntryNotFound
			}
			return err
		}
		entry, err := decodeEntry(entrySnap)
		if err != nil {
			return err
		}
		if entry.Status != EntryQueued {
			return ErrEntryNotQueued
		}
		if entry.Boosted {
			return ErrAlreadyBoosted
		}

		boosterSnap, err := tx.Get(boosterRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrParticipantNotFound
			}
			return err
		}
		booster, err := decodeParticipant(boosterSnap)
		if err != nil {
			return err
		}
		if booster.LeftAt != nil {
			return ErrParticipantNotFound
		}
		if booster.BoostCredits < 1 {
			return ErrInsufficientCredits
		}

		entry.Boosted = true
		entry.BoostCount++
		entry.BoostedAt = &now
		remaining = booster.BoostCredits - 1
		out = entry

		if err := tx.Update(entryRef, []firestore.Update{
			{Path: "boosted", Value: true},
			{Path: "boostCount", Value: entry.BoostCount},
			{Path: "boostedAt", Value: now},
		}); err != nil {
			return err
		}
		return tx.Update(boosterRef, []firestore.Update{
			{Path: "boostCredits", Value: remaining},
		})
	})
	if err != nil {
		return QueueEntryRecord{}, 0, MapError(err)
	}
	return out, remaining, nil
}

func (s *FirestoreStore) UpdateEntryStatus(ctx context.Context, space tenant.Space, partyID, entryID, target string, now time.Time) (QueueEntryRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	entryRef := s.entries(space, partyID).Doc(entryID)
	var out QueueEntryRecord

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

		entrySnap, err := tx.Get(entryRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrEntryNotFound
			}
			return err
		}
		entry, err := decodeEntry(entrySnap)
		if err != nil {
			return err
		}
		if !CanTransitionEntry(entry.Status, target) {
			return ErrInvalidEntryStatus
		}

		entry.Status = target
		updates := []firestore.Update{{Path: "status", Value: target}}
		if target == EntryPlayed {
			entry.PlayedAt = &now
			updates = append(updates, firestore.Update{Path: "playedAt", Value: now})
		}
		out = entry
		return tx.Update(entryRef, updates)
	})
	if err != nil {
		return QueueEntryRecord{}, MapError(err)
	}
	return out, nil
}

func (s *FirestoreStore) RemoveEntry(ctx context.Context, space tenant.Space, partyID, entryID, requesterID string) error {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	partyRef := s.parties(space).Doc(partyID)
	entryRef := s.entries(space, partyID).Doc(entryID)

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

		entrySnap, err := tx.Get(entryRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrEntryNotFound
			}
			return err
		}
		entry, err := decodeEntry(entrySnap)
		if err != nil {
			return err
		}
		if entry.RequesterID != requesterID {
			return ErrNotRequester
		}
		if entry.Status != EntryQueued {
			return ErrEntryNotQueued
		}

		return tx.Delete(entryRef)
	})
	return MapError(err)
}

func (s *FirestoreStore) AddPraise(ctx context.Context, space tenant.Space, partyID, entryID string, praise PraiseRecord) (QueueEntryRecord, error) {
	ctx, cancel := OpContext(ctx)
	defer cancel()

	entryRef := s.entries(space, partyID).Doc(entryID)
	var out QueueEntryRecord

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entrySnap, err := tx.Get(entryRef)
		if err != nil {
			if IsNotFound(err) {
				return ErrEntryNotFound
			}
			return err
		}
		entry, err := decodeEntry(entrySnap)
		if err != nil {
			return err
		}
		for _, p := range entry.Praises {
			if p.ContributorID == praise.ContributorID {
				return ErrAlreadyPraised
			}
		}

		entry.Praises = append(entry.Praises, praise)
		out = entry
		return tx.Update(entryRef, []firestore.Update{
			{Path: "praises", Value: entry.Praises},
		})
	})
	if err != nil {
		return QueueEntryRecord{}, MapError(err)
	}
	return out, nil
}

func decodeEntry(snap *firestore.DocumentSnapshot) (QueueEntryRecord, error) {
	var entry QueueEntryRecord
	if err := snap.DataTo(&entry); err != nil {
		return QueueEntryRecord{}, fmt.Errorf("decode queue entry %s: %w", snap.Ref.ID, err)
	}
	return entry, nil
}
