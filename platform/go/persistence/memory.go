package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openmic-live/openmic/platform/go/tenant"
)

// MemoryStore is an in-memory Store for tests and local development. A single
// mutex serializes mutations, which gives the same effective guarantees the
// Firestore transactions provide: guards and writes happen as one unit.
type MemoryStore struct {
	mu           sync.Mutex
	parties      map[string]map[string]PartyRecord                   // tenant -> party id
	codes        map[string]map[string]string                        // tenant -> code -> party id
	participants map[string]map[string]map[string]ParticipantRecord  // tenant -> party id -> participant id
	entries      map[string]map[string]map[string]QueueEntryRecord   // tenant -> party id -> entry id
	subs         map[string]map[string]map[chan struct{}]struct{}    // tenant -> party id -> tick channels

	// BoostFailpoint, when set, runs between the credit debit and the entry
	// flag inside BoostEntry. Returning an error aborts the whole operation;
	// tests use it to prove neither write commits alone.
	BoostFailpoint func() error
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		parties:      make(map[string]map[string]PartyRecord),
		codes:        make(map[string]map[string]string),
		participants: make(map[string]map[string]map[string]ParticipantRecord),
		entries:      make(map[string]map[string]map[string]QueueEntryRecord),
		subs:         make(map[string]map[string]map[chan struct{}]struct{}),
	}
}

func (s *MemoryStore) CreateParty(ctx context.Context, space tenant.Space, party PartyRecord, host ParticipantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	codes := s.tenantCodes(space)
	if _, taken := codes[party.Code]; taken {
		return ErrCodeTaken
	}

	codes[party.Code] = party.ID
	s.tenantParties(space)[party.ID] = party
	s.partyParticipants(space, party.ID)[host.ID] = host
	s.notifyLocked(space, party.ID)
	return nil
}

func (s *MemoryStore) GetParty(ctx context.Context, space tenant.Space, partyID string) (PartyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getPartyLocked(space, partyID)
}

func (s *MemoryStore) GetPartyByCode(ctx context.Context, space tenant.Space, code string) (PartyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partyID, ok := s.tenantCodes(space)[code]
	if !ok {
		return PartyRecord{}, ErrPartyNotFound
	}
	return s.getPartyLocked(space, partyID)
}

func (s *MemoryStore) TransitionParty(ctx context.Context, space tenant.Space, partyID, target string, now time.Time) (PartyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return PartyRecord{}, err
	}

	if party.Status == PartyEnded && target == PartyEnded {
		return party, nil
	}
	if !CanTransitionParty(party.Status, target) {
		return PartyRecord{}, ErrInvalidPartyStatus
	}

	party.Status = target
	if target == PartyEnded {
		endedAt := now
		party.EndedAt = &endedAt
	}
	s.tenantParties(space)[partyID] = party
	s.notifyLocked(space, partyID)
	return party, nil
}

func (s *MemoryStore) ListStaleActiveParties(ctx context.Context, space tenant.Space, cutoff time.Time) ([]PartyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PartyRecord
	for _, party := range s.tenantParties(space) {
		if party.Status == PartyActive && party.CreatedAt.Before(cutoff) {
			out = append(out, party)
		}
	}
	return out, nil
}

func (s *MemoryStore) JoinParty(ctx context.Context, space tenant.Space, partyID string, candidate ParticipantRecord) (ParticipantRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return ParticipantRecord{}, false, err
	}
	if party.Status != PartyActive {
		return ParticipantRecord{}, false, ErrPartyNotActive
	}

	members := s.partyParticipants(space, partyID)
	for id, existing := range members {
		if existing.PrincipalID != candidate.PrincipalID {
			continue
		}
		if existing.LeftAt == nil {
			return existing, true, nil
		}

		if len(party.ParticipantIDs) >= party.Settings.MaxParticipants {
			return ParticipantRecord{}, false, ErrPartyFull
		}
		existing.LeftAt = nil
		existing.DisplayName = candidate.DisplayName
		existing.Anonymous = candidate.Anonymous
		members[id] = existing
		party.ParticipantIDs = appendUnique(party.ParticipantIDs, id)
		s.tenantParties(space)[partyID] = party
		s.notifyLocked(space, partyID)
		return existing, false, nil
	}

	if len(party.ParticipantIDs) >= party.Settings.MaxParticipants {
		return ParticipantRecord{}, false, ErrPartyFull
	}
	candidate.BoostCredits = party.Settings.BoostsPerPerson
	members[candidate.ID] = candidate
	party.ParticipantIDs = appendUnique(party.ParticipantIDs, candidate.ID)
	s.tenantParties(space)[partyID] = party
	s.notifyLocked(space, partyID)
	return candidate, false, nil
}

func (s *MemoryStore) LeaveParty(ctx context.Context, space tenant.Space, partyID, participantID string, now time.Time) (ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return ParticipantRecord{}, err
	}
	if party.Status == PartyEnded {
		return ParticipantRecord{}, ErrPartyEnded
	}

	members := s.partyParticipants(space, partyID)
	participant, ok := members[participantID]
	if !ok {
		return ParticipantRecord{}, ErrParticipantNotFound
	}
	if participant.LeftAt != nil {
		return ParticipantRecord{}, ErrAlreadyLeft
	}

	leftAt := now
	participant.LeftAt = &leftAt
	members[participantID] = participant
	party.ParticipantIDs = removeString(party.ParticipantIDs, participantID)
	s.tenantParties(space)[partyID] = party
	s.notifyLocked(space, partyID)
	return participant, nil
}

func (s *MemoryStore) GetParticipant(ctx context.Context, space tenant.Space, partyID, participantID string) (ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.partyParticipants(space, partyID)[participantID]
	if !ok {
		return ParticipantRecord{}, ErrParticipantNotFound
	}
	return participant, nil
}

func (s *MemoryStore) FindParticipantByPrincipal(ctx context.Context, space tenant.Space, partyID, principalID string) (ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, participant := range s.partyParticipants(space, partyID) {
		if participant.PrincipalID == principalID {
			return participant, nil
		}
	}
	return ParticipantRecord{}, ErrParticipantNotFound
}

func (s *MemoryStore) ListParticipants(ctx context.Context, space tenant.Space, partyID string) ([]ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.partyParticipants(space, partyID)
	out := make([]ParticipantRecord, 0, len(members))
	for _, participant := range members {
		out = append(out, participant)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *MemoryStore) AdjustCredits(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) (ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.partyParticipants(space, partyID)
	participant, ok := members[participantID]
	if !ok {
		return ParticipantRecord{}, ErrParticipantNotFound
	}
	if participant.BoostCredits+delta < 0 {
		return ParticipantRecord{}, ErrInsufficientCredits
	}

	participant.BoostCredits += delta
	members[participantID] = participant
	s.notifyLocked(space, partyID)
	return participant, nil
}

func (s *MemoryStore) AddScore(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := s.partyParticipants(space, partyID)
	participant, ok := members[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	participant.Score += delta
	members[participantID] = participant
	s.notifyLocked(space, partyID)
	return nil
}

func (s *MemoryStore) AddEntry(ctx context.Context, space tenant.Space, partyID string, entry QueueEntryRecord, maxSongsPerPerson int, allowDuplicates bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return err
	}
	if party.Status != PartyActive {
		return ErrPartyNotActive
	}

	queue := s.partyEntries(space, partyID)
	mine := 0
	for _, existing := range queue {
		if existing.Status != EntryQueued {
			continue
		}
		if !allowDuplicates && existing.VideoID == entry.VideoID {
			return ErrDuplicateSong
		}
		if existing.RequesterID == entry.RequesterID {
			mine++
		}
	}
	if maxSongsPerPerson > 0 && mine >= maxSongsPerPerson {
		return ErrSongLimitReached
	}

	queue[entry.ID] = entry
	s.notifyLocked(space, partyID)
	return nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, space tenant.Space, partyID, entryID string) (QueueEntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.partyEntries(space, partyID)[entryID]
	if !ok {
		return QueueEntryRecord{}, ErrEntryNotFound
	}
	return entry, nil
}

func (s *MemoryStore) ListEntries(ctx context.Context, space tenant.Space, partyID string) ([]QueueEntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.partyEntries(space, partyID)
	out := make([]QueueEntryRecord, 0, len(queue))
	for _, entry := range queue {
		out = append(out, entry)
	}
	return out, nil
}

func (s *MemoryStore) BoostEntry(ctx context.Context, space tenant.Space, partyID, entryID, boosterID string, now time.Time) (QueueEntryRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return QueueEntryRecord{}, 0, err
	}
	if party.Status == PartyEnded {
		return QueueEntryRecord{}, 0, ErrPartyEnded
	}

	queue := s.partyEntries(space, partyID)
	entry, ok := queue[entryID]
	if !ok {
		return QueueEntryRecord{}, 0, ErrEntryNotFound
	}
	if entry.Status != EntryQueued {
		return QueueEntryRecord{}, 0, ErrEntryNotQueued
	}
	if entry.Boosted {
		return QueueEntryRecord{}, 0, ErrAlreadyBoosted
	}

	members := s.partyParticipants(space, partyID)
	booster, ok := members[boosterID]
	if !ok || booster.LeftAt != nil {
		return QueueEntryRecord{}, 0, ErrParticipantNotFound
	}
	if booster.BoostCredits < 1 {
		return QueueEntryRecord{}, 0, ErrInsufficientCredits
	}

	// Stage both effects, then commit together. The failpoint sits between
	// them the way a crash would in a two-write implementation.
	booster.BoostCredits--
	if s.BoostFailpoint != nil {
		if err := s.BoostFailpoint(); err != nil {
			return QueueEntryRecord{}, 0, err
		}
	}
	boostedAt := now
	entry.Boosted = true
	entry.BoostCount++
	entry.BoostedAt = &boostedAt

	members[boosterID] = booster
	queue[entryID] = entry
	s.notifyLocked(space, partyID)
	return entry, booster.BoostCredits, nil
}

func (s *MemoryStore) UpdateEntryStatus(ctx context.Context, space tenant.Space, partyID, entryID, target string, now time.Time) (QueueEntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return QueueEntryRecord{}, err
	}
	if party.Status == PartyEnded {
		return QueueEntryRecord{}, ErrPartyEnded
	}

	queue := s.partyEntries(space, partyID)
	entry, ok := queue[entryID]
	if !ok {
		return QueueEntryRecord{}, ErrEntryNotFound
	}
	if !CanTransitionEntry(entry.Status, target) {
		return QueueEntryRecord{}, ErrInvalidEntryStatus
	}

	entry.Status = target
	if target == EntryPlayed {
		playedAt := now
		entry.PlayedAt = &playedAt
	}
	queue[entryID] = entry
	s.notifyLocked(space, partyID)
	return entry, nil
}

func (s *MemoryStore) RemoveEntry(ctx context.Context, space tenant.Space, partyID, entryID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	party, err := s.getPartyLocked(space, partyID)
	if err != nil {
		return err
	}
	if party.Status == PartyEnded {
		return ErrPartyEnded
	}

	queue := s.partyEntries(space, partyID)
	entry, ok := queue[entryID]
	if !ok {
		return ErrEntryNotFound
	}
	if entry.RequesterID != requesterID {
		return ErrNotRequester
	}
	if entry.Status != EntryQueued {
		return ErrEntryNotQueued
	}

	delete(queue, entryID)
	s.notifyLocked(space, partyID)
	return nil
}

func (s *MemoryStore) AddPraise(ctx context.Context, space tenant.Space, partyID, entryID string, praise PraiseRecord) (QueueEntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.partyEntries(space, partyID)
	entry, ok := queue[entryID]
	if !ok {
		return QueueEntryRecord{}, ErrEntryNotFound
	}
	for _, p := range entry.Praises {
		if p.ContributorID == praise.ContributorID {
			return QueueEntryRecord{}, ErrAlreadyPraised
		}
	}

	entry.Praises = append(entry.Praises, praise)
	queue[entryID] = entry
	s.notifyLocked(space, partyID)
	return entry, nil
}

func (s *MemoryStore) SubscribePartyChanges(ctx context.Context, space tenant.Space, partyID string) (<-chan struct{}, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byParty, ok := s.subs[space.ID]
	if !ok {
		byParty = make(map[string]map[chan struct{}]struct{})
		s.subs[space.ID] = byParty
	}
	ticks, ok := byParty[partyID]
	if !ok {
		ticks = make(map[chan struct{}]struct{})
		byParty[partyID] = ticks
	}

	ch := make(chan struct{}, 1)
	ticks[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(ticks, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

func (s *MemoryStore) notifyLocked(space tenant.Space, partyID string) {
	for ch := range s.subs[space.ID][partyID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *MemoryStore) getPartyLocked(space tenant.Space, partyID string) (PartyRecord, error) {
	party, ok := s.tenantParties(space)[partyID]
	if !ok {
		return PartyRecord{}, ErrPartyNotFound
	}
	return party, nil
}

func (s *MemoryStore) tenantParties(space tenant.Space) map[string]PartyRecord {
	m, ok := s.parties[space.ID]
	if !ok {
		m = make(map[string]PartyRecord)
		s.parties[space.ID] = m
	}
	return m
}

func (s *MemoryStore) tenantCodes(space tenant.Space) map[string]string {
	m, ok := s.codes[space.ID]
	if !ok {
		m = make(map[string]string)
		s.codes[space.ID] = m
	}
	return m
}

func (s *MemoryStore) partyParticipants(space tenant.Space, partyID string) map[string]ParticipantRecord {
	byParty, ok := s.participants[space.ID]
	if !ok {
		byParty = make(map[string]map[string]ParticipantRecord)
		s.participants[space.ID] = byParty
	}
	m, ok := byParty[partyID]
	if !ok {
		m = make(map[string]ParticipantRecord)
		byParty[partyID] = m
	}
	return m
}

func (s *MemoryStore) partyEntries(space tenant.Space, partyID string) map[string]QueueEntryRecord {
	byParty, ok := s.entries[space.ID]
	if !ok {
		byParty = make(map[string]map[string]QueueEntryRecord)
		s.entries[space.ID] = byParty
	}
	m, ok := byParty[partyID]
	if !ok {
		m = make(map[string]QueueEntryRecord)
		byParty[partyID] = m
	}
	return m
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]string, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

// removeString copies so that record snapshots handed to earlier readers keep
// their backing array intact.
func removeString(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
