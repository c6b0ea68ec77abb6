package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	participantsvc "github.com/openmic-live/openmic/domains/participants/be/service"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/domains/queue/be/repo"
	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
)

// EntryStatus is the queue entry lifecycle state.
type EntryStatus string

const (
	EntryQueued  EntryStatus = EntryStatus(persistence.EntryQueued)
	EntryPlaying EntryStatus = EntryStatus(persistence.EntryPlaying)
	EntryPlayed  EntryStatus = EntryStatus(persistence.EntryPlayed)
	EntrySkipped EntryStatus = EntryStatus(persistence.EntrySkipped)
)

// Score awarded to the requester for each praise their performance receives.
const praiseScore = 1

// Domain sentinel errors.
var (
	ErrPartyNotFound       = errors.New("party not found")
	ErrEntryNotFound       = errors.New("queue entry not found")
	ErrPartyClosed         = errors.New("party is not accepting queue changes")
	ErrNotInParty          = errors.New("caller is not a participant of this party")
	ErrNotAuthorized       = errors.New("caller may not manage the queue")
	ErrNotRequester        = errors.New("only the requester may remove the entry")
	ErrAlreadyBoosted      = errors.New("entry is already boosted")
	ErrEntryNotQueued      = errors.New("entry is no longer queued")
	ErrInsufficientCredits = errors.New("no boost credits left")
	ErrInvalidTransition   = errors.New("illegal entry transition")
	ErrAlreadyPraised      = errors.New("entry already praised by this participant")
	ErrDuplicateSong       = errors.New("song is already in the queue")
	ErrSongLimitReached    = errors.New("song limit reached for this participant")
)

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Praise is one reaction on an entry.
type Praise struct {
	ContributorID string
	Type          string
	CreatedAt     time.Time
}

// Entry is the domain view of one song request.
type Entry struct {
	ID                string
	PartyID           string
	VideoID           string
	Title             string
	Artist            string
	ThumbnailURL      string
	RequesterID       string
	RequesterName     string
	RequesterInitials string
	Boosted           bool
	BoostCount        int
	Status            EntryStatus
	AddedAt           time.Time
	BoostedAt         *time.Time
	PlayedAt          *time.Time
	Praises           []Praise
}

// AddInput is the payload for queueing a song.
type AddInput struct {
	VideoID      string
	Title        string
	Artist       string
	ThumbnailURL string
}

// PartyGetter is the slice of the party registry the queue needs.
type PartyGetter interface {
	Get(ctx context.Context, partyID string) (partysvc.Party, error)
}

// ParticipantDirectory resolves the caller to a party membership and keeps
// requester scores. The participants service satisfies it.
type ParticipantDirectory interface {
	FindByPrincipal(ctx context.Context, partyID, principalID string) (participantsvc.Participant, error)
	AddScore(ctx context.Context, partyID, participantID string, delta int) error
}

// Service defines the queue engine operations.
type Service interface {
	Add(ctx context.Context, sess session.Session, partyID string, input AddInput) (Entry, error)
	Get(ctx context.Context, partyID, entryID string) (Entry, error)
	// List returns the queue in canonical play order.
	List(ctx context.Context, partyID string) ([]Entry, error)
	// Boost flags the entry and debits one credit from the caller in a single
	// atomic unit. Returns the entry and the caller's remaining balance.
	Boost(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, int, error)
	MarkPlaying(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error)
	MarkPlayed(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error)
	Skip(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error)
	Remove(ctx context.Context, sess session.Session, partyID, entryID string) error
	Praise(ctx context.Context, sess session.Session, partyID, entryID, praiseType string) (Entry, error)
}

type service struct {
	repo         repo.Repository
	parties      PartyGetter
	participants ParticipantDirectory
	now          func() time.Time
}

// New constructs a queue Service.
func New(r repo.Repository, parties PartyGetter, participants ParticipantDirectory) Service {
	if r == nil {
		panic("queue repository is required")
	}
	if parties == nil {
		panic("party getter is required")
	}
	if participants == nil {
		panic("participant directory is required")
	}
	return &service{repo: r, parties: parties, participants: participants, now: time.Now}
}

func (s *service) Add(ctx context.Context, sess session.Session, partyID string, input AddInput) (Entry, error) {
	if !sess.IsUser() {
		return Entry{}, ErrNotAuthorized
	}

	fields := map[string]string{}
	videoID := strings.TrimSpace(input.VideoID)
	if videoID == "" {
		fields["videoId"] = "video id is required"
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		fields["title"] = "title is required"
	}
	if len(fields) > 0 {
		return Entry{}, &ValidationError{Fields: fields}
	}

	party, err := s.getParty(ctx, partyID)
	if err != nil {
		return Entry{}, err
	}

	member, name, err := s.requireMember(ctx, partyID, sess)
	if err != nil {
		return Entry{}, err
	}

	record := persistence.QueueEntryRecord{
		ID:                uuid.NewString(),
		PartyID:           partyID,
		VideoID:           videoID,
		Title:             title,
		Artist:            strings.TrimSpace(input.Artist),
		ThumbnailURL:      strings.TrimSpace(input.ThumbnailURL),
		RequesterID:       member.ID,
		RequesterName:     name,
		RequesterInitials: initials(name),
		Status:            persistence.EntryQueued,
		AddedAt:           s.now().UTC(),
		Praises:           []persistence.PraiseRecord{},
	}

	err = s.repo.Add(ctx, partyID, record, party.Settings.MaxSongsPerPerson, party.Settings.AllowDuplicates)
	if err != nil {
		return Entry{}, mapStoreError(err)
	}
	return toEntry(record), nil
}

func (s *service) Get(ctx context.Context, partyID, entryID string) (Entry, error) {
	record, err := s.repo.Get(ctx, partyID, entryID)
	if err != nil {
		return Entry{}, mapStoreError(err)
	}
	return toEntry(record), nil
}

func (s *service) List(ctx context.Context, partyID string) ([]Entry, error) {
	records, err := s.repo.List(ctx, partyID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		entries = append(entries, toEntry(record))
	}
	SortEntries(entries)
	return entries, nil
}

func (s *service) Boost(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, int, error) {
	if !sess.IsUser() {
		return Entry{}, 0, ErrNotAuthorized
	}

	member, _, err := s.requireMember(ctx, partyID, sess)
	if err != nil {
		return Entry{}, 0, err
	}

	record, remaining, err := s.repo.Boost(ctx, partyID, entryID, member.ID, s.now().UTC())
	if err != nil {
		return Entry{}, 0, mapStoreError(err)
	}
	return toEntry(record), remaining, nil
}

func (s *service) MarkPlaying(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error) {
	return s.transition(ctx, sess, partyID, entryID, persistence.EntryPlaying)
}

func (s *service) MarkPlayed(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error) {
	return s.transition(ctx, sess, partyID, entryID, persistence.EntryPlayed)
}

func (s *service) Skip(ctx context.Context, sess session.Session, partyID, entryID string) (Entry, error) {
	return s.transition(ctx, sess, partyID, entryID, persistence.EntrySkipped)
}

func (s *service) transition(ctx context.Context, sess session.Session, partyID, entryID, target string) (Entry, error) {
	party, err := s.getParty(ctx, partyID)
	if err != nil {
		return Entry{}, err
	}
	if !canManage(sess, party) {
		return Entry{}, ErrNotAuthorized
	}

	record, err := s.repo.UpdateStatus(ctx, partyID, entryID, target, s.now().UTC())
	if err != nil {
		return Entry{}, mapStoreError(err)
	}
	return toEntry(record), nil
}

func (s *service) Remove(ctx context.Context, sess session.Session, partyID, entryID string) error {
	if !sess.IsUser() {
		return ErrNotAuthorized
	}

	member, _, err := s.requireMember(ctx, partyID, sess)
	if err != nil {
		return err
	}

	if err := s.repo.Remove(ctx, partyID, entryID, member.ID); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func (s *service) Praise(ctx context.Context, sess session.Session, partyID, entryID, praiseType string) (Entry, error) {
	if !sess.IsUser() {
		return Entry{}, ErrNotAuthorized
	}
	praiseType = strings.TrimSpace(praiseType)
	if praiseType == "" {
		praiseType = "applause"
	}

	member, _, err := s.requireMember(ctx, partyID, sess)
	if err != nil {
		return Entry{}, err
	}

	record, err := s.repo.AddPraise(ctx, partyID, entryID, persistence.PraiseRecord{
		ContributorID: member.ID,
		Type:          praiseType,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return Entry{}, mapStoreError(err)
	}

	// Score bump is best-effort attribution, not part of the praise invariant.
	if err := s.participants.AddScore(ctx, partyID, record.RequesterID, praiseScore); err != nil {
		return Entry{}, fmt.Errorf("award praise score: %w", err)
	}
	return toEntry(record), nil
}

func (s *service) getParty(ctx context.Context, partyID string) (partysvc.Party, error) {
	party, err := s.parties.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, partysvc.ErrNotFound) {
			return partysvc.Party{}, ErrPartyNotFound
		}
		return partysvc.Party{}, fmt.Errorf("load party: %w", err)
	}
	return party, nil
}

func (s *service) requireMember(ctx context.Context, partyID string, sess session.Session) (participantsvc.Participant, string, error) {
	member, err := s.participants.FindByPrincipal(ctx, partyID, sess.PrincipalID)
	if err != nil {
		return participantsvc.Participant{}, "", ErrNotInParty
	}
	if member.LeftAt != nil {
		return participantsvc.Participant{}, "", ErrNotInParty
	}
	name := member.DisplayName
	if name == "" {
		name = sess.DisplayName
	}
	if name == "" {
		name = "Guest"
	}
	return member, name, nil
}

func canManage(sess session.Session, party partysvc.Party) bool {
	if sess.PrincipalID != "" && sess.PrincipalID == party.HostPrincipal {
		return true
	}
	return sess.HasRole(permission.RoleAdmin)
}

// initials derives up to two uppercase letters from a display name.
func initials(name string) string {
	var out []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsNumber(r) {
				out = append(out, unicode.ToUpper(r))
			}
			break
		}
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}

func toEntry(record persistence.QueueEntryRecord) Entry {
	praises := make([]Praise, 0, len(record.Praises))
	for _, p := range record.Praises {
		praises = append(praises, Praise{ContributorID: p.ContributorID, Type: p.Type, CreatedAt: p.CreatedAt})
	}
	return Entry{
		ID:                record.ID,
		PartyID:           record.PartyID,
		VideoID:           record.VideoID,
		Title:             record.Title,
		Artist:            record.Artist,
		ThumbnailURL:      record.ThumbnailURL,
		RequesterID:       record.RequesterID,
		RequesterName:     record.RequesterName,
		RequesterInitials: record.RequesterInitials,
		Boosted:           record.Boosted,
		BoostCount:        record.BoostCount,
		Status:            EntryStatus(record.Status),
		AddedAt:           record.AddedAt,
		BoostedAt:         record.BoostedAt,
		PlayedAt:          record.PlayedAt,
		Praises:           praises,
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPartyNotFound):
		return ErrPartyNotFound
	case errors.Is(err, persistence.ErrEntryNotFound):
		return ErrEntryNotFound
	case errors.Is(err, persistence.ErrPartyNotActive), errors.Is(err, persistence.ErrPartyEnded):
		return ErrPartyClosed
	case errors.Is(err, persistence.ErrParticipantNotFound):
		return ErrNotInParty
	case errors.Is(err, persistence.ErrAlreadyBoosted):
		return ErrAlreadyBoosted
	case errors.Is(err, persistence.ErrEntryNotQueued):
		return ErrEntryNotQueued
	case errors.Is(err, persistence.ErrInsufficientCredits):
		return ErrInsufficientCredits
	case errors.Is(err, persistence.ErrInvalidEntryStatus):
		return ErrInvalidTransition
	case errors.Is(err, persistence.ErrNotRequester):
		return ErrNotRequester
	case errors.Is(err, persistence.ErrAlreadyPraised):
		return ErrAlreadyPraised
	case errors.Is(err, persistence.ErrDuplicateSong):
		return ErrDuplicateSong
	case errors.Is(err, persistence.ErrSongLimitReached):
		return ErrSongLimitReached
	default:
		return err
	}
}
