package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openmic-live/openmic/domains/participants/be/repo"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
)

// Domain sentinel errors.
var (
	ErrNotFound            = errors.New("participant not found")
	ErrPartyNotFound       = errors.New("party not found")
	ErrPartyNotJoinable    = errors.New("party is not accepting participants")
	ErrPartyFull           = errors.New("party is at capacity")
	ErrAlreadyLeft         = errors.New("participant already left")
	ErrNotAuthorized       = errors.New("caller may not act on this participant")
	ErrInsufficientCredits = errors.New("insufficient boost credits")
)

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Participant is the domain view of one principal's membership in a party.
type Participant struct {
	ID           string
	PartyID      string
	PrincipalID  string
	DisplayName  string
	Role         string
	BoostCredits int
	Score        int
	Anonymous    bool
	JoinedAt     time.Time
	LeftAt       *time.Time
}

// JoinInput is the payload for joining a party by code.
type JoinInput struct {
	Code        string
	DisplayName string
	Anonymous   bool
}

// PartyFinder is the slice of the party registry the ledger needs: resolving a
// join code and loading the settings that seed new memberships.
type PartyFinder interface {
	FindByCode(ctx context.Context, code string) (partysvc.Party, error)
	Get(ctx context.Context, partyID string) (partysvc.Party, error)
}

// Service defines the participant ledger operations.
type Service interface {
	// JoinByCode admits the caller to the party behind the code. The boolean
	// reports whether the caller was already in; re-joining is a no-op that
	// returns the existing membership.
	JoinByCode(ctx context.Context, sess session.Session, input JoinInput) (Participant, partysvc.Party, bool, error)
	Leave(ctx context.Context, sess session.Session, partyID string) (Participant, error)
	Get(ctx context.Context, partyID, participantID string) (Participant, error)
	FindByPrincipal(ctx context.Context, partyID, principalID string) (Participant, error)
	Roster(ctx context.Context, partyID string) ([]Participant, error)
	AdjustCredits(ctx context.Context, partyID, participantID string, delta int) (Participant, error)
	AddScore(ctx context.Context, partyID, participantID string, delta int) error
}

type service struct {
	repo    repo.Repository
	parties PartyFinder
	now     func() time.Time
}

// New constructs a participants Service.
func New(r repo.Repository, parties PartyFinder) Service {
	if r == nil {
		panic("participants repository is required")
	}
	if parties == nil {
		panic("party finder is required")
	}
	return &service{repo: r, parties: parties, now: time.Now}
}

func (s *service) JoinByCode(ctx context.Context, sess session.Session, input JoinInput) (Participant, partysvc.Party, bool, error) {
	if !sess.IsUser() {
		return Participant{}, partysvc.Party{}, false, ErrNotAuthorized
	}

	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = sess.DisplayName
	}
	if name == "" {
		return Participant{}, partysvc.Party{}, false, &ValidationError{Fields: map[string]string{"displayName": "display name is required"}}
	}

	party, err := s.parties.FindByCode(ctx, input.Code)
	if err != nil {
		if errors.Is(err, partysvc.ErrNotFound) {
			return Participant{}, partysvc.Party{}, false, ErrPartyNotFound
		}
		return Participant{}, partysvc.Party{}, false, fmt.Errorf("resolve party code: %w", err)
	}

	candidate := persistence.ParticipantRecord{
		ID:           uuid.NewString(),
		PartyID:      party.ID,
		PrincipalID:  sess.PrincipalID,
		DisplayName:  name,
		Role:         persistence.RoleGuest,
		BoostCredits: party.Settings.BoostsPerPerson,
		Anonymous:    input.Anonymous,
		JoinedAt:     s.now().UTC(),
	}

	record, already, err := s.repo.Join(ctx, party.ID, candidate)
	if err != nil {
		return Participant{}, partysvc.Party{}, false, mapStoreError(err)
	}
	return toParticipant(record), party, already, nil
}

func (s *service) Leave(ctx context.Context, sess session.Session, partyID string) (Participant, error) {
	if !sess.IsUser() {
		return Participant{}, ErrNotAuthorized
	}

	record, err := s.repo.FindByPrincipal(ctx, partyID, sess.PrincipalID)
	if err != nil {
		return Participant{}, mapStoreError(err)
	}

	left, err := s.repo.Leave(ctx, partyID, record.ID, s.now().UTC())
	if err != nil {
		return Participant{}, mapStoreError(err)
	}
	return toParticipant(left), nil
}

func (s *service) Get(ctx context.Context, partyID, participantID string) (Participant, error) {
	record, err := s.repo.Get(ctx, partyID, participantID)
	if err != nil {
		return Participant{}, mapStoreError(err)
	}
	return toParticipant(record), nil
}

func (s *service) FindByPrincipal(ctx context.Context, partyID, principalID string) (Participant, error) {
	record, err := s.repo.FindByPrincipal(ctx, partyID, principalID)
	if err != nil {
		return Participant{}, mapStoreError(err)
	}
	return toParticipant(record), nil
}

func (s *service) Roster(ctx context.Context, partyID string) ([]Participant, error) {
	records, err := s.repo.List(ctx, partyID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	roster := make([]Participant, 0, len(records))
	for _, record := range records {
		roster = append(roster, toParticipant(record))
	}
	return roster, nil
}

func (s *service) AdjustCredits(ctx context.Context, partyID, participantID string, delta int) (Participant, error) {
	record, err := s.repo.AdjustCredits(ctx, partyID, participantID, delta)
	if err != nil {
		return Participant{}, mapStoreError(err)
	}
	return toParticipant(record), nil
}

func (s *service) AddScore(ctx context.Context, partyID, participantID string, delta int) error {
	if err := s.repo.AddScore(ctx, partyID, participantID, delta); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func toParticipant(record persistence.ParticipantRecord) Participant {
	return Participant{
		ID:           record.ID,
		PartyID:      record.PartyID,
		PrincipalID:  record.PrincipalID,
		DisplayName:  record.DisplayName,
		Role:         record.Role,
		BoostCredits: record.BoostCredits,
		Score:        record.Score,
		Anonymous:    record.Anonymous,
		JoinedAt:     record.JoinedAt,
		LeftAt:       record.LeftAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPartyNotFound):
		return ErrPartyNotFound
	case errors.Is(err, persistence.ErrParticipantNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrPartyNotActive), errors.Is(err, persistence.ErrPartyEnded):
		return ErrPartyNotJoinable
	case errors.Is(err, persistence.ErrPartyFull):
		return ErrPartyFull
	case errors.Is(err, persistence.ErrAlreadyLeft):
		return ErrAlreadyLeft
	case errors.Is(err, persistence.ErrInsufficientCredits):
		return ErrInsufficientCredits
	default:
		return err
	}
}
