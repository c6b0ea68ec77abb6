package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openmic-live/openmic/domains/parties/be/repo"
	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
)

// Status is the party lifecycle state.
type Status string

const (
	StatusActive Status = Status(persistence.PartyActive)
	StatusPaused Status = Status(persistence.PartyPaused)
	StatusEnded  Status = Status(persistence.PartyEnded)
)

// Domain sentinel errors.
var (
	ErrNotFound          = errors.New("party not found")
	ErrInvalidTransition = errors.New("illegal party transition")
	ErrNotAuthorized     = errors.New("caller may not manage this party")
	ErrCodeExhausted     = errors.New("could not reserve a unique party code")
)

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields map[string]string
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Settings are the per-party knobs, fixed at creation.
type Settings struct {
	MaxParticipants   int
	BoostsPerPerson   int
	MaxSongsPerPerson int
	AllowDuplicates   bool
	RequireApproval   bool
}

// DefaultSettings returns the values used when the host leaves a knob unset.
func DefaultSettings() Settings {
	return Settings{
		MaxParticipants:   50,
		BoostsPerPerson:   3,
		MaxSongsPerPerson: 10,
		AllowDuplicates:   false,
		RequireApproval:   false,
	}
}

// Party is the domain view of a party aggregate.
type Party struct {
	ID                string
	Code              string
	Name              string
	HostPrincipal     string
	HostParticipantID string
	Status            Status
	Settings          Settings
	ParticipantIDs    []string
	CreatedAt         time.Time
	StartedAt         time.Time
	EndedAt           *time.Time
}

// CreateInput is the payload for creating a party.
type CreateInput struct {
	Name            string
	HostDisplayName string
	Settings        *Settings
}

// Service defines the party registry operations.
type Service interface {
	Create(ctx context.Context, sess session.Session, input CreateInput) (Party, error)
	Get(ctx context.Context, partyID string) (Party, error)
	FindByCode(ctx context.Context, code string) (Party, error)
	Transition(ctx context.Context, sess session.Session, partyID string, target Status) (Party, error)
	End(ctx context.Context, sess session.Session, partyID string) (Party, error)
	ListStaleActive(ctx context.Context, cutoff time.Time) ([]Party, error)
}

const codeAttempts = 5

type service struct {
	repo repo.Repository
	now  func() time.Time
}

// New constructs a parties Service backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("parties repository is required")
	}
	return &service{repo: r, now: time.Now}
}

func (s *service) Create(ctx context.Context, sess session.Session, input CreateInput) (Party, error) {
	if !sess.IsUser() {
		return Party{}, ErrNotAuthorized
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Party{}, &ValidationError{Fields: map[string]string{"name": "name is required"}}
	}

	hostName := strings.TrimSpace(input.HostDisplayName)
	if hostName == "" {
		hostName = sess.DisplayName
	}
	if hostName == "" {
		return Party{}, &ValidationError{Fields: map[string]string{"hostDisplayName": "host display name is required"}}
	}

	settings := DefaultSettings()
	if input.Settings != nil {
		settings = mergeSettings(settings, *input.Settings)
	}

	now := s.now().UTC()
	hostID := uuid.NewString()
	partyID := uuid.NewString()

	host := persistence.ParticipantRecord{
		ID:           hostID,
		PartyID:      partyID,
		PrincipalID:  sess.PrincipalID,
		DisplayName:  hostName,
		Role:         persistence.RoleHost,
		BoostCredits: settings.BoostsPerPerson,
		JoinedAt:     now,
	}

	// The code reservation can lose to a concurrent creation; retry with a
	// fresh code a bounded number of times before reporting the party
	// service as temporarily unavailable.
	for attempt := 0; attempt < codeAttempts; attempt++ {
		record := persistence.PartyRecord{
			ID:                partyID,
			Code:              NewCode(),
			Name:              name,
			HostPrincipal:     sess.PrincipalID,
			HostParticipantID: hostID,
			Status:            persistence.PartyActive,
			Settings:          toSettingsRecord(settings),
			ParticipantIDs:    []string{hostID},
			CreatedAt:         now,
			StartedAt:         now,
		}

		err := s.repo.Create(ctx, record, host)
		if errors.Is(err, persistence.ErrCodeTaken) {
			continue
		}
		if err != nil {
			return Party{}, fmt.Errorf("create party: %w", err)
		}
		return toParty(record), nil
	}

	return Party{}, ErrCodeExhausted
}

func (s *service) Get(ctx context.Context, partyID string) (Party, error) {
	if partyID == "" {
		return Party{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, partyID)
	if err != nil {
		return Party{}, mapStoreError(err)
	}
	return toParty(record), nil
}

func (s *service) FindByCode(ctx context.Context, code string) (Party, error) {
	canonical, ok := NormalizeCode(code)
	if !ok {
		// A malformed code can never match a party; treat it like a miss so
		// the caller sees one consistent "check your code" outcome.
		return Party{}, ErrNotFound
	}

	record, err := s.repo.GetByCode(ctx, canonical)
	if err != nil {
		return Party{}, mapStoreError(err)
	}
	return toParty(record), nil
}

func (s *service) Transition(ctx context.Context, sess session.Session, partyID string, target Status) (Party, error) {
	party, err := s.Get(ctx, partyID)
	if err != nil {
		return Party{}, err
	}
	if !canManage(sess, party) {
		return Party{}, ErrNotAuthorized
	}

	record, err := s.repo.Transition(ctx, partyID, string(target), s.now().UTC())
	if err != nil {
		return Party{}, mapStoreError(err)
	}
	return toParty(record), nil
}

func (s *service) End(ctx context.Context, sess session.Session, partyID string) (Party, error) {
	return s.Transition(ctx, sess, partyID, StatusEnded)
}

func (s *service) ListStaleActive(ctx context.Context, cutoff time.Time) ([]Party, error) {
	records, err := s.repo.ListStaleActive(ctx, cutoff)
	if err != nil {
		return nil, mapStoreError(err)
	}

	parties := make([]Party, 0, len(records))
	for _, record := range records {
		parties = append(parties, toParty(record))
	}
	return parties, nil
}

func canManage(sess session.Session, party Party) bool {
	if sess.PrincipalID != "" && sess.PrincipalID == party.HostPrincipal {
		return true
	}
	return sess.HasRole(permission.RoleAdmin)
}

func mergeSettings(base, override Settings) Settings {
	if override.MaxParticipants > 0 {
		base.MaxParticipants = override.MaxParticipants
	}
	if override.BoostsPerPerson > 0 {
		base.BoostsPerPerson = override.BoostsPerPerson
	}
	if override.MaxSongsPerPerson > 0 {
		base.MaxSongsPerPerson = override.MaxSongsPerPerson
	}
	base.AllowDuplicates = override.AllowDuplicates
	base.RequireApproval = override.RequireApproval
	return base
}

func toSettingsRecord(s Settings) persistence.SettingsRecord {
	return persistence.SettingsRecord{
		MaxParticipants:   s.MaxParticipants,
		BoostsPerPerson:   s.BoostsPerPerson,
		MaxSongsPerPerson: s.MaxSongsPerPerson,
		AllowDuplicates:   s.AllowDuplicates,
		RequireApproval:   s.RequireApproval,
	}
}

func toSettings(record persistence.SettingsRecord) Settings {
	return Settings{
		MaxParticipants:   record.MaxParticipants,
		BoostsPerPerson:   record.BoostsPerPerson,
		MaxSongsPerPerson: record.MaxSongsPerPerson,
		AllowDuplicates:   record.AllowDuplicates,
		RequireApproval:   record.RequireApproval,
	}
}

func toParty(record persistence.PartyRecord) Party {
	return Party{
		ID:                record.ID,
		Code:              record.Code,
		Name:              record.Name,
		HostPrincipal:     record.HostPrincipal,
		HostParticipantID: record.HostParticipantID,
		Status:            Status(record.Status),
		Settings:          toSettings(record.Settings),
		ParticipantIDs:    record.ParticipantIDs,
		CreatedAt:         record.CreatedAt,
		StartedAt:         record.StartedAt,
		EndedAt:           record.EndedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrPartyNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrInvalidPartyStatus):
		return ErrInvalidTransition
	default:
		return err
	}
}
