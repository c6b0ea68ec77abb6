package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openmic-live/openmic/platform/go/permission"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
)

type mockRepository struct {
	CreateFunc          func(ctx context.Context, party persistence.PartyRecord, host persistence.ParticipantRecord) error
	GetFunc             func(ctx context.Context, partyID string) (persistence.PartyRecord, error)
	GetByCodeFunc       func(ctx context.Context, code string) (persistence.PartyRecord, error)
	TransitionFunc      func(ctx context.Context, partyID, target string, now time.Time) (persistence.PartyRecord, error)
	ListStaleActiveFunc func(ctx context.Context, cutoff time.Time) ([]persistence.PartyRecord, error)
}

func (m *mockRepository) Create(ctx context.Context, party persistence.PartyRecord, host persistence.ParticipantRecord) error {
	return m.CreateFunc(ctx, party, host)
}

func (m *mockRepository) Get(ctx context.Context, partyID string) (persistence.PartyRecord, error) {
	return m.GetFunc(ctx, partyID)
}

func (m *mockRepository) GetByCode(ctx context.Context, code string) (persistence.PartyRecord, error) {
	return m.GetByCodeFunc(ctx, code)
}

func (m *mockRepository) Transition(ctx context.Context, partyID, target string, now time.Time) (persistence.PartyRecord, error) {
	return m.TransitionFunc(ctx, partyID, target, now)
}

func (m *mockRepository) ListStaleActive(ctx context.Context, cutoff time.Time) ([]persistence.PartyRecord, error) {
	return m.ListStaleActiveFunc(ctx, cutoff)
}

func userSession(principal string) session.Session {
	return session.Session{
		ActorKind:   session.ActorKindUser,
		PrincipalID: principal,
		DisplayName: "Sam",
		Roles:       []permission.Role{permission.RoleGuest},
	}
}

func TestCreateSeedsHostAndDefaults(t *testing.T) {
	t.Parallel()

	var gotParty persistence.PartyRecord
	var gotHost persistence.ParticipantRecord
	repo := &mockRepository{
		CreateFunc: func(_ context.Context, party persistence.PartyRecord, host persistence.ParticipantRecord) error {
			gotParty = party
			gotHost = host
			return nil
		},
	}

	svc := New(repo)
	party, err := svc.Create(context.Background(), userSession("principal-1"), CreateInput{Name: "Friday Night"})
	require.NoError(t, err)

	require.Equal(t, "Friday Night", party.Name)
	require.Equal(t, StatusActive, party.Status)
	require.Equal(t, DefaultSettings(), party.Settings)
	require.Regexp(t, codePattern, party.Code)

	require.Equal(t, persistence.RoleHost, gotHost.Role)
	require.Equal(t, "principal-1", gotHost.PrincipalID)
	require.Equal(t, DefaultSettings().BoostsPerPerson, gotHost.BoostCredits)
	require.Equal(t, gotParty.HostParticipantID, gotHost.ID)
	require.Equal(t, []string{gotHost.ID}, gotParty.ParticipantIDs)
}

func TestCreateMergesSettings(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		CreateFunc: func(_ context.Context, _ persistence.PartyRecord, _ persistence.ParticipantRecord) error {
			return nil
		},
	}

	svc := New(repo)
	party, err := svc.Create(context.Background(), userSession("principal-1"), CreateInput{
		Name:     "Duets",
		Settings: &Settings{MaxParticipants: 8, AllowDuplicates: true},
	})
	require.NoError(t, err)

	require.Equal(t, 8, party.Settings.MaxParticipants)
	require.True(t, party.Settings.AllowDuplicates)
	require.Equal(t, DefaultSettings().BoostsPerPerson, party.Settings.BoostsPerPerson)
	require.Equal(t, DefaultSettings().MaxSongsPerPerson, party.Settings.MaxSongsPerPerson)
}

func TestCreateRejectsAnonymous(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Create(context.Background(), session.Anonymous("req-1"), CreateInput{Name: "Friday"})
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestCreateValidatesName(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.Create(context.Background(), userSession("principal-1"), CreateInput{Name: "   "})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "name")
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	t.Parallel()

	attempts := 0
	codes := map[string]bool{}
	repo := &mockRepository{
		CreateFunc: func(_ context.Context, party persistence.PartyRecord, _ persistence.ParticipantRecord) error {
			attempts++
			codes[party.Code] = true
			if attempts < 3 {
				return persistence.ErrCodeTaken
			}
			return nil
		},
	}

	svc := New(repo)
	_, err := svc.Create(context.Background(), userSession("principal-1"), CreateInput{Name: "Friday"})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.Len(t, codes, 3, "each attempt must carry a fresh code")
}

func TestCreateExhaustsCodeRetries(t *testing.T) {
	t.Parallel()

	attempts := 0
	repo := &mockRepository{
		CreateFunc: func(_ context.Context, _ persistence.PartyRecord, _ persistence.ParticipantRecord) error {
			attempts++
			return persistence.ErrCodeTaken
		},
	}

	svc := New(repo)
	_, err := svc.Create(context.Background(), userSession("principal-1"), CreateInput{Name: "Friday"})
	require.ErrorIs(t, err, ErrCodeExhausted)
	require.Equal(t, codeAttempts, attempts)
}

func TestFindByCodeNormalizesInput(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		GetByCodeFunc: func(_ context.Context, code string) (persistence.PartyRecord, error) {
			require.Equal(t, "AB12-CD34", code)
			return persistence.PartyRecord{ID: "party-1", Code: code, Status: persistence.PartyActive}, nil
		},
	}

	svc := New(repo)
	party, err := svc.FindByCode(context.Background(), " ab12cd34 ")
	require.NoError(t, err)
	require.Equal(t, "party-1", party.ID)
}

func TestFindByCodeMalformedIsNotFound(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})
	_, err := svc.FindByCode(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionRequiresHostOrAdmin(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		GetFunc: func(_ context.Context, partyID string) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{ID: partyID, HostPrincipal: "host-1", Status: persistence.PartyActive}, nil
		},
		TransitionFunc: func(_ context.Context, partyID, target string, _ time.Time) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{ID: partyID, HostPrincipal: "host-1", Status: target}, nil
		},
	}

	svc := New(repo)

	_, err := svc.Transition(context.Background(), userSession("someone-else"), "party-1", StatusPaused)
	require.ErrorIs(t, err, ErrNotAuthorized)

	party, err := svc.Transition(context.Background(), userSession("host-1"), "party-1", StatusPaused)
	require.NoError(t, err)
	require.Equal(t, StatusPaused, party.Status)

	admin := userSession("admin-1")
	admin.Roles = []permission.Role{permission.RoleAdmin}
	party, err = svc.Transition(context.Background(), admin, "party-1", StatusEnded)
	require.NoError(t, err)
	require.Equal(t, StatusEnded, party.Status)
}

func TestTransitionMapsStoreErrors(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		GetFunc: func(_ context.Context, partyID string) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{ID: partyID, HostPrincipal: "host-1", Status: persistence.PartyEnded}, nil
		},
		TransitionFunc: func(_ context.Context, _, _ string, _ time.Time) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{}, persistence.ErrInvalidPartyStatus
		},
	}

	svc := New(repo)
	_, err := svc.Transition(context.Background(), userSession("host-1"), "party-1", StatusPaused)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestEndUsesSystemSession(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		GetFunc: func(_ context.Context, partyID string) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{ID: partyID, HostPrincipal: "host-1", Status: persistence.PartyActive}, nil
		},
		TransitionFunc: func(_ context.Context, partyID, target string, _ time.Time) (persistence.PartyRecord, error) {
			require.Equal(t, persistence.PartyEnded, target)
			return persistence.PartyRecord{ID: partyID, Status: target}, nil
		},
	}

	svc := New(repo)
	party, err := svc.End(context.Background(), session.System("sweep-1"), "party-1")
	require.NoError(t, err)
	require.Equal(t, StatusEnded, party.Status)
}

func TestGetUnknownPartyIsNotFound(t *testing.T) {
	t.Parallel()

	repo := &mockRepository{
		GetFunc: func(_ context.Context, _ string) (persistence.PartyRecord, error) {
			return persistence.PartyRecord{}, persistence.ErrPartyNotFound
		},
	}

	svc := New(repo)
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
