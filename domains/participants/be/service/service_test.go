package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	participantrepo "github.com/openmic-live/openmic/domains/participants/be/repo"
	"github.com/openmic-live/openmic/domains/participants/be/service"
	partyrepo "github.com/openmic-live/openmic/domains/parties/be/repo"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/session"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

type world struct {
	ctx          context.Context
	store        *persistence.MemoryStore
	parties      partysvc.Service
	participants service.Service
}

func newWorld(t *testing.T) *world {
	t.Helper()

	store := persistence.NewMemoryStore()
	parties := partysvc.New(partyrepo.NewStoreRepository(store))
	participants := service.New(participantrepo.NewStoreRepository(store), parties)

	ctx := tenant.WithSpace(context.Background(), tenant.Space{ID: "test-venue"})
	return &world{ctx: ctx, store: store, parties: parties, participants: participants}
}

func (w *world) createParty(t *testing.T, host string, settings *partysvc.Settings) partysvc.Party {
	t.Helper()

	sess := session.Session{ActorKind: session.ActorKindUser, PrincipalID: host, DisplayName: "Host"}
	party, err := w.parties.Create(w.ctx, sess, partysvc.CreateInput{Name: "Test Party", Settings: settings})
	require.NoError(t, err)
	return party
}

func guest(principal, name string) session.Session {
	return session.Session{ActorKind: session.ActorKindUser, PrincipalID: principal, DisplayName: name}
}

func TestJoinByCodeAdmitsGuest(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	p, got, already, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, party.ID, got.ID)
	require.Equal(t, persistence.RoleGuest, p.Role)
	require.Equal(t, "Dana", p.DisplayName)
	require.Equal(t, party.Settings.BoostsPerPerson, p.BoostCredits)
	require.Nil(t, p.LeftAt)
}

func TestJoinByCodeIsIdempotent(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	first, _, already, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)
	require.False(t, already)

	second, _, already, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)
	require.True(t, already)
	require.Equal(t, first.ID, second.ID)

	roster, err := w.participants.Roster(w.ctx, party.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2) // host + one guest
}

func TestJoinNormalizesCode(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	sloppy := " " + party.Code[:4] + party.Code[5:] + " " // no dash, padded
	_, got, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: sloppy})
	require.NoError(t, err)
	require.Equal(t, party.ID, got.ID)
}

func TestJoinUnknownCode(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	w.createParty(t, "host-1", nil)

	_, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: "ZZZZ-9999"})
	require.ErrorIs(t, err, service.ErrPartyNotFound)
}

func TestJoinFullParty(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", &partysvc.Settings{MaxParticipants: 2})

	_, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)

	_, _, _, err = w.participants.JoinByCode(w.ctx, guest("guest-2", "Eli"), service.JoinInput{Code: party.Code})
	require.ErrorIs(t, err, service.ErrPartyFull)
}

func TestJoinEndedParty(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	_, err := w.parties.End(w.ctx, guest("host-1", "Host"), party.ID)
	require.NoError(t, err)

	_, _, _, err = w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.ErrorIs(t, err, service.ErrPartyNotJoinable)
}

func TestJoinPausedParty(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	_, err := w.parties.Transition(w.ctx, guest("host-1", "Host"), party.ID, partysvc.StatusPaused)
	require.NoError(t, err)

	_, _, _, err = w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.ErrorIs(t, err, service.ErrPartyNotJoinable)
}

func TestJoinRejectsAnonymousSession(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	_, _, _, err := w.participants.JoinByCode(w.ctx, session.Anonymous("req-1"), service.JoinInput{Code: party.Code})
	require.ErrorIs(t, err, service.ErrNotAuthorized)
}

func TestLeaveAndRejoinKeepsBalance(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	p, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)

	spent, err := w.participants.AdjustCredits(w.ctx, party.ID, p.ID, -1)
	require.NoError(t, err)
	require.Equal(t, p.BoostCredits-1, spent.BoostCredits)

	left, err := w.participants.Leave(w.ctx, guest("guest-1", "Dana"), party.ID)
	require.NoError(t, err)
	require.NotNil(t, left.LeftAt)

	back, _, already, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, p.ID, back.ID)
	require.Equal(t, spent.BoostCredits, back.BoostCredits, "balance survives leave and rejoin")
	require.Nil(t, back.LeftAt)
}

func TestLeaveTwice(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	_, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)

	_, err = w.participants.Leave(w.ctx, guest("guest-1", "Dana"), party.ID)
	require.NoError(t, err)

	_, err = w.participants.Leave(w.ctx, guest("guest-1", "Dana"), party.ID)
	require.ErrorIs(t, err, service.ErrAlreadyLeft)
}

func TestLeaveWithoutJoining(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	_, err := w.participants.Leave(w.ctx, guest("stranger", "X"), party.ID)
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestAdjustCreditsNeverGoesNegative(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	p, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)

	_, err = w.participants.AdjustCredits(w.ctx, party.ID, p.ID, -(p.BoostCredits + 1))
	require.ErrorIs(t, err, service.ErrInsufficientCredits)

	unchanged, err := w.participants.Get(w.ctx, party.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.BoostCredits, unchanged.BoostCredits)
}

func TestRosterOrderedByJoinTime(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	for _, g := range []string{"guest-1", "guest-2", "guest-3"} {
		_, _, _, err := w.participants.JoinByCode(w.ctx, guest(g, g), service.JoinInput{Code: party.Code})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	roster, err := w.participants.Roster(w.ctx, party.ID)
	require.NoError(t, err)
	require.Len(t, roster, 4)
	require.Equal(t, "host-1", roster[0].PrincipalID)
	for i := 1; i < len(roster); i++ {
		require.False(t, roster[i].JoinedAt.Before(roster[i-1].JoinedAt))
	}
}

func TestScoreIsAdditive(t *testing.T) {
	t.Parallel()

	w := newWorld(t)
	party := w.createParty(t, "host-1", nil)

	p, _, _, err := w.participants.JoinByCode(w.ctx, guest("guest-1", "Dana"), service.JoinInput{Code: party.Code})
	require.NoError(t, err)

	require.NoError(t, w.participants.AddScore(w.ctx, party.ID, p.ID, 5))
	require.NoError(t, w.participants.AddScore(w.ctx, party.ID, p.ID, 3))

	got, err := w.participants.Get(w.ctx, party.ID, p.ID)
	require.NoError(t, err)
	require.Equal(t, 8, got.Score)
}
