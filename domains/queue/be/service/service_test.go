package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	participantrepo "github.com/openmic-live/openmic/domains/participants/be/repo"
	participantsvc "github.com/openmic-live/openmic/domains/participants/be/service"
	partyrepo "github.com/openmic-live/openmic/domains/parties/be/repo"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	queuerepo "github.com/openmic-live/openmic/domains/queue/be/repo"
	"github.com/openmic-live/openmic/domains/queue/be/service"
	"github.com/openmic-live/openmic/platform/go/session"
	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

type world struct {
	ctx          context.Context
	store        *persistence.MemoryStore
	parties      partysvc.Service
	participants participantsvc.Service
	queue        service.Service
	party        partysvc.Party
	host         session.Session
}

func newWorld(t *testing.T, settings *partysvc.Settings) *world {
	t.Helper()

	store := persistence.NewMemoryStore()
	parties := partysvc.New(partyrepo.NewStoreRepository(store))
	participants := participantsvc.New(participantrepo.NewStoreRepository(store), parties)
	queue := service.New(queuerepo.NewStoreRepository(store), parties, participants)

	ctx := tenant.WithSpace(context.Background(), tenant.Space{ID: "test-venue"})
	host := session.Session{ActorKind: session.ActorKindUser, PrincipalID: "host-1", DisplayName: "Morgan Host"}

	party, err := parties.Create(ctx, host, partysvc.CreateInput{Name: "Open Mic", Settings: settings})
	require.NoError(t, err)

	return &world{ctx: ctx, store: store, parties: parties, participants: participants, queue: queue, party: party, host: host}
}

func (w *world) join(t *testing.T, principal, name string) participantsvc.Participant {
	t.Helper()

	sess := session.Session{ActorKind: session.ActorKindUser, PrincipalID: principal, DisplayName: name}
	p, _, _, err := w.participants.JoinByCode(w.ctx, sess, participantsvc.JoinInput{Code: w.party.Code})
	require.NoError(t, err)
	return p
}

func sess(principal, name string) session.Session {
	return session.Session{ActorKind: session.ActorKindUser, PrincipalID: principal, DisplayName: name}
}

func song(videoID, title string) service.AddInput {
	return service.AddInput{VideoID: videoID, Title: title, Artist: "Unknown"}
}

func TestAddEntrySnapshotsRequester(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	guest := w.join(t, "guest-1", "Dana Jones")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana Jones"), w.party.ID, song("vid-1", "Bohemian Rhapsody"))
	require.NoError(t, err)

	require.Equal(t, service.EntryQueued, entry.Status)
	require.Equal(t, guest.ID, entry.RequesterID)
	require.Equal(t, "Dana Jones", entry.RequesterName)
	require.Equal(t, "DJ", entry.RequesterInitials)
	require.False(t, entry.Boosted)
}

func TestAddRequiresMembership(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)

	_, err := w.queue.Add(w.ctx, sess("stranger", "X"), w.party.ID, song("vid-1", "Song"))
	require.ErrorIs(t, err, service.ErrNotInParty)
}

func TestAddValidatesInput(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")

	_, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, service.AddInput{})

	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "videoId")
	require.Contains(t, verr.Fields, "title")
}

func TestAddRejectsDuplicateSong(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil) // AllowDuplicates defaults to false
	w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	_, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	_, err = w.queue.Add(w.ctx, sess("guest-2", "Eli"), w.party.ID, song("vid-1", "Song"))
	require.ErrorIs(t, err, service.ErrDuplicateSong)
}

func TestAddAllowsDuplicateWhenEnabled(t *testing.T) {
	t.Parallel()

	w := newWorld(t, &partysvc.Settings{AllowDuplicates: true})
	w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	_, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	_, err = w.queue.Add(w.ctx, sess("guest-2", "Eli"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)
}

func TestAddEnforcesSongLimit(t *testing.T) {
	t.Parallel()

	w := newWorld(t, &partysvc.Settings{MaxSongsPerPerson: 2})
	w.join(t, "guest-1", "Dana")

	_, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "One"))
	require.NoError(t, err)
	_, err = w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-2", "Two"))
	require.NoError(t, err)

	_, err = w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-3", "Three"))
	require.ErrorIs(t, err, service.ErrSongLimitReached)
}

func TestAddToEndedParty(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")

	_, err := w.parties.End(w.ctx, w.host, w.party.ID)
	require.NoError(t, err)

	_, err = w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.ErrorIs(t, err, service.ErrPartyClosed)
}

func TestBoostDebitsOneCredit(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	guest := w.join(t, "guest-1", "Dana")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	boosted, remaining, err := w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.NoError(t, err)
	require.True(t, boosted.Boosted)
	require.Equal(t, 1, boosted.BoostCount)
	require.NotNil(t, boosted.BoostedAt)
	require.Equal(t, guest.BoostCredits-1, remaining)

	after, err := w.participants.Get(w.ctx, w.party.ID, guest.ID)
	require.NoError(t, err)
	require.Equal(t, remaining, after.BoostCredits)
}

func TestBoostTwiceFails(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	_, _, err = w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.NoError(t, err)

	_, _, err = w.queue.Boost(w.ctx, sess("guest-2", "Eli"), w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrAlreadyBoosted)
}

func TestBoostWithoutCredits(t *testing.T) {
	t.Parallel()

	w := newWorld(t, &partysvc.Settings{BoostsPerPerson: 1, MaxSongsPerPerson: 5})
	guest := w.join(t, "guest-1", "Dana")

	first, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "One"))
	require.NoError(t, err)
	second, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-2", "Two"))
	require.NoError(t, err)

	_, remaining, err := w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	_, _, err = w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, second.ID)
	require.ErrorIs(t, err, service.ErrInsufficientCredits)

	after, err := w.participants.Get(w.ctx, w.party.ID, guest.ID)
	require.NoError(t, err)
	require.Equal(t, 0, after.BoostCredits)
}

func TestBoostFailureLeavesBothSidesUntouched(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	guest := w.join(t, "guest-1", "Dana")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	boom := errors.New("storage went away")
	w.store.BoostFailpoint = func() error { return boom }

	_, _, err = w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.ErrorIs(t, err, boom)

	// Neither the debit nor the flag may survive a failed boost.
	after, err := w.participants.Get(w.ctx, w.party.ID, guest.ID)
	require.NoError(t, err)
	require.Equal(t, guest.BoostCredits, after.BoostCredits)

	got, err := w.queue.Get(w.ctx, w.party.ID, entry.ID)
	require.NoError(t, err)
	require.False(t, got.Boosted)
	require.Zero(t, got.BoostCount)

	w.store.BoostFailpoint = nil
	_, remaining, err := w.queue.Boost(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, guest.BoostCredits-1, remaining)
}

func TestEntryLifecycleHostOnly(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	_, err = w.queue.MarkPlaying(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrNotAuthorized)

	playing, err := w.queue.MarkPlaying(w.ctx, w.host, w.party.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, service.EntryPlaying, playing.Status)

	played, err := w.queue.MarkPlayed(w.ctx, w.host, w.party.ID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, service.EntryPlayed, played.Status)
	require.NotNil(t, played.PlayedAt)

	// Played is terminal.
	_, err = w.queue.MarkPlaying(w.ctx, w.host, w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransition)
	_, err = w.queue.Skip(w.ctx, w.host, w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrInvalidTransition)
}

func TestSkipFromQueuedAndPlaying(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")

	first, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "One"))
	require.NoError(t, err)
	second, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-2", "Two"))
	require.NoError(t, err)

	skipped, err := w.queue.Skip(w.ctx, w.host, w.party.ID, first.ID)
	require.NoError(t, err)
	require.Equal(t, service.EntrySkipped, skipped.Status)

	_, err = w.queue.MarkPlaying(w.ctx, w.host, w.party.ID, second.ID)
	require.NoError(t, err)
	skipped, err = w.queue.Skip(w.ctx, w.host, w.party.ID, second.ID)
	require.NoError(t, err)
	require.Equal(t, service.EntrySkipped, skipped.Status)
}

func TestRemoveIsRequesterOnly(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	err = w.queue.Remove(w.ctx, sess("guest-2", "Eli"), w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrNotRequester)

	err = w.queue.Remove(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.NoError(t, err)

	_, err = w.queue.Get(w.ctx, w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrEntryNotFound)
}

func TestRemovePlayingEntryFails(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	w.join(t, "guest-1", "Dana")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	_, err = w.queue.MarkPlaying(w.ctx, w.host, w.party.ID, entry.ID)
	require.NoError(t, err)

	err = w.queue.Remove(w.ctx, sess("guest-1", "Dana"), w.party.ID, entry.ID)
	require.ErrorIs(t, err, service.ErrEntryNotQueued)
}

func TestPraiseOncePerParticipantAndScores(t *testing.T) {
	t.Parallel()

	w := newWorld(t, nil)
	dana := w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	entry, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "Song"))
	require.NoError(t, err)

	praised, err := w.queue.Praise(w.ctx, sess("guest-2", "Eli"), w.party.ID, entry.ID, "fire")
	require.NoError(t, err)
	require.Len(t, praised.Praises, 1)
	require.Equal(t, "fire", praised.Praises[0].Type)

	_, err = w.queue.Praise(w.ctx, sess("guest-2", "Eli"), w.party.ID, entry.ID, "fire")
	require.ErrorIs(t, err, service.ErrAlreadyPraised)

	requester, err := w.participants.Get(w.ctx, w.party.ID, dana.ID)
	require.NoError(t, err)
	require.Equal(t, 1, requester.Score)
}

func TestListCanonicalOrder(t *testing.T) {
	t.Parallel()

	w := newWorld(t, &partysvc.Settings{MaxSongsPerPerson: 10})
	w.join(t, "guest-1", "Dana")
	w.join(t, "guest-2", "Eli")

	first, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-1", "One"))
	require.NoError(t, err)
	second, err := w.queue.Add(w.ctx, sess("guest-1", "Dana"), w.party.ID, song("vid-2", "Two"))
	require.NoError(t, err)
	third, err := w.queue.Add(w.ctx, sess("guest-2", "Eli"), w.party.ID, song("vid-3", "Three"))
	require.NoError(t, err)

	// Boosting the last request jumps it over the FIFO block.
	_, _, err = w.queue.Boost(w.ctx, sess("guest-2", "Eli"), w.party.ID, third.ID)
	require.NoError(t, err)

	entries, err := w.queue.List(w.ctx, w.party.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, third.ID, entries[0].ID)
	require.Equal(t, first.ID, entries[1].ID)
	require.Equal(t, second.ID, entries[2].ID)
}
