package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ts(sec int) time.Time {
	return time.Date(2026, 3, 14, 20, 0, sec, 0, time.UTC)
}

func tsp(sec int) *time.Time {
	t := ts(sec)
	return &t
}

func TestSortEntriesBoostedBeforeQueued(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{ID: "a", Status: EntryQueued, AddedAt: ts(1)},
		{ID: "b", Status: EntryQueued, AddedAt: ts(5), Boosted: true, BoostedAt: tsp(10)},
		{ID: "c", Status: EntryQueued, AddedAt: ts(2)},
	}

	SortEntries(entries)
	require.Equal(t, []string{"b", "a", "c"}, ids(entries))
}

func TestSortEntriesBoostedByBoostTime(t *testing.T) {
	t.Parallel()

	// A later boost queues behind an earlier boost even when the song itself
	// was requested first.
	entries := []Entry{
		{ID: "early-add-late-boost", Status: EntryQueued, AddedAt: ts(1), Boosted: true, BoostedAt: tsp(20)},
		{ID: "late-add-early-boost", Status: EntryQueued, AddedAt: ts(9), Boosted: true, BoostedAt: tsp(10)},
	}

	SortEntries(entries)
	require.Equal(t, []string{"late-add-early-boost", "early-add-late-boost"}, ids(entries))
}

func TestSortEntriesFIFOWithinUnboosted(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{ID: "third", Status: EntryQueued, AddedAt: ts(3)},
		{ID: "first", Status: EntryQueued, AddedAt: ts(1)},
		{ID: "second", Status: EntryQueued, AddedAt: ts(2)},
	}

	SortEntries(entries)
	require.Equal(t, []string{"first", "second", "third"}, ids(entries))
}

func TestSortEntriesPlayingLeadsHistoryTrails(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{ID: "done", Status: EntryPlayed, AddedAt: ts(1)},
		{ID: "waiting", Status: EntryQueued, AddedAt: ts(2)},
		{ID: "now", Status: EntryPlaying, AddedAt: ts(3)},
		{ID: "gone", Status: EntrySkipped, AddedAt: ts(4)},
	}

	SortEntries(entries)
	require.Equal(t, []string{"now", "waiting", "done", "gone"}, ids(entries))
}

func TestSortEntriesDeterministicUnderShuffle(t *testing.T) {
	t.Parallel()

	base := []Entry{
		{ID: "p1", Status: EntryPlaying, AddedAt: ts(0)},
		{ID: "b1", Status: EntryQueued, AddedAt: ts(4), Boosted: true, BoostedAt: tsp(11)},
		{ID: "b2", Status: EntryQueued, AddedAt: ts(1), Boosted: true, BoostedAt: tsp(12)},
		{ID: "q1", Status: EntryQueued, AddedAt: ts(2)},
		{ID: "q2", Status: EntryQueued, AddedAt: ts(3)},
		{ID: "q3", Status: EntryQueued, AddedAt: ts(3)}, // same instant as q2, id breaks the tie
		{ID: "d1", Status: EntryPlayed, AddedAt: ts(1)},
		{ID: "s1", Status: EntrySkipped, AddedAt: ts(1)},
	}
	want := []string{"p1", "b1", "b2", "q1", "q2", "q3", "d1", "s1"}

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := make([]Entry, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		SortEntries(shuffled)
		require.Equal(t, want, ids(shuffled))
	}
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
