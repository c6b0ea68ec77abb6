package service

import "sort"

// statusRank orders the queue view: what is playing leads, the waiting queue
// follows, history trails.
func statusRank(s EntryStatus) int {
	switch s {
	case EntryPlaying:
		return 0
	case EntryQueued:
		return 1
	case EntryPlayed:
		return 2
	default: // skipped
		return 3
	}
}

// SortEntries sorts in place into canonical play order. Within the waiting
// queue, boosted entries come first ordered by when they were boosted, then
// everything else first-come-first-served. The sort is deterministic: every
// comparison falls through to the entry id, so two replicas reading the same
// documents render the same order.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]

		if ra, rb := statusRank(a.Status), statusRank(b.Status); ra != rb {
			return ra < rb
		}

		if a.Status == EntryQueued {
			if a.Boosted != b.Boosted {
				return a.Boosted
			}
			if a.Boosted && b.Boosted {
				at, bt := a.BoostedAt, b.BoostedAt
				if at != nil && bt != nil && !at.Equal(*bt) {
					return at.Before(*bt)
				}
			}
		}

		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.ID < b.ID
	})
}
