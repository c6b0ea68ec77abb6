package broadcast

import (
	"context"
	"fmt"
	"time"

	participantsvc "github.com/openmic-live/openmic/domains/participants/be/service"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	queuesvc "github.com/openmic-live/openmic/domains/queue/be/service"
)

// View is one self-contained snapshot of a party pushed to live observers.
// Views are rebuilt from current state on every change, never patched, so a
// client that misses an update loses nothing.
type View struct {
	Version     int64            `json:"version"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Party       PartySnapshot    `json:"party"`
	Roster      []RosterSnapshot `json:"roster"`
	Queue       []EntrySnapshot  `json:"queue"`
}

// PartySnapshot is the party header of a view.
type PartySnapshot struct {
	ID       string     `json:"id"`
	Code     string     `json:"code"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	EndedAt  *time.Time `json:"endedAt,omitempty"`
	Settings Settings   `json:"settings"`
}

// Settings mirrors the party knobs clients render.
type Settings struct {
	MaxParticipants   int  `json:"maxParticipants"`
	BoostsPerPerson   int  `json:"boostsPerPerson"`
	MaxSongsPerPerson int  `json:"maxSongsPerPerson"`
	AllowDuplicates   bool `json:"allowDuplicates"`
	RequireApproval   bool `json:"requireApproval"`
}

// RosterSnapshot is one participant row of a view.
type RosterSnapshot struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Role         string `json:"role"`
	BoostCredits int    `json:"boostCredits"`
	Score        int    `json:"score"`
	Anonymous    bool   `json:"anonymous"`
}

// EntrySnapshot is one queue row of a view, already in canonical play order.
type EntrySnapshot struct {
	ID                string     `json:"id"`
	VideoID           string     `json:"videoId"`
	Title             string     `json:"title"`
	Artist            string     `json:"artist,omitempty"`
	ThumbnailURL      string     `json:"thumbnailUrl,omitempty"`
	RequesterID       string     `json:"requesterId"`
	RequesterName     string     `json:"requesterName"`
	RequesterInitials string     `json:"requesterInitials"`
	Boosted           bool       `json:"boosted"`
	BoostCount        int        `json:"boostCount"`
	Status            string     `json:"status"`
	AddedAt           time.Time  `json:"addedAt"`
	BoostedAt         *time.Time `json:"boostedAt,omitempty"`
	PraiseCount       int        `json:"praiseCount"`
}

// PartySource is the slice of the party registry the builder reads.
type PartySource interface {
	Get(ctx context.Context, partyID string) (partysvc.Party, error)
}

// RosterSource is the slice of the participant ledger the builder reads.
type RosterSource interface {
	Roster(ctx context.Context, partyID string) ([]participantsvc.Participant, error)
}

// QueueSource is the slice of the queue engine the builder reads.
type QueueSource interface {
	List(ctx context.Context, partyID string) ([]queuesvc.Entry, error)
}

// ViewBuilder assembles a View from the three read models.
type ViewBuilder struct {
	parties      PartySource
	participants RosterSource
	queue        QueueSource
}

// NewViewBuilder constructs a ViewBuilder.
func NewViewBuilder(parties PartySource, participants RosterSource, queue QueueSource) *ViewBuilder {
	if parties == nil || participants == nil || queue == nil {
		panic("all view sources are required")
	}
	return &ViewBuilder{parties: parties, participants: participants, queue: queue}
}

// Build reads the current party state and renders it as a View. Left
// participants are excluded from the roster.
func (b *ViewBuilder) Build(ctx context.Context, partyID string) (View, error) {
	party, err := b.parties.Get(ctx, partyID)
	if err != nil {
		return View{}, fmt.Errorf("build view: party: %w", err)
	}

	roster, err := b.participants.Roster(ctx, partyID)
	if err != nil {
		return View{}, fmt.Errorf("build view: roster: %w", err)
	}

	entries, err := b.queue.List(ctx, partyID)
	if err != nil {
		return View{}, fmt.Errorf("build view: queue: %w", err)
	}

	view := View{
		GeneratedAt: time.Now().UTC(),
		Party: PartySnapshot{
			ID:      party.ID,
			Code:    party.Code,
			Name:    party.Name,
			Status:  string(party.Status),
			EndedAt: party.EndedAt,
			Settings: Settings{
				MaxParticipants:   party.Settings.MaxParticipants,
				BoostsPerPerson:   party.Settings.BoostsPerPerson,
				MaxSongsPerPerson: party.Settings.MaxSongsPerPerson,
				AllowDuplicates:   party.Settings.AllowDuplicates,
				RequireApproval:   party.Settings.RequireApproval,
			},
		},
		Roster: make([]RosterSnapshot, 0, len(roster)),
		Queue:  make([]EntrySnapshot, 0, len(entries)),
	}

	for _, p := range roster {
		if p.LeftAt != nil {
			continue
		}
		view.Roster = append(view.Roster, RosterSnapshot{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			Role:         p.Role,
			BoostCredits: p.BoostCredits,
			Score:        p.Score,
			Anonymous:    p.Anonymous,
		})
	}

	for _, e := range entries {
		view.Queue = append(view.Queue, EntrySnapshot{
			ID:                e.ID,
			VideoID:           e.VideoID,
			Title:             e.Title,
			Artist:            e.Artist,
			ThumbnailURL:      e.ThumbnailURL,
			RequesterID:       e.RequesterID,
			RequesterName:     e.RequesterName,
			RequesterInitials: e.RequesterInitials,
			Boosted:           e.Boosted,
			BoostCount:        e.BoostCount,
			Status:            string(e.Status),
			AddedAt:           e.AddedAt,
			BoostedAt:         e.BoostedAt,
			PraiseCount:       len(e.Praises),
		})
	}

	return view, nil
}
