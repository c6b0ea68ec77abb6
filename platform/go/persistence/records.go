package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/openmic-live/openmic/platform/go/tenant"
)

// Party lifecycle statuses.
const (
	PartyActive = "active"
	PartyPaused = "paused"
	PartyEnded  = "ended"
)

// Queue entry statuses.
const (
	EntryQueued  = "queued"
	EntryPlaying = "playing"
	EntryPlayed  = "played"
	EntrySkipped = "skipped"
)

// Participant roles within a party.
const (
	RoleHost  = "HOST"
	RoleGuest = "GUEST"
)

// Store-level sentinel errors. Services translate these into their own
// domain errors; none of them is retryable.
var (
	ErrPartyNotFound       = errors.New("party not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrEntryNotFound       = errors.New("queue entry not found")
	ErrCodeTaken           = errors.New("party code already reserved")
	ErrPartyNotActive      = errors.New("party is not active")
	ErrPartyEnded          = errors.New("party has ended")
	ErrPartyFull           = errors.New("party is at capacity")
	ErrAlreadyLeft         = errors.New("participant already left")
	ErrAlreadyBoosted      = errors.New("entry already boosted")
	ErrEntryNotQueued      = errors.New("entry is not queued")
	ErrInsufficientCredits = errors.New("insufficient boost credits")
	ErrInvalidPartyStatus  = errors.New("illegal party status transition")
	ErrInvalidEntryStatus  = errors.New("illegal entry status transition")
	ErrNotRequester        = errors.New("only the requester may remove the entry")
	ErrAlreadyPraised      = errors.New("contributor already praised the entry")
	ErrDuplicateSong       = errors.New("song already queued")
	ErrSongLimitReached    = errors.New("requester reached the song limit")
)

// SettingsRecord holds the per-party knobs fixed at creation.
type SettingsRecord struct {
	MaxParticipants   int  `firestore:"maxParticipants"`
	BoostsPerPerson   int  `firestore:"boostsPerPerson"`
	MaxSongsPerPerson int  `firestore:"maxSongsPerPerson"`
	AllowDuplicates   bool `firestore:"allowDuplicates"`
	RequireApproval   bool `firestore:"requireApproval"`
}

// PartyRecord is the party aggregate document.
type PartyRecord struct {
	ID                string         `firestore:"id"`
	Code              string         `firestore:"code"`
	Name              string         `firestore:"name"`
	HostPrincipal     string         `firestore:"hostPrincipal"`
	HostParticipantID string         `firestore:"hostParticipantId"`
	Status            string         `firestore:"status"`
	Settings          SettingsRecord `firestore:"settings"`
	ParticipantIDs    []string       `firestore:"participantIds"`
	CreatedAt         time.Time      `firestore:"createdAt"`
	StartedAt         time.Time      `firestore:"startedAt"`
	EndedAt           *time.Time     `firestore:"endedAt,omitempty"`
}

// ParticipantRecord is one principal's membership document in one party.
// Left participants keep their document (soft delete) so queue attribution
// and balances survive a rejoin.
type ParticipantRecord struct {
	ID           string     `firestore:"id"`
	PartyID      string     `firestore:"partyId"`
	PrincipalID  string     `firestore:"principalId"`
	DisplayName  string     `firestore:"displayName"`
	Role         string     `firestore:"role"`
	BoostCredits int        `firestore:"boostCredits"`
	Score        int        `firestore:"score"`
	Anonymous    bool       `firestore:"anonymous"`
	JoinedAt     time.Time  `firestore:"joinedAt"`
	LeftAt       *time.Time `firestore:"leftAt,omitempty"`
}

// PraiseRecord is one reaction on a queue entry.
type PraiseRecord struct {
	ContributorID string    `firestore:"contributorId"`
	Type          string    `firestore:"type"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

// QueueEntryRecord is one song request document. The requester fields are a
// snapshot captured at add time, not a live join.
type QueueEntryRecord struct {
	ID                string         `firestore:"id"`
	PartyID           string         `firestore:"partyId"`
	VideoID           string         `firestore:"videoId"`
	Title             string         `firestore:"title"`
	Artist            string         `firestore:"artist"`
	ThumbnailURL      string         `firestore:"thumbnailUrl"`
	RequesterID       string         `firestore:"requesterId"`
	RequesterName     string         `firestore:"requesterName"`
	RequesterInitials string         `firestore:"requesterInitials"`
	Boosted           bool           `firestore:"boosted"`
	BoostCount        int            `firestore:"boostCount"`
	Status            string         `firestore:"status"`
	AddedAt           time.Time      `firestore:"addedAt"`
	BoostedAt         *time.Time     `firestore:"boostedAt,omitempty"`
	PlayedAt          *time.Time     `firestore:"playedAt,omitempty"`
	Praises           []PraiseRecord `firestore:"praises"`
}

// CodeRecord reserves a human-shareable code. Its document id is the code
// itself, which is what makes reservation race-free: two concurrent creates
// of the same code collide on the document.
type CodeRecord struct {
	PartyID    string    `firestore:"partyId"`
	ReservedAt time.Time `firestore:"reservedAt"`
}

// CanTransitionParty encodes the party lifecycle: active and paused swap
// freely, either may end, ended is terminal.
func CanTransitionParty(from, to string) bool {
	switch from {
	case PartyActive:
		return to == PartyPaused || to == PartyEnded
	case PartyPaused:
		return to == PartyActive || to == PartyEnded
	default:
		return false
	}
}

// CanTransitionEntry encodes the monotonic entry state machine:
// queued→playing→played, or queued/playing→skipped.
func CanTransitionEntry(from, to string) bool {
	switch from {
	case EntryQueued:
		return to == EntryPlaying || to == EntrySkipped
	case EntryPlaying:
		return to == EntryPlayed || to == EntrySkipped
	default:
		return false
	}
}

// PartyStore owns party aggregate documents and the code uniqueness index.
type PartyStore interface {
	// CreateParty atomically reserves the code, writes the party document,
	// and seeds the host participant. ErrCodeTaken when the code is in use.
	CreateParty(ctx context.Context, space tenant.Space, party PartyRecord, host ParticipantRecord) error
	GetParty(ctx context.Context, space tenant.Space, partyID string) (PartyRecord, error)
	GetPartyByCode(ctx context.Context, space tenant.Space, code string) (PartyRecord, error)
	// TransitionParty applies a lifecycle change under a transaction guard.
	// Re-ending an ended party succeeds without writing.
	TransitionParty(ctx context.Context, space tenant.Space, partyID, target string, now time.Time) (PartyRecord, error)
	// ListStaleActiveParties returns parties still active that were created
	// before the cutoff. Used by the daily sweep.
	ListStaleActiveParties(ctx context.Context, space tenant.Space, cutoff time.Time) ([]PartyRecord, error)
}

// ParticipantStore owns the per-party participant ledger.
type ParticipantStore interface {
	// JoinParty admits the candidate. Idempotent for a principal already in:
	// returns the existing record and true. A previously-left participant is
	// revived with its old balance. Enforces active status and capacity.
	JoinParty(ctx context.Context, space tenant.Space, partyID string, candidate ParticipantRecord) (ParticipantRecord, bool, error)
	LeaveParty(ctx context.Context, space tenant.Space, partyID, participantID string, now time.Time) (ParticipantRecord, error)
	GetParticipant(ctx context.Context, space tenant.Space, partyID, participantID string) (ParticipantRecord, error)
	FindParticipantByPrincipal(ctx context.Context, space tenant.Space, partyID, principalID string) (ParticipantRecord, error)
	ListParticipants(ctx context.Context, space tenant.Space, partyID string) ([]ParticipantRecord, error)
	// AdjustCredits changes the balance, refusing to go negative.
	AdjustCredits(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) (ParticipantRecord, error)
	// AddScore is additive only.
	AddScore(ctx context.Context, space tenant.Space, partyID, participantID string, delta int) error
}

// QueueStore owns queue entry documents. All mutations are transactional and
// re-check the party lifecycle so nothing moves after a party ends.
type QueueStore interface {
	AddEntry(ctx context.Context, space tenant.Space, partyID string, entry QueueEntryRecord, maxSongsPerPerson int, allowDuplicates bool) error
	GetEntry(ctx context.Context, space tenant.Space, partyID, entryID string) (QueueEntryRecord, error)
	ListEntries(ctx context.Context, space tenant.Space, partyID string) ([]QueueEntryRecord, error)
	// BoostEntry is the engine's one compound invariant: flag the entry and
	// debit the booster in a single atomic unit. Returns the updated entry
	// and the booster's remaining balance.
	BoostEntry(ctx context.Context, space tenant.Space, partyID, entryID, boosterID string, now time.Time) (QueueEntryRecord, int, error)
	UpdateEntryStatus(ctx context.Context, space tenant.Space, partyID, entryID, target string, now time.Time) (QueueEntryRecord, error)
	RemoveEntry(ctx context.Context, space tenant.Space, partyID, entryID, requesterID string) error
	AddPraise(ctx context.Context, space tenant.Space, partyID, entryID string, praise PraiseRecord) (QueueEntryRecord, error)
}

// ChangeFeed notifies subscribers that something under a party changed. Ticks
// carry no payload; observers recompute the view from current state.
type ChangeFeed interface {
	SubscribePartyChanges(ctx context.Context, space tenant.Space, partyID string) (<-chan struct{}, func(), error)
}

// Store is the full capability set the engine requires from its storage.
type Store interface {
	PartyStore
	ParticipantStore
	QueueStore
	ChangeFeed
}
