package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openmic-live/openmic/platform/go/persistence"
	"github.com/openmic-live/openmic/platform/go/tenant"
)

// DefaultCoalesce is how long the hub waits after a change before rebuilding,
// so a burst of writes becomes one push instead of many.
const DefaultCoalesce = 100 * time.Millisecond

// Hub fans live party views out to observers. One feed and one rebuild loop
// run per observed party, shared by all of its observers; the loop starts
// with the first subscriber and stops with the last.
type Hub struct {
	feed     persistence.ChangeFeed
	builder  *ViewBuilder
	logger   *zap.Logger
	coalesce time.Duration

	mu    sync.Mutex
	rooms map[string]*room
}

type room struct {
	partyID   string
	version   int64
	observers map[chan View]struct{}
	stop      func()
	last      *View
}

// NewHub constructs a Hub over the given change feed and view builder.
func NewHub(feed persistence.ChangeFeed, builder *ViewBuilder, logger *zap.Logger) *Hub {
	if feed == nil {
		panic("change feed is required")
	}
	if builder == nil {
		panic("view builder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		feed:     feed,
		builder:  builder,
		logger:   logger,
		coalesce: DefaultCoalesce,
		rooms:    make(map[string]*room),
	}
}

// Subscribe registers an observer for the party and returns a channel of
// views plus an unsubscribe func. The channel has depth one and is
// latest-wins: a slow reader only ever sees the most recent view, never a
// backlog. The current view is delivered immediately when available.
func (h *Hub) Subscribe(ctx context.Context, partyID string) (<-chan View, func(), error) {
	space, err := tenant.RequireFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := space.ID + "/" + partyID
	r, ok := h.rooms[key]
	if !ok {
		r, err = h.openRoom(space, partyID, key)
		if err != nil {
			return nil, nil, err
		}
	}

	ch := make(chan View, 1)
	r.observers[ch] = struct{}{}
	if r.last != nil {
		ch <- *r.last
	}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, live := r.observers[ch]; !live {
				return
			}
			delete(r.observers, ch)
			close(ch)
			if len(r.observers) == 0 && h.rooms[key] == r {
				delete(h.rooms, key)
				r.stop()
			}
		})
	}
	return ch, unsubscribe, nil
}

// ObserverCount reports how many observers the party currently has.
func (h *Hub) ObserverCount(space tenant.Space, partyID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[space.ID+"/"+partyID]; ok {
		return len(r.observers)
	}
	return 0
}

// openRoom starts the feed and rebuild loop for a party. Caller holds h.mu.
func (h *Hub) openRoom(space tenant.Space, partyID, key string) (*room, error) {
	loopCtx, cancel := context.WithCancel(tenant.WithSpace(context.Background(), space))

	ticks, stopFeed, err := h.feed.SubscribePartyChanges(loopCtx, space, partyID)
	if err != nil {
		cancel()
		return nil, err
	}

	r := &room{
		partyID:   partyID,
		observers: make(map[chan View]struct{}),
		stop: func() {
			stopFeed()
			cancel()
		},
	}
	h.rooms[key] = r

	go h.run(loopCtx, r, key, ticks)
	return r, nil
}

func (h *Hub) run(ctx context.Context, r *room, key string, ticks <-chan struct{}) {
	// First view goes out without waiting for a change.
	h.rebuild(ctx, r)

	var pending *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			h.closeRoom(r, key)
			return
		case _, ok := <-ticks:
			if !ok {
				h.closeRoom(r, key)
				return
			}
			if pending == nil {
				pending = time.NewTimer(h.coalesce)
				fire = pending.C
			}
		case <-fire:
			pending = nil
			fire = nil
			h.rebuild(ctx, r)
		}
	}
}

// rebuild renders a fresh view and pushes it to every observer. A build
// failure keeps the previous view in place; observers simply see nothing new.
func (h *Hub) rebuild(ctx context.Context, r *room) {
	view, err := h.builder.Build(ctx, r.partyID)
	if err != nil {
		if ctx.Err() == nil {
			h.logger.Warn("live view rebuild failed",
				zap.String("partyId", r.partyID),
				zap.Error(err))
		}
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r.version++
	view.Version = r.version
	r.last = &view

	for ch := range r.observers {
		// Latest-wins: displace a stale undelivered view instead of blocking.
		select {
		case ch <- view:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- view:
			default:
			}
		}
	}
}

func (h *Hub) closeRoom(r *room, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[key] == r {
		delete(h.rooms, key)
	}
	for ch := range r.observers {
		close(ch)
	}
	r.observers = make(map[chan View]struct{})
	r.stop()
}
