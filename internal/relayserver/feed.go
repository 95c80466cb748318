package relayserver

import (
	"log/slog"
	"sync"

	"roomseal/internal/domain"
)

// Broker fans change-feed events out to the subscribers of each room.
// Publishing never blocks: a subscriber whose queue is full is evicted and
// its connection closed, and the client is expected to resubscribe and
// reload.
type Broker struct {
	buffer int
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[domain.RoomID]map[*Subscriber]struct{}
}

// Subscriber is one registered feed consumer.
type Subscriber struct {
	room    domain.RoomID
	events  chan domain.FeedEvent
	evicted chan struct{}
	once    sync.Once
}

func (s *Subscriber) evict() { s.once.Do(func() { close(s.evicted) }) }

// Events delivers queued events.
func (s *Subscriber) Events() <-chan domain.FeedEvent { return s.events }

// Evicted is closed when the subscriber fell too far behind.
func (s *Subscriber) Evicted() <-chan struct{} { return s.evicted }

// NewBroker returns a broker that queues up to buffer events per subscriber.
func NewBroker(buffer int, logger *slog.Logger) *Broker {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broker{
		buffer: buffer,
		logger: logger,
		rooms:  make(map[domain.RoomID]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for room. Events published after this
// call returns are delivered (or the subscriber is evicted).
func (b *Broker) Subscribe(room domain.RoomID) *Subscriber {
	sub := &Subscriber{
		room:    room,
		events:  make(chan domain.FeedEvent, b.buffer),
		evicted: make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.rooms[room]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.rooms[room] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub. It is safe to call after eviction.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Broker) removeLocked(sub *Subscriber) {
	set := b.rooms[sub.room]
	delete(set, sub)
	if len(set) == 0 {
		delete(b.rooms, sub.room)
	}
}

// Publish delivers ev to every subscriber of ev.RoomID.
func (b *Broker) Publish(ev domain.FeedEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.rooms[ev.RoomID] {
		select {
		case sub.events <- ev:
		default:
			b.logger.Warn("evicting slow feed subscriber", "room_id", ev.RoomID.String())
			b.removeLocked(sub)
			sub.evict()
		}
	}
}

// Subscribers returns the number of subscribers for room.
func (b *Broker) Subscribers(room domain.RoomID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[room])
}
