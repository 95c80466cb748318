package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coder/websocket"

	"roomseal/internal/codec"
	"roomseal/internal/domain"
)

// maxFrameBytes bounds a single change-feed frame. A message carries one
// sealed copy per member, so frames grow with room size.
const maxFrameBytes = 1 << 20

// Subscribe opens the change feed for room. Events arrive in relay order on
// Events() until ctx is cancelled, Close is called or the relay drops the
// connection.
func (c *HTTP) Subscribe(ctx context.Context, room domain.RoomID) (domain.Subscription, error) {
	feedURL, err := c.feedURL(room)
	if err != nil {
		return nil, err
	}
	ws, resp, err := websocket.Dial(ctx, feedURL, &websocket.DialOptions{HTTPClient: c.HTTP})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("%w: feed %s: %v", domain.ErrUnreachable, room, err)
	}
	ws.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(ctx)
	sub := &feedSubscription{
		ws:     ws,
		cancel: cancel,
		events: make(chan domain.FeedEvent),
	}
	go sub.run(ctx)
	return sub, nil
}

func (c *HTTP) feedURL(room domain.RoomID) (string, error) {
	base := c.Base
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "", fmt.Errorf("relay base %q must be an http or https URL", c.Base)
	}
	return base + roomPath(room, "feed"), nil
}

type feedSubscription struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	events chan domain.FeedEvent

	mu  sync.Mutex
	err error
}

func (s *feedSubscription) run(ctx context.Context) {
	defer close(s.events)
	defer s.ws.CloseNow()

	for {
		_, data, err := s.ws.Read(ctx)
		if err != nil {
			s.finish(ctx, err)
			return
		}
		var ev domain.FeedEvent
		if err := codec.Unmarshal(data, &ev); err != nil {
			// A malformed frame is skipped; the feed itself is still usable.
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			s.finish(ctx, ctx.Err())
			return
		}
	}
}

func (s *feedSubscription) finish(ctx context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		// Closed by us; not a failure.
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return
	}
	s.err = fmt.Errorf("%w: feed: %v", domain.ErrUnreachable, err)
}

func (s *feedSubscription) Events() <-chan domain.FeedEvent { return s.events }

func (s *feedSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the feed. The reader goroutine tears the connection down and
// closes Events.
func (s *feedSubscription) Close() error {
	s.cancel()
	return nil
}
