package message

import (
	"context"
	"errors"
	"time"

	"roomseal/internal/domain"
)

const (
	resubscribeMin = 500 * time.Millisecond
	resubscribeMax = 30 * time.Second
)

// run consumes the change feed until the session closes, resubscribing with
// backoff whenever the relay drops the connection.
func (s *Session) run(ctx context.Context, sub domain.Subscription) {
	defer close(s.done)
	for {
		s.pump(ctx, sub)
		if ctx.Err() != nil {
			return
		}

		err := sub.Err()
		s.logger.Warn("change feed lost", "error", err)
		s.emit(Event{Kind: EventFeedLost, Err: err})
		_ = sub.Close()

		sub = s.resubscribe(ctx)
		if sub == nil {
			return
		}
	}
}

func (s *Session) pump(ctx context.Context, sub domain.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.rekey:
			if err := s.loadRoster(ctx, true); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
				s.logger.Warn("republish after key change failed", "error", err)
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Session) handle(ctx context.Context, ev domain.FeedEvent) {
	if ev.RoomID != "" && ev.RoomID != s.room.ID {
		return
	}
	s.mu.Lock()
	switch s.state {
	case domain.StateClosed:
		s.mu.Unlock()
		return
	case domain.StateLoading:
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	switch ev.Kind {
	case domain.FeedMessageInsert:
		if ev.Message != nil {
			s.accept(*ev.Message)
		}
	case domain.FeedMemberLeave:
		if ev.Member != nil && ev.Member.UserID == s.self.UserID {
			s.logger.Info("left room, closing session")
			go s.Close()
			return
		}
		// The departed member's secret disappears with the reload.
		if err := s.loadRoster(ctx, false); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
			s.logger.Warn("roster reload failed", "error", err)
		}
	case domain.FeedMemberUpsert:
		if err := s.loadRoster(ctx, false); err != nil && !errors.Is(err, domain.ErrSessionClosed) {
			s.logger.Warn("roster reload failed", "error", err)
		}
	default:
		s.logger.Debug("ignoring feed event", "kind", string(ev.Kind))
	}
}

// accept decrypts one live message and merges it into the timeline.
func (s *Session) accept(msg domain.Message) {
	s.mu.Lock()
	if s.state == domain.StateClosed {
		s.mu.Unlock()
		return
	}
	entry := s.decryptLocked(msg)
	merged := s.mergeLocked(entry)
	s.mu.Unlock()

	if merged {
		s.emit(Event{Kind: EventMessage, Entry: entry})
	}
}

// resubscribe reopens the feed, then reloads roster and history so nothing
// inserted while disconnected is missed. It returns nil once ctx is done.
func (s *Session) resubscribe(ctx context.Context) domain.Subscription {
	delay := resubscribeMin
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		sub, err := s.relay.Subscribe(ctx, s.room.ID)
		if err == nil {
			s.mu.Lock()
			closed := s.state == domain.StateClosed
			if !closed {
				s.sub = sub
			}
			s.mu.Unlock()
			if closed {
				_ = sub.Close()
				return nil
			}
			if err := s.resync(ctx); err != nil {
				s.logger.Warn("resync after reconnect failed", "error", err)
			}
			s.logger.Info("change feed restored")
			return sub
		}

		s.logger.Debug("resubscribe failed", "error", err, "retry_in", delay)
		delay *= 2
		if delay > resubscribeMax {
			delay = resubscribeMax
		}
	}
}

func (s *Session) resync(ctx context.Context) error {
	if err := s.loadRoster(ctx, false); err != nil {
		return err
	}
	history, err := s.relay.ListMessages(ctx, s.room.ID)
	if err != nil {
		return err
	}
	for _, msg := range history {
		s.accept(msg)
	}
	return nil
}
