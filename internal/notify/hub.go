package notify

import "sync"

// Hub fans a value out to registered callbacks.
type Hub[T any] struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it. Calling the
// cancel function more than once is harmless.
func (h *Hub[T]) Subscribe(fn func(T)) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber. Subscribers may cancel
// themselves or subscribe others while being called.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	snapshot := make([]subscriber[T], len(h.subs))
	copy(snapshot, h.subs)
	h.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}
