package store

import "sync"

// hub fans snapshots out to subscribers. Snapshots committed through
// commit are delivered in mutation order; subscribers must not write back
// to the store that notifies them.
type hub[T any] struct {
	seq  sync.Mutex
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

// commit runs mutate and delivers its snapshot before the next commit
// starts.
func (h *hub[T]) commit(mutate func() T) {
	h.seq.Lock()
	defer h.seq.Unlock()
	h.publish(mutate())
}

func (h *hub[T]) subscribe(fn func(T)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]func(T))
	}
	key := h.next
	h.next++
	h.subs[key] = fn

	return func() {
		h.mu.Lock()
		delete(h.subs, key)
		h.mu.Unlock()
	}
}

func (h *hub[T]) publish(snapshot T) {
	h.mu.Lock()
	fns := make([]func(T), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
