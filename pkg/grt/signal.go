package grt

import "sync"

// Signal is a synchronous notification channel. Handlers run on the
// emitting goroutine in connection order.
type Signal[T any] struct {
	mu     sync.Mutex
	nextID int
	slots  []slot[T]
}

type slot[T any] struct {
	id int
	fn func(T)
}

// Connect registers fn and returns a function that disconnects it.
func (s *Signal[T]) Connect(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.slots = append(s.slots, slot[T]{id: id, fn: fn})

	return func() { s.disconnect(id) }
}

func (s *Signal[T]) disconnect(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sl := range s.slots {
		if sl.id == id {
			s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
			return
		}
	}
}

// DisconnectAll removes every handler.
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	s.slots = nil
	s.mu.Unlock()
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Emit calls every handler with v. Handlers may connect or disconnect
// while the signal is being emitted.
func (s *Signal[T]) Emit(v T) {
	s.mu.Lock()
	if len(s.slots) == 0 {
		s.mu.Unlock()
		return
	}
	slots := make([]slot[T], len(s.slots))
	copy(slots, s.slots)
	s.mu.Unlock()

	for _, sl := range slots {
		sl.fn(v)
	}
}
