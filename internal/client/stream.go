package client

import "sync"

// Stream holds a current value and fans every change out to subscribers.
// Subscribers receive the current value first. A slow subscriber only ever sees the
// latest value; intermediate values may be skipped.
type Stream[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[chan T]struct{}
	closed bool
}

// NewStream creates a stream holding initial.
func NewStream[T any](initial T) *Stream[T] {
	return &Stream[T]{value: initial, subs: make(map[chan T]struct{})}
}

// Value returns the current value.
func (s *Stream[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set replaces the current value and publishes it. Set after Close is a no-op.
func (s *Stream[T]) Set(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.value = value
	for ch := range s.subs {
		offer(ch, value)
	}
}

// Subscribe returns a channel yielding the current value and every later one, and a
// cancel function that closes it.
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	ch <- s.value
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
		})
	}
}

// Close closes every subscription. The last value stays readable.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

func offer[T any](ch chan T, value T) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
