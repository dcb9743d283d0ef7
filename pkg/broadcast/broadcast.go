package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives messages from a Broadcaster.
type Subscriber[T any] interface {
	// Receive returns the channel broadcast messages arrive on. The
	// channel is closed when the subscriber or broadcaster closes.
	Receive() <-chan T

	// Close releases the subscription. Idempotent.
	Close() error
}

// Broadcaster sends messages to multiple subscribers without blocking on
// slow consumers.
type Broadcaster[T any] interface {
	Subscribe(ctx context.Context) Subscriber[T]
	Broadcast(msg T)
	Close() error
}

type subscriber[T any] struct {
	ch     chan T
	mu     sync.Mutex
	closed bool
}

func (s *subscriber[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send delivers msg unless the subscriber is closed or its buffer full.
func (s *subscriber[T]) send(msg T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}
