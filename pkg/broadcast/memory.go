package broadcast

import (
	"context"
	"sync"
)

// Memory is an in-process Broadcaster. All methods are safe for
// concurrent use.
type Memory[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	closed      bool
}

// NewMemory creates an in-memory broadcaster. bufferSize controls each
// subscriber's channel buffer; a minimum of 1 is enforced so sends stay
// non-blocking.
func NewMemory[T any](bufferSize int) *Memory[T] {
	return &Memory[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a new subscriber. The subscription is released
// when the context is cancelled or the subscriber is closed. Subscribing
// to a closed broadcaster yields an already-closed subscriber.
func (b *Memory[T]) Subscribe(ctx context.Context) Subscriber[T] {
	sub := &subscriber[T]{ch: make(chan T, b.bufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Broadcast delivers msg to every active subscriber, dropping it for
// subscribers whose buffers are full.
func (b *Memory[T]) Broadcast(msg T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subscribers {
		sub.send(msg)
	}
}

// Close shuts down the broadcaster and closes all subscribers. Idempotent.
func (b *Memory[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	return nil
}

func (b *Memory[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		_ = sub.Close()
	}
}

var _ Broadcaster[any] = (*Memory[any])(nil)
