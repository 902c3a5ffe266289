package events

import (
	"context"
	"log"
	"sync"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"
)

const forwardTimeout = 5 * time.Second

// Sink receives every event published on this instance, after local
// subscribers have been signalled.
type Sink interface {
	Forward(ctx context.Context, evt domain.CartEvent) error
}

// Bus is the typed in-process "cart updated" channel. Surfaces subscribe to
// it instead of listening for an untyped global signal.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.CartEvent
	nextID int
	sinks  []Sink
	wg     sync.WaitGroup
}

func NewBus(sinks ...Sink) *Bus {
	return &Bus{
		subs:  make(map[int]chan domain.CartEvent),
		sinks: sinks,
	}
}

// Subscribe returns a channel of events and a cancel func that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan domain.CartEvent, func()) {
	ch := make(chan domain.CartEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish signals local subscribers and hands the event to every sink.
func (b *Bus) Publish(evt domain.CartEvent) {
	b.Deliver(evt)

	for _, sink := range b.sinks {
		b.wg.Add(1)
		go func(s Sink) {
			defer b.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
			defer cancel()
			if err := s.Forward(ctx, evt); err != nil {
				log.Printf("[cart-svc] forward %s event for %s: %v", evt.Kind, evt.Owner, err)
			}
		}(sink)
	}
}

// Deliver signals local subscribers only. A subscriber whose buffer is full
// already has a pending refresh, so the event is dropped for it.
func (b *Bus) Deliver(evt domain.CartEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Wait blocks until in-flight sink forwards finish.
func (b *Bus) Wait() {
	b.wg.Wait()
}
