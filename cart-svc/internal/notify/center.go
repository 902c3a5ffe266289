package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"
)

const DefaultTTL = 3 * time.Second

type watcher struct {
	owner string
	ch    chan domain.Notification
}

// Center holds transient notifications per owner. A notification is shown
// once: either drained into an HTTP response or pushed to a live surface.
type Center struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	pending  map[string][]domain.Notification
	watchers map[int]watcher
	nextID   int
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{
		ttl:      ttl,
		now:      time.Now,
		pending:  make(map[string][]domain.Notification),
		watchers: make(map[int]watcher),
	}
}

func (c *Center) Notify(ctx context.Context, n domain.Notification) {
	if n.At.IsZero() {
		n.At = c.now()
	}
	log.Printf("[cart-svc] notify %s %s: %s", n.Owner, n.Level, n.Message)

	c.mu.Lock()
	defer c.mu.Unlock()

	delivered := false
	for _, w := range c.watchers {
		if w.owner != n.Owner {
			continue
		}
		select {
		case w.ch <- n:
			delivered = true
		default:
		}
	}
	if delivered {
		return
	}
	c.pending[n.Owner] = append(c.live(n.Owner), n)
}

// Drain returns the owner's unexpired notifications and forgets them.
func (c *Center) Drain(owner string) []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.live(owner)
	delete(c.pending, owner)
	if out == nil {
		return []domain.Notification{}
	}
	return out
}

// Watch streams notifications for owner as they are raised.
func (c *Center) Watch(owner string, buffer int) (<-chan domain.Notification, func()) {
	ch := make(chan domain.Notification, buffer)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.watchers[id] = watcher{owner: owner, ch: ch}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Center) live(owner string) []domain.Notification {
	cutoff := c.now().Add(-c.ttl)
	var kept []domain.Notification
	for _, n := range c.pending[owner] {
		if n.At.After(cutoff) {
			kept = append(kept, n)
		}
	}
	return kept
}
