package storage

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log"
	"sync"

	"overcooked-storefront/cart-svc/internal/domain"
	"overcooked-storefront/cart-svc/internal/service"
)

const cartEntryKey = "cart"

// UpdateFunc receives the current value of an item and returns the value to
// store. Returning write=false leaves the item untouched.
type UpdateFunc func(current string, found bool) (next string, write bool, err error)

// KeyValue is a string store partitioned by scope, one scope per anonymous
// browser. UpdateItem must apply fn atomically with respect to other writers.
type KeyValue interface {
	GetItem(ctx context.Context, scope, key string) (string, bool, error)
	SetItem(ctx context.Context, scope, key, value string) error
	UpdateItem(ctx context.Context, scope, key string, fn UpdateFunc) error
}

const lockStripes = 64

// LocalStore keeps a guest cart as one JSON array under the "cart" entry and
// rewrites it whole on every change. Changes to one browser's cart are
// serialized in process and checked with WATCH across instances.
type LocalStore struct {
	kv    KeyValue
	locks [lockStripes]sync.Mutex
}

func NewLocalStore(kv KeyValue) *LocalStore {
	return &LocalStore{kv: kv}
}

var _ service.CartStore = (*LocalStore)(nil)

func (s *LocalStore) Source() domain.CartSource {
	return domain.SourceLocal
}

// Load treats a missing or unreadable entry as an empty cart.
func (s *LocalStore) Load(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	raw, ok, err := s.kv.GetItem(ctx, owner.ID, cartEntryKey)
	if err != nil {
		return nil, err
	}
	return decodeLines(owner, raw, ok), nil
}

func (s *LocalStore) Add(ctx context.Context, owner domain.Owner, dish domain.Dish, quantity int) error {
	return s.mutate(ctx, owner, func(lines []domain.CartLine) ([]domain.CartLine, bool, error) {
		return domain.MergeDish(lines, dish, quantity), true, nil
	})
}

func (s *LocalStore) SetQuantity(ctx context.Context, owner domain.Owner, lineID string, direction domain.Direction) error {
	return s.mutate(ctx, owner, func(lines []domain.CartLine) ([]domain.CartLine, bool, error) {
		idx, ok := domain.FindLine(lines, lineID)
		if !ok {
			return nil, false, service.ErrLineNotFound
		}

		next, ok := domain.Step(lines[idx].Quantity, direction)
		if !ok {
			return nil, false, nil
		}
		lines[idx].Quantity = next
		return lines, true, nil
	})
}

func (s *LocalStore) Remove(ctx context.Context, owner domain.Owner, lineID string) error {
	return s.mutate(ctx, owner, func(lines []domain.CartLine) ([]domain.CartLine, bool, error) {
		kept, removed := domain.WithoutLine(lines, lineID)
		return kept, removed, nil
	})
}

// mutate applies change to the stored cart as one read-modify-write.
func (s *LocalStore) mutate(ctx context.Context, owner domain.Owner, change func([]domain.CartLine) ([]domain.CartLine, bool, error)) error {
	lock := s.lockFor(owner.ID)
	lock.Lock()
	defer lock.Unlock()

	return s.kv.UpdateItem(ctx, owner.ID, cartEntryKey, func(current string, found bool) (string, bool, error) {
		lines, write, err := change(decodeLines(owner, current, found))
		if err != nil || !write {
			return "", false, err
		}
		payload, err := json.Marshal(lines)
		if err != nil {
			return "", false, err
		}
		return string(payload), true, nil
	})
}

func (s *LocalStore) lockFor(scope string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(scope))
	return &s.locks[h.Sum32()%lockStripes]
}

func decodeLines(owner domain.Owner, raw string, found bool) []domain.CartLine {
	if !found || raw == "" {
		return []domain.CartLine{}
	}

	var lines []domain.CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		log.Printf("[cart-svc] discarding corrupt cart entry for %s: %v", owner.Key(), err)
		return []domain.CartLine{}
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines
}
