package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"overcooked-storefront/cart-svc/internal/domain"
)

var (
	ErrNetwork      = errors.New("cart backend unreachable")
	ErrDecode       = errors.New("malformed cart data")
	ErrRejected     = errors.New("cart backend rejected the request")
	ErrLineNotFound = errors.New("cart line not found")
	ErrDishNotFound = errors.New("dish not found")
)

type CartService struct {
	remote    CartStore
	local     CartStore
	notifier  Notifier
	publisher EventPublisher
	origin    string
}

// NewCartService wires both stores. origin tags every event this instance
// publishes so relays can tell local events from ones they received.
func NewCartService(remote, local CartStore, notifier Notifier, publisher EventPublisher, origin string) *CartService {
	return &CartService{
		remote:    remote,
		local:     local,
		notifier:  notifier,
		publisher: publisher,
		origin:    origin,
	}
}

// Resolve applies the source policy: a token present right now means the
// remote cart, otherwise the guest's local cart. Nothing is remembered
// between calls.
func (s *CartService) Resolve(session domain.Session) (domain.Owner, error) {
	if session.Token == "" {
		return domain.Owner{Source: domain.SourceLocal, ID: session.GuestID}, nil
	}

	owner := domain.Owner{Source: domain.SourceRemote, Token: session.Token}
	userID, err := DecodeUserID(session.Token)
	if err != nil {
		return owner, err
	}
	owner.ID = userID
	return owner, nil
}

func (s *CartService) store(owner domain.Owner) CartStore {
	if owner.Source == domain.SourceRemote {
		return s.remote
	}
	return s.local
}

func (s *CartService) Load(ctx context.Context, session domain.Session) domain.CartView {
	owner, err := s.Resolve(session)
	if err != nil {
		log.Printf("[cart-svc] load: %v", err)
		return domain.NewView(owner.Source, nil)
	}

	lines, err := s.store(owner).Load(ctx, owner)
	if err != nil {
		log.Printf("[cart-svc] load %s cart for %s: %v", owner.Source, owner.Key(), err)
		return domain.NewView(owner.Source, nil)
	}
	return domain.NewView(owner.Source, lines)
}

func (s *CartService) Add(ctx context.Context, session domain.Session, dish domain.Dish, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}

	owner, err := s.Resolve(session)
	if err != nil {
		s.fail(ctx, owner, "add", err, fmt.Sprintf("Could not add %s to your cart", dish.Name))
		return err
	}

	if err := s.store(owner).Add(ctx, owner, dish, quantity); err != nil {
		s.fail(ctx, owner, "add", err, fmt.Sprintf("Could not add %s to your cart", dish.Name))
		return err
	}

	s.broadcast(owner)
	s.notify(ctx, owner, domain.LevelSuccess, fmt.Sprintf("Added %s to your cart", dish.Name))
	return nil
}

// UpdateQuantity returns the line as confirmed by the store. A decrease on a
// quantity-1 line is ignored and the line comes back unchanged.
func (s *CartService) UpdateQuantity(ctx context.Context, session domain.Session, lineID string, direction domain.Direction) (domain.CartLine, error) {
	owner, err := s.Resolve(session)
	if err != nil {
		s.fail(ctx, owner, "update", err, "Could not update the quantity")
		return domain.CartLine{}, err
	}

	store := s.store(owner)
	lines, err := store.Load(ctx, owner)
	if err != nil {
		s.fail(ctx, owner, "update", err, "Could not update the quantity")
		return domain.CartLine{}, err
	}

	idx, ok := domain.FindLine(lines, lineID)
	if !ok {
		log.Printf("[cart-svc] update: line %s not in %s cart", lineID, owner.Key())
		return domain.CartLine{}, ErrLineNotFound
	}

	line := lines[idx]
	next, ok := domain.Step(line.Quantity, direction)
	if !ok {
		return line, nil
	}

	if err := store.SetQuantity(ctx, owner, lineID, direction); err != nil {
		s.fail(ctx, owner, "update", err, fmt.Sprintf("Could not update %s", line.Name))
		return line, err
	}

	line.Quantity = next
	s.broadcast(owner)
	return line, nil
}

func (s *CartService) Remove(ctx context.Context, session domain.Session, lineID string) error {
	owner, err := s.Resolve(session)
	if err != nil {
		s.fail(ctx, owner, "remove", err, "Could not remove the item")
		return err
	}

	store := s.store(owner)
	lines, err := store.Load(ctx, owner)
	if err != nil {
		s.fail(ctx, owner, "remove", err, "Could not remove the item")
		return err
	}

	idx, ok := domain.FindLine(lines, lineID)
	if !ok {
		return nil
	}

	if err := store.Remove(ctx, owner, lineID); err != nil {
		s.fail(ctx, owner, "remove", err, fmt.Sprintf("Could not remove %s", lines[idx].Name))
		return err
	}

	s.broadcast(owner)
	return nil
}

func (s *CartService) broadcast(owner domain.Owner) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(domain.CartEvent{
		Kind:   domain.EventCartUpdated,
		Owner:  owner.Key(),
		Source: owner.Source,
		Origin: s.origin,
		At:     time.Now(),
	})
}

func (s *CartService) fail(ctx context.Context, owner domain.Owner, op string, err error, message string) {
	log.Printf("[cart-svc] %s failed for %s: %v", op, owner.Key(), err)
	s.notify(ctx, owner, domain.LevelError, message)
}

func (s *CartService) notify(ctx context.Context, owner domain.Owner, level domain.NotificationLevel, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		Level:   level,
		Message: message,
		Owner:   owner.Key(),
		At:      time.Now(),
	})
}
