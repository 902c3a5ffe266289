package service

import (
	"context"

	"overcooked-storefront/cart-svc/internal/domain"
)

// CartStore is one backing store for a cart. RemoteStore and LocalStore both
// satisfy it so the service never branches on the source itself.
type CartStore interface {
	Source() domain.CartSource
	Load(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error)
	Add(ctx context.Context, owner domain.Owner, dish domain.Dish, quantity int) error
	SetQuantity(ctx context.Context, owner domain.Owner, lineID string, direction domain.Direction) error
	Remove(ctx context.Context, owner domain.Owner, lineID string) error
}

type DishCatalog interface {
	GetDish(ctx context.Context, dishID string) (*domain.Dish, error)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

type EventPublisher interface {
	Publish(evt domain.CartEvent)
}

type CartServiceInterface interface {
	Resolve(session domain.Session) (domain.Owner, error)
	Load(ctx context.Context, session domain.Session) domain.CartView
	Add(ctx context.Context, session domain.Session, dish domain.Dish, quantity int) error
	UpdateQuantity(ctx context.Context, session domain.Session, lineID string, direction domain.Direction) (domain.CartLine, error)
	Remove(ctx context.Context, session domain.Session, lineID string) error
}

var _ CartServiceInterface = (*CartService)(nil)
