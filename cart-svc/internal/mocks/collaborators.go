package mocks

import (
	"context"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/stretchr/testify/mock"
)

type DishCatalog struct {
	mock.Mock
}

func NewDishCatalog(t interface {
	mock.TestingT
	Cleanup(func())
}) *DishCatalog {
	m := &DishCatalog{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *DishCatalog) GetDish(ctx context.Context, dishID string) (*domain.Dish, error) {
	args := m.Called(ctx, dishID)
	var dish *domain.Dish
	if v := args.Get(0); v != nil {
		dish = v.(*domain.Dish)
	}
	return dish, args.Error(1)
}

type Notifier struct {
	mock.Mock
}

func NewNotifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *Notifier {
	m := &Notifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Notifier) Notify(ctx context.Context, n domain.Notification) {
	m.Called(ctx, n)
}

type EventPublisher struct {
	mock.Mock
}

func NewEventPublisher(t interface {
	mock.TestingT
	Cleanup(func())
}) *EventPublisher {
	m := &EventPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *EventPublisher) Publish(evt domain.CartEvent) {
	m.Called(evt)
}
