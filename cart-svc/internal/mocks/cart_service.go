package mocks

import (
	"context"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/stretchr/testify/mock"
)

type CartServiceInterface struct {
	mock.Mock
}

func NewCartServiceInterface(t interface {
	mock.TestingT
	Cleanup(func())
}) *CartServiceInterface {
	m := &CartServiceInterface{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *CartServiceInterface) Resolve(session domain.Session) (domain.Owner, error) {
	args := m.Called(session)
	return args.Get(0).(domain.Owner), args.Error(1)
}

func (m *CartServiceInterface) Load(ctx context.Context, session domain.Session) domain.CartView {
	return m.Called(ctx, session).Get(0).(domain.CartView)
}

func (m *CartServiceInterface) Add(ctx context.Context, session domain.Session, dish domain.Dish, quantity int) error {
	return m.Called(ctx, session, dish, quantity).Error(0)
}

func (m *CartServiceInterface) UpdateQuantity(ctx context.Context, session domain.Session, lineID string, direction domain.Direction) (domain.CartLine, error) {
	args := m.Called(ctx, session, lineID, direction)
	return args.Get(0).(domain.CartLine), args.Error(1)
}

func (m *CartServiceInterface) Remove(ctx context.Context, session domain.Session, lineID string) error {
	return m.Called(ctx, session, lineID).Error(0)
}
