package mocks

import (
	"context"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/stretchr/testify/mock"
)

type CartStore struct {
	mock.Mock
}

func NewCartStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *CartStore {
	m := &CartStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *CartStore) Source() domain.CartSource {
	args := m.Called()
	return args.Get(0).(domain.CartSource)
}

func (m *CartStore) Load(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	args := m.Called(ctx, owner)
	var lines []domain.CartLine
	if v := args.Get(0); v != nil {
		lines = v.([]domain.CartLine)
	}
	return lines, args.Error(1)
}

func (m *CartStore) Add(ctx context.Context, owner domain.Owner, dish domain.Dish, quantity int) error {
	return m.Called(ctx, owner, dish, quantity).Error(0)
}

func (m *CartStore) SetQuantity(ctx context.Context, owner domain.Owner, lineID string, direction domain.Direction) error {
	return m.Called(ctx, owner, lineID, direction).Error(0)
}

func (m *CartStore) Remove(ctx context.Context, owner domain.Owner, lineID string) error {
	return m.Called(ctx, owner, lineID).Error(0)
}
