package http

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/domain"
)

type MockCartService struct {
	view    *domain.CartView
	item    *domain.CartItem
	deleted bool
	err     error

	lastUserID int64
	lastQty    int32
}

func (m *MockCartService) ViewCart(_ context.Context, userID int64) (*domain.CartView, error) {
	m.lastUserID = userID
	return m.view, m.err
}

func (m *MockCartService) AddToCart(_ context.Context, userID, _ int64, qty int32) (*domain.CartItem, error) {
	m.lastUserID, m.lastQty = userID, qty
	return m.item, m.err
}

func (m *MockCartService) UpdateCartItem(_ context.Context, userID, _ int64, qty int32) (*domain.CartItem, bool, error) {
	m.lastUserID, m.lastQty = userID, qty
	return m.item, m.deleted, m.err
}

func (m *MockCartService) RemoveCartItem(_ context.Context, userID, _ int64) error {
	m.lastUserID = userID
	return m.err
}

type MockCheckoutService struct {
	order   *domain.Order
	err     error
	lastKey string
}

func (m *MockCheckoutService) Checkout(_ context.Context, _ int64, key string) (*domain.Order, error) {
	m.lastKey = key
	return m.order, m.err
}

type MockOrderService struct {
	order  *domain.Order
	orders []*domain.Order
	err    error
}

func (m *MockOrderService) GetOrder(_ context.Context, _, _ int64) (*domain.Order, error) {
	return m.order, m.err
}

func (m *MockOrderService) ListOrders(_ context.Context, _ int64) ([]*domain.Order, error) {
	return m.orders, m.err
}

// staticAuthenticator accepts exactly one token.
type staticAuthenticator struct {
	token  string
	userID int64
}

func (a staticAuthenticator) Authenticate(_ context.Context, credential string) (int64, error) {
	if credential != a.token {
		return 0, errors.New("bad token")
	}
	return a.userID, nil
}
