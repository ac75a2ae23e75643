package service

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/rs/zerolog"
)

type OrderService struct {
	store       repository.Store
	log         zerolog.Logger
	maxAttempts int
}

func NewOrderService(store repository.Store, log zerolog.Logger, maxAttempts int) *OrderService {
	return &OrderService{
		store:       store,
		log:         log.With().Str("component", "orders").Logger(),
		maxAttempts: maxAttempts,
	}
}

// GetOrder loads an order with its items. When ownerID is non-zero an
// order belonging to someone else is reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, orderID, ownerID int64) (*domain.Order, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: order id must be positive", ErrInvalidArgument)
	}

	var order *domain.Order
	_, err := withRetry(ctx, s.maxAttempts, s.log, func() error {
		var err error
		order, err = s.store.GetOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	if ownerID != 0 && order.UserID != ownerID {
		s.log.Debug().Int64("order_id", orderID).Int64("owner_id", ownerID).Msg("order requested by non-owner")
		return nil, fmt.Errorf("order %w", ErrNotFound)
	}
	if err := order.Verify(); err != nil {
		s.log.Error().Err(err).Int64("order_id", orderID).Msg("stored order total drifted from items")
	}
	return order, nil
}

// ListOrders returns the user's orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID int64) ([]*domain.Order, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	var orders []*domain.Order
	_, err := withRetry(ctx, s.maxAttempts, s.log, func() error {
		var err error
		orders, err = s.store.ListOrdersByUserID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, mapStoreError(err)
	}
	return orders, nil
}
