package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	store       repository.Store
	cache       cache.CartCache
	sfg         singleflight.Group // Prevents cache stampede
	log         zerolog.Logger
	maxAttempts int
	now         func() time.Time
}

func NewCartService(store repository.Store, c cache.CartCache, log zerolog.Logger, maxAttempts int) *CartService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &CartService{
		store:       store,
		cache:       c,
		log:         log.With().Str("component", "cart").Logger(),
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// ViewCart returns the user's cart priced at current catalog prices.
func (s *CartService) ViewCart(ctx context.Context, userID int64) (*domain.CartView, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	v, err, _ := s.sfg.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		view, err := s.cache.Get(ctx, userID)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn().Err(err).Int64("user_id", userID).Msg("cart cache get failed")
		}

		// read before the load; a mutation in between makes Set a no-op
		gen, genErr := s.cache.Generation(ctx, userID)
		if genErr != nil {
			s.log.Warn().Err(genErr).Int64("user_id", userID).Msg("cart cache generation read failed")
		}

		var lines []domain.CartLine
		_, err = withRetry(ctx, s.maxAttempts, s.log, func() error {
			var err error
			lines, err = s.store.CartLines(ctx, userID)
			return err
		})
		if err != nil {
			return nil, mapStoreError(err)
		}
		view, err = domain.NewCartView(userID, lines)
		if err != nil {
			return nil, fmt.Errorf("%w: cart total: %w", ErrInvalidArgument, err)
		}

		if genErr == nil {
			err := s.cache.Set(ctx, view, gen)
			switch {
			case errors.Is(err, cache.ErrStaleGeneration):
				s.log.Debug().Int64("user_id", userID).Msg("cart changed during load, view not cached")
			case err != nil:
				s.log.Warn().Err(err).Int64("user_id", userID).Msg("cart cache set failed")
			}
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.CartView), nil
}

// AddToCart merges qty into the user's row for productID, creating it when
// absent. The cumulative quantity is checked against current stock; the
// authoritative check happens at checkout.
func (s *CartService) AddToCart(ctx context.Context, userID, productID int64, qty int32) (*domain.CartItem, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	if qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidArgument, qty)
	}

	var item *domain.CartItem
	_, err := withRetry(ctx, s.maxAttempts, s.log, func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			product, err := tx.GetProduct(ctx, productID)
			if err != nil {
				return err
			}

			var current int32
			existing, err := tx.GetCartItemByProduct(ctx, userID, productID)
			switch {
			case err == nil:
				current = existing.Quantity
			case !errors.Is(err, repository.ErrCartItemNotFound):
				return err
			}

			if want := int64(current) + int64(qty); want > int64(product.Stock) {
				return &InsufficientStockError{ProductID: product.ID, Name: product.Name, Requested: want, Available: product.Stock}
			}

			item, err = tx.AddCartQuantity(ctx, userID, productID, qty, s.now().UTC())
			return err
		})
	})
	if err != nil {
		s.log.Debug().Err(err).Int64("user_id", userID).Int64("product_id", productID).Msg("add to cart rejected")
		return nil, mapStoreError(err)
	}

	s.invalidateCache(userID)
	s.log.Info().Int64("user_id", userID).Int64("product_id", productID).Int32("quantity", item.Quantity).Msg("cart item added")
	return item, nil
}

// UpdateCartItem replaces the quantity of one of the user's rows. A
// quantity of zero or less removes the row and succeeds even if the row is
// already gone.
func (s *CartService) UpdateCartItem(ctx context.Context, userID, itemID int64, qty int32) (*domain.CartItem, bool, error) {
	if userID <= 0 {
		return nil, false, ErrUnauthenticated
	}
	if qty <= 0 {
		if err := s.RemoveCartItem(ctx, userID, itemID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	var item *domain.CartItem
	_, err := withRetry(ctx, s.maxAttempts, s.log, func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			existing, err := tx.GetCartItem(ctx, userID, itemID)
			if err != nil {
				return err
			}
			product, err := tx.GetProduct(ctx, existing.ProductID)
			if err != nil {
				return err
			}
			if qty > product.Stock {
				return &InsufficientStockError{ProductID: product.ID, Name: product.Name, Requested: int64(qty), Available: product.Stock}
			}

			item, err = tx.SetCartItemQuantity(ctx, userID, itemID, qty, s.now().UTC())
			return err
		})
	})
	if err != nil {
		return nil, false, mapStoreError(err)
	}

	s.invalidateCache(userID)
	return item, false, nil
}

// RemoveCartItem deletes one of the user's rows. Removing a missing row is
// not an error.
func (s *CartService) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	if userID <= 0 {
		return ErrUnauthenticated
	}

	var deleted bool
	_, err := withRetry(ctx, s.maxAttempts, s.log, func() error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			deleted, err = tx.DeleteCartItem(ctx, userID, itemID)
			return err
		})
	})
	if err != nil {
		return mapStoreError(err)
	}

	if deleted {
		s.invalidateCache(userID)
	}
	return nil
}

func (s *CartService) invalidateCache(userID int64) {
	invalidateCart(s.cache, s.log, userID)
}

func invalidateCart(c cache.CartCache, log zerolog.Logger, userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Delete(ctx, userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("cart cache invalidation failed")
	}
}
