package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/domain"
)

// CartCache holds rendered cart views keyed by user. Entries are dropped on
// every cart mutation and after checkout.
//
// Every Delete bumps the user's generation. A view loaded from the store is
// only stored when the generation read before the load is still current, so
// a view that raced with a mutation is never written back.
type CartCache interface {
	Get(ctx context.Context, userID int64) (*domain.CartView, error)
	Generation(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, view *domain.CartView, generation int64) error
	Delete(ctx context.Context, userID int64) error
}

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrStaleGeneration = errors.New("cart changed while the view was loaded")
)

// NopCache is used when no redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.CartView, error) { return nil, ErrCacheMiss }
func (NopCache) Generation(context.Context, int64) (int64, error)      { return 0, nil }
func (NopCache) Set(context.Context, *domain.CartView, int64) error   { return nil }
func (NopCache) Delete(context.Context, int64) error                  { return nil }
