package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const EventOrderPlaced = "order.placed"

// CheckoutObserver receives one call per Checkout with its outcome label.
type CheckoutObserver interface {
	ObserveCheckout(outcome string, attempts int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCheckout(string, int, time.Duration) {}

type CheckoutService struct {
	store       repository.Store
	cache       cache.CartCache
	observer    CheckoutObserver
	log         zerolog.Logger
	maxAttempts int
	now         func() time.Time
}

type CheckoutOption func(*CheckoutService)

func WithObserver(o CheckoutObserver) CheckoutOption {
	return func(s *CheckoutService) { s.observer = o }
}

func WithMaxAttempts(n int) CheckoutOption {
	return func(s *CheckoutService) { s.maxAttempts = n }
}

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func NewCheckoutService(store repository.Store, c cache.CartCache, log zerolog.Logger, opts ...CheckoutOption) *CheckoutService {
	if c == nil {
		c = cache.NopCache{}
	}
	s := &CheckoutService{
		store:       store,
		cache:       c,
		observer:    nopObserver{},
		log:         log.With().Str("component", "checkout").Logger(),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OrderPlacedEvent is the outbox payload written with every new order.
type OrderPlacedEvent struct {
	OrderID     int64              `json:"order_id"`
	UserID      int64              `json:"user_id"`
	TotalAmount domain.Money       `json:"total_amount"`
	Items       []domain.OrderItem `json:"items"`
	CreatedAt   time.Time          `json:"created_at"`
}

// checkoutRun tracks one transaction attempt through its states.
type checkoutRun struct {
	state    domain.CheckoutState
	order    *domain.Order
	replayed bool
	log      zerolog.Logger
}

func (r *checkoutRun) transition(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(r.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.state, to)
	}
	r.log.Debug().Stringer("from", r.state).Stringer("to", to).Msg("checkout state")
	r.state = to
	return nil
}

// Checkout converts the user's cart into an order in one transaction:
// the cart is read under lock, stock is validated, the order and its
// price-frozen items are written, stock is decremented, the rows that
// were read are removed from the cart and an order.placed event is queued.
// Any failure leaves the store untouched.
//
// With a non-empty idempotencyKey a repeated call returns the order
// created by the first one.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, idempotencyKey string) (*domain.Order, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}

	start := s.now()
	log := s.log.With().Int64("user_id", userID).Logger()

	var run *checkoutRun
	attempts, err := withRetry(ctx, s.maxAttempts, log, func() error {
		run = &checkoutRun{log: log}
		return s.attempt(ctx, run, userID, idempotencyKey)
	})

	outcome := checkoutOutcome(err, run != nil && run.replayed)
	s.observer.ObserveCheckout(outcome, attempts, s.now().Sub(start))

	if err != nil {
		if run != nil && run.state != domain.CheckoutStateAborted {
			_ = run.transition(domain.CheckoutStateAborted)
		}
		ev := log.Warn()
		if errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrInsufficientStock) {
			ev = log.Info()
		}
		ev.Err(err).Str("outcome", outcome).Int("attempts", attempts).Msg("checkout aborted")
		return nil, mapStoreError(err)
	}

	if run.replayed {
		log.Info().Int64("order_id", run.order.ID).Msg("checkout replayed by idempotency key")
		return run.order, nil
	}

	if err := run.transition(domain.CheckoutStateCommitted); err != nil {
		return nil, err
	}
	invalidateCart(s.cache, s.log, userID)
	log.Info().
		Int64("order_id", run.order.ID).
		Str("total", run.order.TotalAmount.String()).
		Int("items", len(run.order.Items)).
		Int("attempts", attempts).
		Msg("checkout committed")
	return run.order, nil
}

func (s *CheckoutService) attempt(ctx context.Context, run *checkoutRun, userID int64, key string) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		lines, err := tx.LockCartLines(ctx, userID)
		if err != nil {
			return err
		}
		if err := run.transition(domain.CheckoutStateCollected); err != nil {
			return err
		}

		if key != "" {
			existing, err := tx.GetOrderByIdempotencyKey(ctx, userID, key)
			switch {
			case err == nil:
				run.order, run.replayed = existing, true
				return nil
			case !errors.Is(err, repository.ErrOrderNotFound):
				return err
			}
		}

		if len(lines) == 0 {
			return ErrEmptyCart
		}

		demand := aggregateDemand(lines)
		if err := validateStock(demand); err != nil {
			return err
		}
		if err := run.transition(domain.CheckoutStateValidated); err != nil {
			return err
		}

		now := s.now().UTC()
		order, err := domain.NewOrder(userID, snapshotItems(lines), key, now)
		if err != nil {
			return fmt.Errorf("%w: order total: %w", ErrInvalidArgument, err)
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		for _, d := range demand {
			err := tx.DecrementStock(ctx, d.product.ID, int32(d.quantity), now)
			if errors.Is(err, repository.ErrStockGuard) {
				// stock moved after the cart read; report what is left now
				current, err := tx.GetProduct(ctx, d.product.ID)
				if err != nil {
					return err
				}
				return &InsufficientStockError{ProductID: d.product.ID, Name: d.product.Name, Requested: d.quantity, Available: current.Stock}
			}
			if err != nil {
				return err
			}
		}

		// only the rows read above; anything added meanwhile stays in the cart
		for _, l := range lines {
			if _, err := tx.DeleteCartItem(ctx, userID, l.Item.ID); err != nil {
				return err
			}
		}

		event, err := orderPlacedEvent(order)
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return err
		}

		run.order = order
		return nil
	})
}

type productDemand struct {
	product  domain.Product
	quantity int64
}

// aggregateDemand sums quantities per product, keeping first-seen order so
// locks and decrements follow product id order.
func aggregateDemand(lines []domain.CartLine) []*productDemand {
	byID := make(map[int64]*productDemand, len(lines))
	var out []*productDemand
	for _, l := range lines {
		d, ok := byID[l.Product.ID]
		if !ok {
			d = &productDemand{product: l.Product}
			byID[l.Product.ID] = d
			out = append(out, d)
		}
		d.quantity += int64(l.Item.Quantity)
	}
	return out
}

func validateStock(demand []*productDemand) error {
	for _, d := range demand {
		if d.quantity > int64(d.product.Stock) {
			return &InsufficientStockError{
				ProductID: d.product.ID,
				Name:      d.product.Name,
				Requested: d.quantity,
				Available: d.product.Stock,
			}
		}
	}
	return nil
}

// snapshotItems freezes name and unit price per cart row.
func snapshotItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Item.Quantity,
			UnitPrice:   l.Product.Price,
		})
	}
	return items
}

func orderPlacedEvent(order *domain.Order) (*repository.OutboxEvent, error) {
	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
		CreatedAt:   order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order event: %w", err)
	}
	return &repository.OutboxEvent{
		EventID:     uuid.NewString(),
		AggregateID: strconv.FormatInt(order.ID, 10),
		EventType:   EventOrderPlaced,
		Payload:     payload,
		CreatedAt:   order.CreatedAt,
	}, nil
}

func checkoutOutcome(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "committed"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, repository.ErrCommitFailed), errors.Is(err, repository.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, repository.ErrRetryable):
		return "conflict"
	case errors.Is(err, repository.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}
