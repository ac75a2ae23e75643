package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/domain"
)

// CreateOrder inserts the order header and its items, filling in the
// generated ids.
func (t *sqlTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	var key sql.NullString
	if order.IdempotencyKey != "" {
		key = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	query := `
		INSERT INTO orders (user_id, total_cents, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := t.q.QueryRowContext(ctx, query, order.UserID, int64(order.TotalAmount), key, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		if isUniqueViolation(err) {
			// a concurrent checkout with the same key committed first
			return fmt.Errorf("%w: duplicate idempotency key: %w", ErrRetryable, err)
		}
		return fmt.Errorf("failed to insert order: %w", classify(err))
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		err := t.q.QueryRowContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.ProductName, item.Quantity, int64(item.UnitPrice),
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", classify(err))
		}
	}
	return nil
}

func (t *sqlTx) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	query := `
		SELECT id, user_id, total_cents, idempotency_key, created_at
		FROM orders
		WHERE user_id = $1 AND idempotency_key = $2
	`
	order, err := scanOrder(t.q.QueryRowContext(ctx, query, userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", classify(err))
	}
	if order.Items, err = t.orderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	t := r.reader()
	query := `
		SELECT id, user_id, total_cents, idempotency_key, created_at
		FROM orders
		WHERE id = $1
	`
	order, err := scanOrder(t.q.QueryRowContext(ctx, query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", classify(err))
	}
	if order.Items, err = t.orderItems(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrdersByUserID returns the user's orders newest first.
func (r *Repository) ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	t := r.reader()
	query := `
		SELECT id, user_id, total_cents, idempotency_key, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := t.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", classify(err))
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", classify(err))
	}
	rows.Close()

	for _, order := range orders {
		if order.Items, err = t.orderItems(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		order domain.Order
		total int64
		key   sql.NullString
	)
	if err := row.Scan(&order.ID, &order.UserID, &total, &key, &order.CreatedAt); err != nil {
		return nil, err
	}
	order.TotalAmount = domain.Money(total)
	order.IdempotencyKey = key.String
	return &order, nil
}

func (t *sqlTx) orderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	rows, err := t.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", classify(err))
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item  domain.OrderItem
			price int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.UnitPrice = domain.Money(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", classify(err))
	}
	return items, nil
}
