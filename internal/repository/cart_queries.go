package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
)

const cartItemColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }) (*domain.CartItem, error) {
	item := &domain.CartItem{}
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.ProductID,
		&item.Quantity,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (t *sqlTx) GetCartItem(ctx context.Context, userID, itemID int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE id = $1 AND user_id = $2`
	item, err := scanCartItem(t.q.QueryRowContext(ctx, query, itemID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart item: %w", classify(err))
	}
	return item, nil
}

func (t *sqlTx) GetCartItemByProduct(ctx context.Context, userID, productID int64) (*domain.CartItem, error) {
	query := `SELECT ` + cartItemColumns + ` FROM cart_items WHERE user_id = $1 AND product_id = $2`
	item, err := scanCartItem(t.q.QueryRowContext(ctx, query, userID, productID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cart item: %w", classify(err))
	}
	return item, nil
}

// AddCartQuantity inserts the (user, product) row or adds qty to the
// existing one.
func (t *sqlTx) AddCartQuantity(ctx context.Context, userID, productID int64, qty int32, now time.Time) (*domain.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + excluded.quantity, updated_at = excluded.updated_at
		RETURNING ` + cartItemColumns
	item, err := scanCartItem(t.q.QueryRowContext(ctx, query, userID, productID, qty, now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", classify(err))
	}
	return item, nil
}

func (t *sqlTx) SetCartItemQuantity(ctx context.Context, userID, itemID int64, qty int32, now time.Time) (*domain.CartItem, error) {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING ` + cartItemColumns
	item, err := scanCartItem(t.q.QueryRowContext(ctx, query, qty, now, itemID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", classify(err))
	}
	return item, nil
}

func (t *sqlTx) DeleteCartItem(ctx context.Context, userID, itemID int64) (bool, error) {
	res, err := t.q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTx) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	return t.cartLines(ctx, userID, t.dialect == DialectPostgres)
}

func (r *Repository) CartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	return r.reader().cartLines(ctx, userID, false)
}

func (t *sqlTx) cartLines(ctx context.Context, userID int64, forUpdate bool) ([]domain.CartLine, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
		       p.id, p.name, p.description, p.price_cents, p.stock, p.category_id, p.created_at, p.updated_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY p.id, c.id
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := t.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart: %w", classify(err))
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var (
			line  domain.CartLine
			price int64
		)
		err := rows.Scan(
			&line.Item.ID,
			&line.Item.UserID,
			&line.Item.ProductID,
			&line.Item.Quantity,
			&line.Item.CreatedAt,
			&line.Item.UpdatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Description,
			&price,
			&line.Product.Stock,
			&line.Product.CategoryID,
			&line.Product.CreatedAt,
			&line.Product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", classify(err))
		}
		line.Product.Price = domain.Money(price)
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", classify(err))
	}
	return lines, nil
}
