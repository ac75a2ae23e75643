package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
)

func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	query := `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id
	`
	if err := r.db.QueryRowContext(ctx, query, c.Name, c.Description).Scan(&c.ID); err != nil {
		return fmt.Errorf("failed to insert category: %w", classify(err))
	}
	return nil
}

func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.Stock < 0 {
		return fmt.Errorf("failed to insert product: negative stock %d", p.Stock)
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	query := `
		INSERT INTO products (name, description, price_cents, stock, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, int64(p.Price), p.Stock, p.CategoryID, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", classify(err))
	}
	return nil
}

// SetProductPrice changes the list price. Existing order items keep the
// price captured at checkout.
func (r *Repository) SetProductPrice(ctx context.Context, productID int64, price domain.Money) error {
	if price < 0 {
		return fmt.Errorf("failed to update price: %w", domain.ErrInvalidAmount)
	}
	query := `UPDATE products SET price_cents = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, int64(price), time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("failed to update price: %w", classify(err))
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *Repository) SetProductStock(ctx context.Context, productID int64, stock int32) error {
	if stock < 0 {
		return fmt.Errorf("failed to update stock: negative stock %d", stock)
	}
	query := `UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, stock, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", classify(err))
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return r.reader().GetProduct(ctx, id)
}

func (t *sqlTx) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price_cents, stock, category_id, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	p := &domain.Product{}
	var price int64
	err := t.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&price,
		&p.Stock,
		&p.CategoryID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", classify(err))
	}
	p.Price = domain.Money(price)
	return p, nil
}

// DecrementStock subtracts qty only while enough stock remains. Zero rows
// affected means another transaction got there first.
func (t *sqlTx) DecrementStock(ctx context.Context, productID int64, qty int32, now time.Time) error {
	query := `
		UPDATE products
		SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND stock >= $1
	`
	res, err := t.q.ExecContext(ctx, query, qty, now, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", classify(err))
	}
	return expectOneRow(res, ErrStockGuard)
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
