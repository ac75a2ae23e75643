package domain

import (
	"fmt"
	"time"
)

// OrderItem is a line of a placed order. UnitPrice is the catalog price
// observed at checkout and never follows later price changes.
type OrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   Money  `json:"unit_price"`
}

func (i OrderItem) Subtotal() (Money, error) {
	return i.UnitPrice.Times(i.Quantity)
}

// Order is immutable once created.
type Order struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user_id"`
	TotalAmount    Money       `json:"total_amount"`
	IdempotencyKey string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
	Items          []OrderItem `json:"items"`
}

// NewOrder builds an order whose total is derived from its items.
func NewOrder(userID int64, items []OrderItem, idempotencyKey string, now time.Time) (*Order, error) {
	total, err := SumItems(items)
	if err != nil {
		return nil, err
	}
	return &Order{
		UserID:         userID,
		TotalAmount:    total,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      now,
		Items:          items,
	}, nil
}

func SumItems(items []OrderItem) (Money, error) {
	var total Money
	for _, item := range items {
		subtotal, err := item.Subtotal()
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(subtotal); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Verify reports a stored total that drifted from its items.
func (o *Order) Verify() error {
	sum, err := SumItems(o.Items)
	if err != nil {
		return fmt.Errorf("order %d: %w", o.ID, err)
	}
	if sum != o.TotalAmount {
		return fmt.Errorf("order %d total %s does not match items sum %s", o.ID, o.TotalAmount, sum)
	}
	return nil
}
