package domain

import "time"

// CartItem is one (user, product) row of a cart. A cart never holds two rows
// for the same product; adding merges quantities.
type CartItem struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine is a cart row joined with the current state of its product.
type CartLine struct {
	Item    CartItem
	Product Product
}

func (l CartLine) Subtotal() (Money, error) {
	return l.Product.Price.Times(l.Item.Quantity)
}

// CartView is the priced cart as shown to its owner. Prices are live
// catalog prices, not frozen ones.
type CartView struct {
	UserID int64
	Lines  []CartLine
	Total  Money
}

func NewCartView(userID int64, lines []CartLine) (*CartView, error) {
	view := &CartView{UserID: userID, Lines: lines}
	for _, l := range lines {
		subtotal, err := l.Subtotal()
		if err != nil {
			return nil, err
		}
		if view.Total, err = view.Total.Add(subtotal); err != nil {
			return nil, err
		}
	}
	return view, nil
}
