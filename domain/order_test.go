package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_TotalDerivedFromItems(t *testing.T) {
	items := []OrderItem{
		{ProductID: 1, Quantity: 3, UnitPrice: 400},
		{ProductID: 2, Quantity: 1, UnitPrice: 1999},
	}

	order, err := NewOrder(7, items, "", time.Now())
	require.NoError(t, err)

	assert.Equal(t, Money(3199), order.TotalAmount)
	assert.NoError(t, order.Verify())
}

func TestOrder_VerifyDetectsDrift(t *testing.T) {
	order, err := NewOrder(7, []OrderItem{{ProductID: 1, Quantity: 2, UnitPrice: 100}}, "", time.Now())
	require.NoError(t, err)
	order.TotalAmount = 150

	assert.Error(t, order.Verify())
}

func TestCartView_Total(t *testing.T) {
	view, err := NewCartView(1, []CartLine{
		{Item: CartItem{Quantity: 2}, Product: Product{Price: 250}},
		{Item: CartItem{Quantity: 1}, Product: Product{Price: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, Money(600), view.Total)

	empty, err := NewCartView(1, nil)
	require.NoError(t, err)
	assert.Equal(t, Money(0), empty.Total)
}

func TestTotals_RejectOverflow(t *testing.T) {
	huge := Money(math.MaxInt64 / 2)

	_, err := NewOrder(7, []OrderItem{{ProductID: 1, Quantity: 3, UnitPrice: huge}}, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// each line fits, the sum does not
	_, err = NewOrder(7, []OrderItem{
		{ProductID: 1, Quantity: 1, UnitPrice: huge},
		{ProductID: 2, Quantity: 1, UnitPrice: huge},
		{ProductID: 3, Quantity: 1, UnitPrice: huge},
	}, "", time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = NewCartView(1, []CartLine{{Item: CartItem{Quantity: 3}, Product: Product{Price: huge}}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo("", CheckoutStateCollected))
	assert.True(t, CanTransitionTo(CheckoutStateCollected, CheckoutStateValidated))
	assert.True(t, CanTransitionTo(CheckoutStateValidated, CheckoutStateCommitted))
	assert.True(t, CanTransitionTo(CheckoutStateCollected, CheckoutStateAborted))

	assert.False(t, CanTransitionTo(CheckoutStateCollected, CheckoutStateCommitted))
	assert.False(t, CanTransitionTo(CheckoutStateCommitted, CheckoutStateAborted))
	assert.False(t, CanTransitionTo(CheckoutStateAborted, CheckoutStateCollected))
	assert.True(t, CheckoutStateAborted.IsTerminal())
}
