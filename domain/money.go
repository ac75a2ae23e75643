package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

const minorUnitExp = -2

var ErrInvalidAmount = errors.New("invalid money amount")

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), minorUnitExp)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(-minorUnitExp)
}

// Times returns the line amount for qty units priced at m. A product that
// does not fit in int64 minor units is rejected.
func (m Money) Times(qty int32) (Money, error) {
	product := int64(m) * int64(qty)
	if qty != 0 && (product/int64(qty) != int64(m) || (qty == -1 && int64(m) == math.MinInt64)) {
		return 0, fmt.Errorf("%w: %s x %d overflows", ErrInvalidAmount, m, qty)
	}
	return Money(product), nil
}

// Add returns m+o, rejecting int64 overflow.
func (m Money) Add(o Money) (Money, error) {
	sum := m + o
	if (o > 0 && sum < m) || (o < 0 && sum > m) {
		return 0, fmt.Errorf("%w: %s + %s overflows", ErrInvalidAmount, m, o)
	}
	return sum, nil
}

// ParseMoney parses a decimal string such as "4.00" into minor units.
// Amounts with more precision than a cent are rejected rather than rounded.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	shifted := d.Shift(-minorUnitExp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q has sub-cent precision", ErrInvalidAmount, s)
	}
	return Money(shifted.IntPart()), nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
