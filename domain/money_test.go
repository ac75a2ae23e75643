package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "4.00", want: 400},
		{in: "4", want: 400},
		{in: "0.1", want: 10},
		{in: "12.34", want: 1234},
		{in: "0.001", wantErr: true},
		{in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoney_String(t *testing.T) {
	assert.Equal(t, "12.00", Money(1200).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "1234.56", Money(123456).String())
}

func TestMoney_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: 1999})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"19.99"}`, string(data))

	var m Money
	require.NoError(t, json.Unmarshal([]byte(`"7.50"`), &m))
	assert.Equal(t, Money(750), m)

	assert.Error(t, json.Unmarshal([]byte(`7.50`), &m))
}

func TestMoney_TimesAvoidsFloatDrift(t *testing.T) {
	// 0.10 * 3 in float64 is 0.30000000000000004
	got, err := Money(10).Times(3)
	require.NoError(t, err)
	assert.Equal(t, "0.30", got.String())
}

func TestMoney_RejectsOverflow(t *testing.T) {
	_, err := Money(math.MaxInt64 / 2).Times(3)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Money(math.MaxInt64).Add(1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Money(math.MinInt64).Add(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	sum, err := Money(math.MaxInt64 - 1).Add(1)
	require.NoError(t, err)
	assert.Equal(t, Money(math.MaxInt64), sum)
}
