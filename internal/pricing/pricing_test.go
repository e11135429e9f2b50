package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(t *testing.T) Service {
	t.Helper()
	svc, err := New(map[string]string{
		"5.00":  "1.00",
		"10.00": "1.50",
		"20.00": "2.30",
	})
	require.NoError(t, err)
	return svc
}

func TestQuoteConfiguredTier(t *testing.T) {
	svc := testService(t)

	q, err := svc.Quote(decimal.RequireFromString("10.00"))
	require.NoError(t, err)
	assert.True(t, q.Fee.Equal(decimal.RequireFromString("1.5")), "fee = %s", q.Fee)
	assert.True(t, q.Total.Equal(decimal.RequireFromString("11.5")), "total = %s", q.Total)
}

func TestQuoteMatchesRegardlessOfScale(t *testing.T) {
	svc := testService(t)

	// "10" and "10.00" are the same price point.
	q, err := svc.Quote(decimal.RequireFromString("10"))
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(decimal.RequireFromString("11.50")))
}

func TestQuoteUnconfiguredAmount(t *testing.T) {
	svc := testService(t)

	_, err := svc.Quote(decimal.RequireFromString("7.23"))
	assert.ErrorIs(t, err, ErrUnsupportedAmount)
}

func TestQuoteInvalidAmount(t *testing.T) {
	svc := testService(t)

	for _, amount := range []string{"0", "-5"} {
		_, err := svc.Quote(decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}
}

func TestNewRejectsBadTiers(t *testing.T) {
	_, err := New(map[string]string{"10.00": "abc"})
	assert.Error(t, err)

	_, err = New(map[string]string{"10.00": "-1"})
	assert.Error(t, err)
}
