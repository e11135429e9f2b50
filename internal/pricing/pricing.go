package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrUnsupportedAmount = errors.New("unsupported amount")
)

// Service maps recharge face amounts to commercially negotiated fees.
// The table is an allow-list on purpose: price points without an agreed
// fee are not sellable, there is no formula to fall back on.
type Service struct {
	fees map[string]decimal.Decimal
}

type Quote struct {
	Amount decimal.Decimal
	Fee    decimal.Decimal
	Total  decimal.Decimal
}

func New(tiers map[string]string) (Service, error) {
	fees := make(map[string]decimal.Decimal, len(tiers))
	for amount, fee := range tiers {
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return Service{}, fmt.Errorf("pricing tier amount %q: %w", amount, err)
		}
		f, err := decimal.NewFromString(fee)
		if err != nil {
			return Service{}, fmt.Errorf("pricing tier fee %q: %w", fee, err)
		}
		if f.IsNegative() {
			return Service{}, fmt.Errorf("pricing tier %q has negative fee", amount)
		}
		fees[tierKey(a)] = f
	}
	return Service{fees: fees}, nil
}

func (s Service) Quote(amount decimal.Decimal) (Quote, error) {
	if !amount.IsPositive() {
		return Quote{}, ErrInvalidAmount
	}
	fee, ok := s.fees[tierKey(amount)]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedAmount, amount.StringFixed(2))
	}
	return Quote{
		Amount: amount.Round(2),
		Fee:    fee,
		Total:  amount.Add(fee).Round(2),
	}, nil
}

func tierKey(amount decimal.Decimal) string {
	return amount.Round(2).StringFixed(2)
}
