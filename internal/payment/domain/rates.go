package domain

import "math"

type Currency string

const (
	INR Currency = "INR"
	USD Currency = "USD"
)

// RateTable converts provider-native amounts into credits. Amounts come in
// the currency's minor units; one major unit of INR is one credit, one major
// unit of USD is USDRate credits. The result is persisted on the payment at
// creation, so a later rate change never touches already-created payments.
type RateTable struct {
	rates map[Currency]float64
}

func NewRateTable(usdRate float64) RateTable {
	return RateTable{rates: map[Currency]float64{
		INR: 1.0,
		USD: usdRate,
	}}
}

func (t RateTable) Normalize(amountMinor int64, currency Currency) (int64, error) {
	rate, ok := t.rates[currency]
	if !ok {
		return 0, ErrUnsupportedCurrency
	}
	return int64(math.Round(float64(amountMinor) / 100 * rate)), nil
}
