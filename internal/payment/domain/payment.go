package domain

import "time"

type Provider string

const (
	ProviderRazorpay Provider = "razorpay"
	ProviderOxapay   Provider = "oxapay"
)

// Valid reports whether p names a configured provider. Persisted provider
// values only ever come from this set.
func (p Provider) Valid() bool {
	switch p {
	case ProviderRazorpay, ProviderOxapay:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCredited  Status = "credited"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCredited, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// Payment is one payment attempt. ExternalReference is the provider-issued
// identifier and the idempotency key: it is unique across all payments, so a
// redelivered notification always lands on the same row. CreditDelta is
// computed once from the rate table at creation and never recomputed.
type Payment struct {
	ID                string
	Provider          Provider
	ExternalReference string
	AccountID         string
	RequestedAmount   int64 // provider minor units (paise, cents)
	Currency          Currency
	CreditDelta       int64
	Status            Status
	CreatedAt         time.Time
	CreditedAt        *time.Time
}

func NewPayment(id string, provider Provider, externalRef, accountID string, amount int64, currency Currency, creditDelta int64) Payment {
	return Payment{
		ID:                id,
		Provider:          provider,
		ExternalReference: externalRef,
		AccountID:         accountID,
		RequestedAmount:   amount,
		Currency:          currency,
		CreditDelta:       creditDelta,
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}
}

// statusTransitionChart is the only source of truth for which payment
// transitions exist. The store enforces the same chart with its update
// preconditions; this map is what the engine consults before writing.
var statusTransitionChart = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCredited, StatusFailed, StatusExpired},
	StatusConfirmed: {StatusCredited},
}

// TransitionAllowed reports whether from may move to to.
func TransitionAllowed(from, to Status) bool {
	for _, s := range statusTransitionChart[from] {
		if s == to {
			return true
		}
	}
	return false
}
