package domain

// Events written to the outbox alongside payment transitions. Consumers
// (user notifications, admin alerts) act on them after the fact; none of
// them participate in the credit transaction itself.

type PaymentCredited struct {
	PaymentID         string
	ExternalReference string
	AccountID         string
	CreditDelta       int64
}

type PaymentClosed struct {
	PaymentID         string
	ExternalReference string
	AccountID         string
	Status            string
}
