package application

import (
	"context"
	"time"

	"github.com/devansh-sx/optishop/internal/payment/domain"
)

// PaymentRepository is the ledger-store surface the engine writes through.
// Every mutating call is a conditional update: it reports whether the write
// applied so the engine can distinguish "I won" from "someone else already
// did this". Credit and the balance increment happen in one transaction.
type PaymentRepository interface {
	GetByReference(ctx context.Context, externalRef string) (domain.Payment, error)

	// Create inserts a pending payment. It reports false without error when
	// a payment with the same external reference already exists.
	Create(ctx context.Context, p domain.Payment) (bool, error)

	// Confirm moves pending → confirmed.
	Confirm(ctx context.Context, externalRef string) (bool, error)

	// Credit moves {pending, confirmed} → credited and increments the
	// account balance by the stored credit delta, atomically.
	Credit(ctx context.Context, externalRef string, traceparent string) (bool, error)

	// Close moves pending → failed or expired. No balance effect.
	Close(ctx context.Context, externalRef string, to domain.Status, traceparent string) (bool, error)

	// ExpireStale closes every pending payment created before the cutoff.
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type AccountProvisioner interface {
	Ensure(ctx context.Context, accountID string) error
}

// Verifier authenticates one provider's raw callback and extracts the
// canonical notification. Verification runs over the untouched body bytes.
type Verifier interface {
	Verify(raw []byte, authToken string) (domain.Notification, error)
}
