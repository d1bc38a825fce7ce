package domain

import "errors"

var (
	// ErrUnauthenticated means the signature or callback secret check failed.
	// The notification never touches the ledger.
	ErrUnauthenticated = errors.New("notification failed authenticity check")

	// ErrUnknownReference means the reference matches no payment and the
	// notification carries no account to create one for.
	ErrUnknownReference = errors.New("unknown external reference")

	// ErrIgnoredEvent marks provider events that are authentic but carry
	// nothing the ledger acts on. Acked without touching state.
	ErrIgnoredEvent = errors.New("event type not handled")

	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrNotFound            = errors.New("payment not found")
)
