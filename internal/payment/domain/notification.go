package domain

// ProviderStatus is the canonical reading of what a provider notification
// says about its payment, independent of provider wire formats.
type ProviderStatus string

const (
	NotifyConfirming ProviderStatus = "confirming"
	NotifyPaid       ProviderStatus = "paid"
	NotifyFailed     ProviderStatus = "failed"
	NotifyExpired    ProviderStatus = "expired"
)

// Notification is the tuple a verifier extracts from an authenticated
// callback. Nothing downstream ever sees the raw payload. AccountID is only
// present when the provider carries it (Razorpay notes); without it an
// unknown reference cannot be turned into a new payment.
type Notification struct {
	Provider          Provider
	ExternalReference string
	AccountID         string
	Amount            int64 // provider minor units
	Currency          Currency
	Status            ProviderStatus
}
