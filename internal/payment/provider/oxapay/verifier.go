// Package oxapay authenticates OxaPay crypto-payment callbacks. OxaPay does
// not sign the body; callers present the merchant callback secret as a
// header token, and the track_id must match a payment this system initiated
// (the engine rejects unknown references with no account attached).
package oxapay

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/devansh-sx/optishop/internal/payment/domain"
)

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

type callback struct {
	TrackID  trackID `json:"track_id"`
	Status   string  `json:"status"`
	Amount   float64 `json:"amount"` // USD
	Currency string  `json:"currency"`
}

// trackID tolerates OxaPay sending the id as either a JSON number or string.
type trackID string

func (t *trackID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*t = trackID(s)
	return nil
}

func (v *Verifier) Verify(raw []byte, authToken string) (domain.Notification, error) {
	if v.secret == "" || subtle.ConstantTimeCompare([]byte(v.secret), []byte(authToken)) != 1 {
		return domain.Notification{}, domain.ErrUnauthenticated
	}

	var cb callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return domain.Notification{}, fmt.Errorf("oxapay payload: %w", err)
	}
	if cb.TrackID == "" {
		return domain.Notification{}, fmt.Errorf("oxapay payload: missing track_id")
	}

	var status domain.ProviderStatus
	switch strings.ToLower(cb.Status) {
	case "paid", "completed":
		status = domain.NotifyPaid
	case "confirming":
		status = domain.NotifyConfirming
	case "failed":
		status = domain.NotifyFailed
	case "expired":
		status = domain.NotifyExpired
	default:
		return domain.Notification{}, domain.ErrIgnoredEvent
	}

	currency := domain.Currency(strings.ToUpper(cb.Currency))
	if currency == "" {
		currency = domain.USD
	}

	return domain.Notification{
		Provider:          domain.ProviderOxapay,
		ExternalReference: string(cb.TrackID),
		Amount:            int64(math.Round(cb.Amount * 100)),
		Currency:          currency,
		Status:            status,
	}, nil
}
