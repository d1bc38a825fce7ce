// Package razorpay authenticates Razorpay webhook deliveries. Razorpay signs
// the raw request body with HMAC-SHA256 under the webhook secret and sends
// the hex digest in X-Razorpay-Signature; verification must run over the
// exact bytes received, never a re-serialized form.
package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/devansh-sx/optishop/internal/payment/domain"
)

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		QRCode struct {
			Entity struct {
				Notes map[string]string `json:"notes"`
			} `json:"entity"`
		} `json:"qr_code"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"` // paise
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes"`
}

func (v *Verifier) Verify(raw []byte, authToken string) (domain.Notification, error) {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(authToken)) {
		return domain.Notification{}, domain.ErrUnauthenticated
	}

	var ev event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.Notification{}, fmt.Errorf("razorpay payload: %w", err)
	}

	var status domain.ProviderStatus
	switch ev.Event {
	case "payment.captured", "qr_code.credited":
		status = domain.NotifyPaid
	case "payment.authorized":
		status = domain.NotifyConfirming
	case "payment.failed":
		status = domain.NotifyFailed
	default:
		return domain.Notification{}, domain.ErrIgnoredEvent
	}

	p := ev.Payload.Payment.Entity
	if p.ID == "" {
		return domain.Notification{}, fmt.Errorf("razorpay payload: missing payment id")
	}

	// Account identity rides in the notes the QR/payment was created with.
	accountID := p.Notes["account_id"]
	if accountID == "" {
		accountID = ev.Payload.QRCode.Entity.Notes["account_id"]
	}

	currency := domain.Currency(p.Currency)
	if currency == "" {
		currency = domain.INR
	}

	return domain.Notification{
		Provider:          domain.ProviderRazorpay,
		ExternalReference: p.ID,
		AccountID:         accountID,
		Amount:            p.Amount,
		Currency:          currency,
		Status:            status,
	}, nil
}
