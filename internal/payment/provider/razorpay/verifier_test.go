package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devansh-sx/optishop/internal/payment/domain"
)

const testSecret = "whsec_test_7f2a"

func sign(t *testing.T, secret string, body []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedBody(paymentID string, amount int64, accountID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {
			"payment": {
				"entity": {
					"id": %q,
					"amount": %d,
					"currency": "INR",
					"notes": {"account_id": %q}
				}
			}
		}
	}`, paymentID, amount, accountID))
}

func TestVerifyCaptured(t *testing.T) {
	v := NewVerifier(testSecret)
	body := capturedBody("pay_N3kzXq", 50000, "acc-42")

	n, err := v.Verify(body, sign(t, testSecret, body))
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderRazorpay, n.Provider)
	assert.Equal(t, "pay_N3kzXq", n.ExternalReference)
	assert.Equal(t, "acc-42", n.AccountID)
	assert.Equal(t, int64(50000), n.Amount)
	assert.Equal(t, domain.INR, n.Currency)
	assert.Equal(t, domain.NotifyPaid, n.Status)
}

func TestVerifyTamperedBody(t *testing.T) {
	v := NewVerifier(testSecret)
	body := capturedBody("pay_N3kzXq", 50000, "acc-42")
	sig := sign(t, testSecret, body)

	tampered := capturedBody("pay_N3kzXq", 999900, "acc-42")
	_, err := v.Verify(tampered, sig)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	body := capturedBody("pay_N3kzXq", 50000, "acc-42")

	_, err := v.Verify(body, sign(t, "whsec_other", body))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestVerifyEventMapping(t *testing.T) {
	v := NewVerifier(testSecret)
	tests := []struct {
		event string
		want  domain.ProviderStatus
	}{
		{"payment.captured", domain.NotifyPaid},
		{"qr_code.credited", domain.NotifyPaid},
		{"payment.authorized", domain.NotifyConfirming},
		{"payment.failed", domain.NotifyFailed},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"event": %q, "payload": {"payment": {"entity": {"id": "pay_x", "amount": 100, "currency": "INR"}}}}`, tt.event))
			n, err := v.Verify(body, sign(t, testSecret, body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.Status)
		})
	}
}

func TestVerifyIgnoredEvent(t *testing.T) {
	v := NewVerifier(testSecret)
	body := []byte(`{"event": "refund.processed", "payload": {"payment": {"entity": {"id": "pay_x"}}}}`)
	_, err := v.Verify(body, sign(t, testSecret, body))
	assert.ErrorIs(t, err, domain.ErrIgnoredEvent)
}

func TestVerifyAccountFromQRNotes(t *testing.T) {
	v := NewVerifier(testSecret)
	body := []byte(`{
		"event": "qr_code.credited",
		"payload": {
			"payment": {"entity": {"id": "pay_qr1", "amount": 20000, "currency": "INR"}},
			"qr_code": {"entity": {"notes": {"account_id": "acc-7"}}}
		}
	}`)
	n, err := v.Verify(body, sign(t, testSecret, body))
	require.NoError(t, err)
	assert.Equal(t, "acc-7", n.AccountID)
}

func TestVerifyMissingPaymentID(t *testing.T) {
	v := NewVerifier(testSecret)
	body := []byte(`{"event": "payment.captured", "payload": {}}`)
	_, err := v.Verify(body, sign(t, testSecret, body))
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated)
}
