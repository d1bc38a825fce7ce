package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devansh-sx/optishop/internal/payment/application"
	"github.com/devansh-sx/optishop/internal/payment/domain"
	"github.com/devansh-sx/optishop/internal/payment/provider/oxapay"
	"github.com/devansh-sx/optishop/internal/payment/provider/razorpay"
)

type memRepo struct {
	mu       sync.Mutex
	byRef    map[string]*domain.Payment
	balances map[string]int64
	down     bool
}

func newMemRepo() *memRepo {
	return &memRepo{byRef: make(map[string]*domain.Payment), balances: make(map[string]int64)}
}

var errDown = errors.New("store down")

func (m *memRepo) GetByReference(_ context.Context, ref string) (domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return domain.Payment{}, errDown
	}
	p, ok := m.byRef[ref]
	if !ok {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *p, nil
}

func (m *memRepo) Create(_ context.Context, p domain.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return false, errDown
	}
	if _, exists := m.byRef[p.ExternalReference]; exists {
		return false, nil
	}
	cp := p
	m.byRef[p.ExternalReference] = &cp
	return true, nil
}

func (m *memRepo) Confirm(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byRef[ref]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = domain.StatusConfirmed
	return true, nil
}

func (m *memRepo) Credit(_ context.Context, ref string, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return false, errDown
	}
	p, ok := m.byRef[ref]
	if !ok || p.Status.Terminal() {
		return false, nil
	}
	p.Status = domain.StatusCredited
	m.balances[p.AccountID] += p.CreditDelta
	return true, nil
}

func (m *memRepo) Close(_ context.Context, ref string, to domain.Status, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byRef[ref]
	if !ok || p.Status != domain.StatusPending {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (m *memRepo) ExpireStale(_ context.Context, _ time.Time) (int64, error) { return 0, nil }

func (m *memRepo) Ensure(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[accountID]; !ok {
		m.balances[accountID] = 0
	}
	return nil
}

func (m *memRepo) balance(accountID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[accountID]
}

const (
	razorpaySecret = "whsec_handler_test"
	oxapaySecret   = "oxa_handler_test"
)

func newTestHandler(repo *memRepo) *Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, repo, repo, domain.NewRateTable(90))
	return NewHandler(log, svc, map[domain.Provider]application.Verifier{
		domain.ProviderRazorpay: razorpay.NewVerifier(razorpaySecret),
		domain.ProviderOxapay:   oxapay.NewVerifier(oxapaySecret),
	})
}

func razorpaySign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(razorpaySecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(h *Handler, path, authHeader, authValue string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(authHeader, authValue)
	rec := httptest.NewRecorder()
	h.WebhookRoutes().ServeHTTP(rec, req)
	return rec
}

func TestWebhookRazorpayCaptured(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_h1","amount":50000,"currency":"INR","notes":{"account_id":"acc-h1"}}}}}`)
	rec := postWebhook(h, "/razorpay", "X-Razorpay-Signature", razorpaySign(body), body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), repo.balance("acc-h1"))

	// Redelivery acks again without double-crediting.
	rec = postWebhook(h, "/razorpay", "X-Razorpay-Signature", razorpaySign(body), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(500), repo.balance("acc-h1"))
}

func TestWebhookBadSignatureNotAcked(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_h2","amount":50000,"currency":"INR","notes":{"account_id":"acc-h2"}}}}}`)
	rec := postWebhook(h, "/razorpay", "X-Razorpay-Signature", "deadbeef", body)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), repo.balance("acc-h2"))
}

func TestWebhookIgnoredEventAcked(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	body := []byte(`{"event":"refund.processed","payload":{}}`)
	rec := postWebhook(h, "/razorpay", "X-Razorpay-Signature", razorpaySign(body), body)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUnknownCryptoReference(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	body := []byte(`{"track_id":"trk-forged","status":"paid","amount":99.0}`)
	rec := postWebhook(h, "/oxapay", "X-Oxapay-Token", oxapaySecret, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookStoreDownNotAcked(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	repo.mu.Lock()
	repo.down = true
	repo.mu.Unlock()

	body := []byte(`{"track_id":"trk-h3","status":"paid","amount":10}`)
	rec := postWebhook(h, "/oxapay", "X-Oxapay-Token", oxapaySecret, body)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInitiatePayment(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	body := []byte(`{"account_id":"acc-h4","amount":1000,"currency":"USD","provider":"oxapay","external_reference":"trk-h4"}`)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.APIRoutes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["payment_id"])

	p, err := repo.GetByReference(context.Background(), "trk-h4")
	require.NoError(t, err)
	assert.Equal(t, int64(900), p.CreditDelta)
}

func TestInitiatePaymentValidation(t *testing.T) {
	repo := newMemRepo()
	h := newTestHandler(repo)

	for _, body := range []string{
		`{`,
		`{"account_id":"","amount":100,"currency":"INR"}`,
		`{"account_id":"acc","amount":0,"currency":"INR"}`,
		`{"account_id":"acc","amount":100,"currency":"EUR","provider":"oxapay"}`,
		`{"account_id":"acc","amount":100,"currency":"INR","provider":"paypal"}`,
		`{"account_id":"acc","amount":100,"currency":"INR"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
		rec := httptest.NewRecorder()
		h.APIRoutes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
