package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/devansh-sx/optishop/internal/payment/application"
	"github.com/devansh-sx/optishop/internal/payment/domain"
)

// Providers retry on any non-2xx, so the status code is the ack protocol:
// 200 only after the transition durably applied or durably no-op'd, 401 on a
// failed authenticity check, 503 when the store was unreachable.
type Handler struct {
	log       *slog.Logger
	service   *application.Service
	verifiers map[domain.Provider]application.Verifier
	tracer    trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, verifiers map[domain.Provider]application.Verifier) *Handler {
	return &Handler{
		log:       log,
		service:   service,
		verifiers: verifiers,
		tracer:    otel.Tracer("payment-http"),
	}
}

func (h *Handler) WebhookRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/razorpay", h.webhook(domain.ProviderRazorpay, "X-Razorpay-Signature"))
	r.Post("/oxapay", h.webhook(domain.ProviderOxapay, "X-Oxapay-Token"))
	return r
}

func (h *Handler) APIRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.initiatePayment)
	return r
}

const maxBodyBytes = int64(65536)

func (h *Handler) webhook(provider domain.Provider, authHeader string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx, span := h.tracer.Start(req.Context(), "HandleWebhook")
		defer span.End()

		verifier, ok := h.verifiers[provider]
		if !ok {
			http.Error(w, "provider not configured", http.StatusNotFound)
			return
		}

		// Signature checks run over the untouched body bytes.
		req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		n, err := verifier.Verify(raw, req.Header.Get(authHeader))
		switch {
		case errors.Is(err, domain.ErrUnauthenticated):
			h.log.Warn("webhook rejected", "provider", provider, "reason", "authenticity")
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		case errors.Is(err, domain.ErrIgnoredEvent):
			writeOK(w)
			return
		case err != nil:
			h.log.Warn("webhook payload invalid", "provider", provider, "err", err)
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}

		err = h.service.HandleNotification(ctx, n)
		switch {
		case errors.Is(err, domain.ErrUnknownReference):
			h.log.Warn("webhook for unknown reference", "provider", provider, "reference", n.ExternalReference)
			http.Error(w, "unknown reference", http.StatusBadRequest)
		case errors.Is(err, domain.ErrUnsupportedCurrency):
			http.Error(w, "unsupported currency", http.StatusBadRequest)
		case err != nil:
			// Fail closed: no ack, the provider's retry policy redelivers.
			h.log.Error("webhook processing failed", "provider", provider, "reference", n.ExternalReference, "err", err)
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		default:
			writeOK(w)
		}
	}
}

type initiatePaymentReq struct {
	AccountID         string `json:"account_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Provider          string `json:"provider"`
	ExternalReference string `json:"external_reference,omitempty"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, req *http.Request) {
	ctx, span := h.tracer.Start(req.Context(), "InitiatePayment")
	defer span.End()

	var body initiatePaymentReq
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.AccountID == "" || body.Amount <= 0 {
		http.Error(w, "account_id and positive amount required", http.StatusBadRequest)
		return
	}
	provider := domain.Provider(body.Provider)
	if !provider.Valid() {
		http.Error(w, "unknown provider", http.StatusBadRequest)
		return
	}

	id, err := h.service.Initiate(ctx, body.AccountID, body.Amount,
		domain.Currency(body.Currency), provider, body.ExternalReference)
	if errors.Is(err, domain.ErrUnsupportedCurrency) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"payment_id": id})
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
