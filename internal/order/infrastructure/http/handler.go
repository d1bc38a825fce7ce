package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	account "github.com/devansh-sx/optishop/internal/account/domain"
	inventory "github.com/devansh-sx/optishop/internal/inventory/domain"
	"github.com/devansh-sx/optishop/internal/order/application"
	"github.com/devansh-sx/optishop/internal/order/domain"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)
	return r
}

type createOrderReq struct {
	AccountID string `json:"account_id"`
	ProductID string `json:"product_id"`
}

type orderResp struct {
	OrderID string  `json:"order_id"`
	Status  string  `json:"status"`
	UnitID  *string `json:"unit_id,omitempty"`
	Price   int64   `json:"price_credits"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.ProductID == "" {
		http.Error(w, "account_id and product_id required", http.StatusBadRequest)
		return
	}

	o, err := h.service.InitiatePurchase(ctx, req.AccountID, req.ProductID)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, account.ErrInsufficientFunds):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
		return
	case errors.Is(err, inventory.ErrOutOfStock):
		// The order exists, failed and refunded; tell the caller which one.
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(orderResp{OrderID: o.ID, Status: string(o.Status), Price: o.PriceCredits})
		return
	case err != nil:
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(orderResp{OrderID: o.ID, Status: string(o.Status), UnitID: o.UnitID, Price: o.PriceCredits})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	_ = json.NewEncoder(w).Encode(orderResp{OrderID: o.ID, Status: string(o.Status), UnitID: o.UnitID, Price: o.PriceCredits})
}
