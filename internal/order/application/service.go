package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	inventory "github.com/devansh-sx/optishop/internal/inventory/domain"
	"github.com/devansh-sx/optishop/internal/order/domain"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

type Service struct {
	log      *slog.Logger
	repo     OrderRepository
	accounts AccountProvisioner
	alloc    Allocator
}

func NewService(log *slog.Logger, repo OrderRepository, accounts AccountProvisioner, alloc Allocator) *Service {
	return &Service{log: log, repo: repo, accounts: accounts, alloc: alloc}
}

// InitiatePurchase debits the price up front, then asks the allocator for a
// unit. The caller's balance check is advisory only; the debit's
// balance >= price precondition is the authoritative one, and an out-of-stock
// result refunds the debit rather than ever keeping paid-for nothing.
func (s *Service) InitiatePurchase(ctx context.Context, accountID, productID string) (domain.Order, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.accounts.Ensure(ctx, accountID); err != nil {
		return domain.Order{}, err
	}

	o := domain.NewOrder(uuid.NewString(), accountID, product)
	traceparent := tracing.Traceparent(ctx)
	if err := s.repo.CreateWithDebit(ctx, o, traceparent); err != nil {
		return domain.Order{}, err
	}
	s.log.Info("order created",
		"order_id", o.ID, "account_id", accountID, "product_id", productID, "price", o.PriceCredits)

	unit, err := s.alloc.Allocate(ctx, productID, o.ID, accountID)
	if errors.Is(err, inventory.ErrOutOfStock) {
		// Funds are already deducted; the refund must land before we ack.
		// If the store is down here, the error propagates and the caller
		// retries against an order still marked awaiting_funds.
		if _, rerr := s.repo.FailWithRefund(ctx, o.ID, traceparent); rerr != nil {
			return domain.Order{}, rerr
		}
		s.log.Warn("order failed, funds refunded",
			"order_id", o.ID, "product_id", productID, "refunded", o.PriceCredits)
		o.Status = domain.StatusFailedNoStock
		return o, inventory.ErrOutOfStock
	}
	if err != nil {
		return domain.Order{}, err
	}

	o.UnitID = &unit.ID
	o.Status = domain.StatusAllocated
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return s.repo.Get(ctx, orderID)
}

// FailStale refunds purchases that never made it past the debit. The debit
// and the allocation are separate transactions; a store failure or crash
// between them leaves the order awaiting_funds with the price already
// deducted. The refund CAS only matches awaiting_funds rows, so a purchase
// that did allocate is never touched.
func (s *Service) FailStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.repo.FailStale(ctx, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn("refunded stale orders", "count", n)
	}
	return n, nil
}
