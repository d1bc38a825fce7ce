package application

import (
	"context"
	"log/slog"

	"github.com/devansh-sx/optishop/internal/inventory/domain"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

type Service struct {
	log  *slog.Logger
	repo StockRepository
}

func NewService(log *slog.Logger, repo StockRepository) *Service {
	return &Service{log: log, repo: repo}
}

// Allocate hands exactly one available unit of the product to the order.
// Concurrent calls against the same product each get a distinct unit or
// domain.ErrOutOfStock; the row-level claim in the repository is what makes
// double-issuance impossible, not anything in this layer.
func (s *Service) Allocate(ctx context.Context, productID, orderID, accountID string) (domain.InventoryUnit, error) {
	unit, remaining, err := s.repo.Reserve(ctx, productID, orderID, accountID, tracing.Traceparent(ctx))
	if err != nil {
		return domain.InventoryUnit{}, err
	}
	s.log.Info("unit allocated",
		"unit_id", unit.ID, "product_id", productID, "order_id", orderID, "remaining", remaining)
	if remaining <= domain.LowStockThreshold {
		s.log.Warn("stock running low", "product_id", productID, "remaining", remaining)
	}
	return unit, nil
}

// Deliver finishes the unit lifecycle once the payload has a recipient.
// Safe to call repeatedly; redelivered allocation events find the unit
// already delivered and do nothing.
func (s *Service) Deliver(ctx context.Context, unitID string) (string, error) {
	payload, applied, err := s.repo.MarkDelivered(ctx, unitID)
	if err != nil {
		return "", err
	}
	if !applied {
		s.log.Debug("unit already delivered", "unit_id", unitID)
		return "", nil
	}
	s.log.Info("unit delivered", "unit_id", unitID)
	return payload, nil
}
