package application

import (
	"context"

	"github.com/devansh-sx/optishop/internal/inventory/domain"
)

// StockRepository reserves and releases units through store-level
// compare-and-swap; Reserve links the unit and its order in one transaction.
type StockRepository interface {
	// Reserve picks one available unit of the product, marks it reserved
	// for the order, flips the order to allocated and reports remaining
	// stock, all atomically. Returns domain.ErrOutOfStock when nothing is
	// available.
	Reserve(ctx context.Context, productID, orderID, accountID, traceparent string) (domain.InventoryUnit, int64, error)

	// MarkDelivered moves reserved → delivered, returning the payload to
	// hand over. Reports false when the unit was not in reserved state.
	MarkDelivered(ctx context.Context, unitID string) (string, bool, error)
}
