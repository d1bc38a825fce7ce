package application

import (
	"context"
	"time"

	inventory "github.com/devansh-sx/optishop/internal/inventory/domain"
	"github.com/devansh-sx/optishop/internal/order/domain"
)

type OrderRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)

	// CreateWithDebit inserts the order and deducts its price from the
	// account in one transaction, guarded by balance >= price. Returns
	// account/domain.ErrInsufficientFunds when the guard fails.
	CreateWithDebit(ctx context.Context, o domain.Order, traceparent string) error

	// FailWithRefund flips awaiting_funds → failed_no_stock and returns the
	// price to the wallet, atomically. Reports false when the order was not
	// awaiting funds (already allocated or already failed).
	FailWithRefund(ctx context.Context, orderID, traceparent string) (bool, error)

	// FailStale drives every awaiting_funds order created before the cutoff
	// through the fail+refund write. An order only stays awaiting_funds past
	// its synchronous purchase call when allocation was interrupted between
	// the debit and the reservation, so this is the recovery path for funds
	// that would otherwise be stranded.
	FailStale(ctx context.Context, cutoff time.Time) (int64, error)

	Get(ctx context.Context, orderID string) (domain.Order, error)
}

type Allocator interface {
	Allocate(ctx context.Context, productID, orderID, accountID string) (inventory.InventoryUnit, error)
}

type AccountProvisioner interface {
	Ensure(ctx context.Context, accountID string) error
}
