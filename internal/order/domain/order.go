package domain

import "time"

type OrderStatus string

const (
	StatusAwaitingFunds OrderStatus = "awaiting_funds"
	StatusAllocated     OrderStatus = "allocated"
	StatusFailedNoStock OrderStatus = "failed_no_stock"
)

// Order is one purchase. The price is captured from the catalog at creation;
// UnitID is set by the allocator in the same write that flips the status to
// allocated, so a non-nil UnitID always points at a unit that points back.
type Order struct {
	ID           string
	AccountID    string
	ProductID    string
	UnitID       *string
	PriceCredits int64
	Status       OrderStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func NewOrder(id, accountID string, product Product) Order {
	now := time.Now().UTC()
	return Order{
		ID:           id,
		AccountID:    accountID,
		ProductID:    product.ID,
		PriceCredits: product.PriceCredits,
		Status:       StatusAwaitingFunds,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Product is the catalog read side: enough to price a purchase. Catalog
// management itself lives outside this service.
type Product struct {
	ID           string
	Name         string
	PriceCredits int64
}
