package domain

// StockAllocated is published once a unit is reserved for an order; the
// delivery worker picks it up and hands the payload over outside the
// reservation transaction.
type StockAllocated struct {
	OrderID   string
	UnitID    string
	ProductID string
	AccountID string
}

// LowStockThreshold is the remaining-unit count at which StockLow fires.
const LowStockThreshold = 3

// StockLow warns operators that a product is nearly sold out.
type StockLow struct {
	ProductID string
	Remaining int64
}
