package domain

import "time"

type UnitStatus string

const (
	StatusAvailable UnitStatus = "available"
	StatusReserved  UnitStatus = "reserved"
	StatusDelivered UnitStatus = "delivered"
)

// InventoryUnit is one sellable credential in stock. A unit moves
// available → reserved → delivered and never back; OrderID is set exactly
// once, at reservation, and the store's uniqueness constraint makes a second
// owner structurally impossible.
type InventoryUnit struct {
	ID          string
	ProductID   string
	Payload     string
	Status      UnitStatus
	OrderID     *string
	CreatedAt   time.Time
	ReservedAt  *time.Time
	DeliveredAt *time.Time
}

var unitTransitionChart = map[UnitStatus][]UnitStatus{
	StatusAvailable: {StatusReserved},
	StatusReserved:  {StatusDelivered},
}

func TransitionAllowed(from, to UnitStatus) bool {
	for _, s := range unitTransitionChart[from] {
		if s == to {
			return true
		}
	}
	return false
}
