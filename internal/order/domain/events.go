package domain

// OrderFailedNoStock is published when allocation found nothing to sell and
// the debited funds went back to the wallet.
type OrderFailedNoStock struct {
	OrderID   string
	AccountID string
	ProductID string
	Refunded  int64
}
