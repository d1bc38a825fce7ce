package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devansh-sx/optishop/internal/inventory/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Reserve claims one available unit with a skip-locked row pick, so parallel
// buyers of the same product never block on or receive each other's unit.
// The unit claim, the order link and the outbox rows commit together; either
// the order owns exactly one unit afterwards or nothing changed at all.
func (r *Repository) Reserve(ctx context.Context, productID, orderID, accountID, traceparent string) (domain.InventoryUnit, int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.InventoryUnit{}, 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var unit domain.InventoryUnit
	err = tx.QueryRow(ctx, `
		UPDATE inventory_units SET status='reserved', order_id=$2, reserved_at=now()
		WHERE unit_id = (
			SELECT unit_id FROM inventory_units
			WHERE product_id=$1 AND status='available'
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING unit_id, product_id, payload, status, order_id, created_at, reserved_at`,
		productID, orderID).
		Scan(&unit.ID, &unit.ProductID, &unit.Payload, &unit.Status, &unit.OrderID, &unit.CreatedAt, &unit.ReservedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.InventoryUnit{}, 0, domain.ErrOutOfStock
	}
	if err != nil {
		return domain.InventoryUnit{}, 0, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET unit_id=$1, status='allocated', updated_at=now()
		WHERE order_id=$2 AND status='awaiting_funds'`, unit.ID, orderID)
	if err != nil {
		return domain.InventoryUnit{}, 0, err
	}
	if ct.RowsAffected() != 1 {
		return domain.InventoryUnit{}, 0, errors.New("order not awaiting funds")
	}

	var remaining int64
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM inventory_units
		WHERE product_id=$1 AND status='available'`, productID).Scan(&remaining); err != nil {
		return domain.InventoryUnit{}, 0, err
	}

	payload, _ := json.Marshal(domain.StockAllocated{
		OrderID:   orderID,
		UnitID:    unit.ID,
		ProductID: productID,
		AccountID: accountID,
	})
	if err := insertOutbox(ctx, tx, orderID, "StockAllocated", payload, traceparent); err != nil {
		return domain.InventoryUnit{}, 0, err
	}
	if remaining <= domain.LowStockThreshold {
		low, _ := json.Marshal(domain.StockLow{ProductID: productID, Remaining: remaining})
		if err := insertOutbox(ctx, tx, productID, "StockLow", low, traceparent); err != nil {
			return domain.InventoryUnit{}, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.InventoryUnit{}, 0, err
	}
	return unit, remaining, nil
}

func (r *Repository) MarkDelivered(ctx context.Context, unitID string) (string, bool, error) {
	var payload string
	err := r.pool.QueryRow(ctx, `
		UPDATE inventory_units SET status='delivered', delivered_at=now()
		WHERE unit_id=$1 AND status='reserved'
		RETURNING payload`, unitID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return payload, true, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	headers := map[string]string{"source": "shop-service"}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ('inventory',$1,$2,$3,$4,$5,'pending')`,
		aggregateID, eventType, payload, headers, traceparent)
	return err
}
