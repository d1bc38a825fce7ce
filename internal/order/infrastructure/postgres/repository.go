package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	account "github.com/devansh-sx/optishop/internal/account/domain"
	"github.com/devansh-sx/optishop/internal/order/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `
		SELECT product_id, name, price_credits FROM products WHERE product_id=$1`, productID).
		Scan(&p.ID, &p.Name, &p.PriceCredits)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// CreateWithDebit holds the balance >= price guard and the order insert in
// one transaction: either the wallet paid and the order exists, or neither.
func (r *Repository) CreateWithDebit(ctx context.Context, o domain.Order, traceparent string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ct, err := tx.Exec(ctx, `
		UPDATE accounts SET balance=balance-$1, version=version+1, updated_at=now()
		WHERE account_id=$2 AND balance >= $1`, o.PriceCredits, o.AccountID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return account.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (order_id, account_id, product_id, price_credits, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.AccountID, o.ProductID, o.PriceCredits, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) FailWithRefund(ctx context.Context, orderID, traceparent string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		accountID string
		productID string
		price     int64
	)
	err = tx.QueryRow(ctx, `
		UPDATE orders SET status='failed_no_stock', updated_at=now()
		WHERE order_id=$1 AND status='awaiting_funds'
		RETURNING account_id, product_id, price_credits`, orderID).
		Scan(&accountID, &productID, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE accounts SET balance=balance+$1, version=version+1, updated_at=now()
		WHERE account_id=$2`, price, accountID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, errors.New("order references missing account")
	}

	payload, _ := json.Marshal(domain.OrderFailedNoStock{
		OrderID:   orderID,
		AccountID: accountID,
		ProductID: productID,
		Refunded:  price,
	})
	headers := map[string]string{"source": "shop-service"}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ('order',$1,$2,$3,$4,$5,'pending')`,
		orderID, "OrderFailedNoStock", payload, headers, traceparent)
	if err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *Repository) FailStale(ctx context.Context, cutoff time.Time) (int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id FROM orders
		WHERE status='awaiting_funds' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// Each refund is its own compound write; the awaiting_funds precondition
	// inside FailWithRefund makes losing a race to a late allocation harmless.
	var n int64
	for _, id := range ids {
		applied, err := r.FailWithRefund(ctx, id, "")
		if err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}
	return n, nil
}

func (r *Repository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `
		SELECT order_id, account_id, product_id, unit_id, price_credits, status, created_at, updated_at
		FROM orders WHERE order_id=$1`, orderID).
		Scan(&o.ID, &o.AccountID, &o.ProductID, &o.UnitID, &o.PriceCredits, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
