package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devansh-sx/optishop/internal/payment/domain"
)

// Repository owns the payments table and the two ledger primitives the
// engine needs: guarded single-row updates (precondition on current status,
// applied/not-applied reported back) and the compound credit write that
// moves the payment and the account balance in one transaction. No caller
// ever updates payments or account balances around it.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) GetByReference(ctx context.Context, externalRef string) (domain.Payment, error) {
	var p domain.Payment
	err := r.pool.QueryRow(ctx, `
		SELECT payment_id, provider, external_reference, account_id,
		       requested_amount, currency, credit_delta, status, created_at, credited_at
		FROM payments WHERE external_reference=$1`, externalRef).
		Scan(&p.ID, &p.Provider, &p.ExternalReference, &p.AccountID,
			&p.RequestedAmount, &p.Currency, &p.CreditDelta, &p.Status, &p.CreatedAt, &p.CreditedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Payment{}, err
	}
	return p, nil
}

func (r *Repository) Create(ctx context.Context, p domain.Payment) (bool, error) {
	// A payment initiated before the provider issues its reference carries
	// none; NULL keeps it out of the uniqueness constraint.
	var ref *string
	if p.ExternalReference != "" {
		ref = &p.ExternalReference
	}
	ct, err := r.pool.Exec(ctx, `
		INSERT INTO payments (payment_id, provider, external_reference, account_id,
		                      requested_amount, currency, credit_delta, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (external_reference) DO NOTHING`,
		p.ID, p.Provider, ref, p.AccountID,
		p.RequestedAmount, p.Currency, p.CreditDelta, p.Status, p.CreatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repository) Confirm(ctx context.Context, externalRef string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE payments SET status='confirmed'
		WHERE external_reference=$1 AND status='pending'`, externalRef)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repository) Credit(ctx context.Context, externalRef string, traceparent string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		paymentID string
		accountID string
		delta     int64
	)
	err = tx.QueryRow(ctx, `
		UPDATE payments SET status='credited', credited_at=now()
		WHERE external_reference=$1 AND status IN ('pending','confirmed')
		RETURNING payment_id, account_id, credit_delta`, externalRef).
		Scan(&paymentID, &accountID, &delta)
	if errors.Is(err, pgx.ErrNoRows) {
		// Precondition failed: another delivery already settled this row.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE accounts SET balance=balance+$1, version=version+1, updated_at=now()
		WHERE account_id=$2`, delta, accountID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() != 1 {
		return false, errors.New("credited payment references missing account")
	}

	payload, _ := json.Marshal(domain.PaymentCredited{
		PaymentID:         paymentID,
		ExternalReference: externalRef,
		AccountID:         accountID,
		CreditDelta:       delta,
	})
	if err := insertOutbox(ctx, tx, paymentID, "PaymentCredited", payload, traceparent); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *Repository) Close(ctx context.Context, externalRef string, to domain.Status, traceparent string) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var paymentID, accountID string
	err = tx.QueryRow(ctx, `
		UPDATE payments SET status=$2
		WHERE external_reference=$1 AND status='pending'
		RETURNING payment_id, account_id`, externalRef, to).
		Scan(&paymentID, &accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	payload, _ := json.Marshal(domain.PaymentClosed{
		PaymentID:         paymentID,
		ExternalReference: externalRef,
		AccountID:         accountID,
		Status:            string(to),
	})
	if err := insertOutbox(ctx, tx, paymentID, "PaymentClosed", payload, traceparent); err != nil {
		return false, err
	}

	return true, tx.Commit(ctx)
}

func (r *Repository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE payments SET status='expired'
		WHERE status='pending' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateID, eventType string, payload []byte, traceparent string) error {
	headers := map[string]string{"source": "shop-service"}
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ('payment',$1,$2,$3,$4,$5,'pending')`,
		aggregateID, eventType, payload, headers, traceparent)
	return err
}
