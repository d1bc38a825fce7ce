package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devansh-sx/optishop/internal/account/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Ensure(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (account_id, balance, version, created_at, updated_at)
		VALUES ($1, 0, 0, $2, $2)
		ON CONFLICT (account_id) DO NOTHING`, accountID, now)
	return err
}

func (r *Repository) Get(ctx context.Context, accountID string) (domain.Account, error) {
	var a domain.Account
	err := r.pool.QueryRow(ctx, `
		SELECT account_id, balance, version, created_at, updated_at
		FROM accounts WHERE account_id=$1`, accountID).
		Scan(&a.ID, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
