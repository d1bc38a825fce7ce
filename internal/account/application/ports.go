package application

import (
	"context"

	"github.com/devansh-sx/optishop/internal/account/domain"
)

type AccountRepository interface {
	// Ensure creates the account with a zero balance if it does not exist.
	Ensure(ctx context.Context, accountID string) error
	Get(ctx context.Context, accountID string) (domain.Account, error)
}
