package application

import (
	"context"

	"github.com/devansh-sx/optishop/internal/account/domain"
)

type Service struct {
	repo AccountRepository
}

func NewService(repo AccountRepository) *Service {
	return &Service{repo: repo}
}

// Ensure provisions the wallet on first interaction.
func (s *Service) Ensure(ctx context.Context, accountID string) error {
	return s.repo.Ensure(ctx, accountID)
}

func (s *Service) Get(ctx context.Context, accountID string) (domain.Account, error) {
	return s.repo.Get(ctx, accountID)
}
