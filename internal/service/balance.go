package service

import (
	"context"

	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/repository"
)

// BalanceService derives user balances from the ledger. Balances are never
// stored: they are recomputed from deposits, bet spend and settled payouts.
type BalanceService struct {
	depositRepo *repository.DepositRepository
	betRepo     *repository.BetRepository
}

// NewBalanceService creates a new BalanceService instance.
func NewBalanceService(depositRepo *repository.DepositRepository, betRepo *repository.BetRepository) *BalanceService {
	return &BalanceService{depositRepo: depositRepo, betRepo: betRepo}
}

// GetBalance computes deposited, spent, won and the available amount for a
// user. Available is deposited - spent + won, floored at zero.
func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	deposited, err := s.depositRepo.TotalDeposited(ctx, userID)
	if err != nil {
		return nil, err
	}
	spent, won, err := s.betRepo.SpentAndWon(ctx, userID)
	if err != nil {
		return nil, err
	}

	available := deposited - spent + won
	if available < 0 {
		available = 0
	}

	return &model.Balance{
		Deposited: deposited,
		Spent:     spent,
		Won:       won,
		Available: available,
	}, nil
}
