// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/metrics"
	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/pkg/db"
	"gift-betting-backend/internal/repository"
)

// Common errors for deposit operations.
var (
	ErrDuplicateDeposit = errors.New("deposit already processed")
	ErrInvalidDeposit   = errors.New("invalid deposit: missing sender, slug or non-positive value")
)

// Notifier delivers a message to a user. Delivery is best-effort: a failed
// notification never unwinds the ledger write that triggered it.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// GiftInfo describes an inbound Telegram gift.
type GiftInfo struct {
	Title string
	Slug  string
	Value int64
}

// DepositService handles gift deposit intake.
type DepositService struct {
	pool        *db.Pool
	depositRepo *repository.DepositRepository
	txRepo      *repository.TransactionRepository
	notifier    Notifier
}

// NewDepositService creates a new DepositService instance.
func NewDepositService(
	pool *db.Pool,
	depositRepo *repository.DepositRepository,
	txRepo *repository.TransactionRepository,
	notifier Notifier,
) *DepositService {
	return &DepositService{
		pool:        pool,
		depositRepo: depositRepo,
		txRepo:      txRepo,
		notifier:    notifier,
	}
}

// SetNotifier installs the notifier after construction. The bot both
// depends on this service and delivers its notifications.
func (s *DepositService) SetNotifier(n Notifier) {
	s.notifier = n
}

// ProcessDeposit credits one gift to a user. Idempotent on messageID:
// replaying the same notification returns ErrDuplicateDeposit and writes
// nothing. The deposit row and its audit transaction commit atomically.
func (s *DepositService) ProcessDeposit(ctx context.Context, gift GiftInfo, senderID, messageID int64) (*model.Deposit, error) {
	if senderID == 0 || gift.Slug == "" || gift.Value <= 0 {
		return nil, ErrInvalidDeposit
	}

	var deposit *model.Deposit
	err := db.WithTx(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		var err error
		deposit, err = s.depositRepo.CreateInTx(ctx, tx, senderID, gift.Title, gift.Slug, gift.Value, messageID)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateDeposit) {
				return ErrDuplicateDeposit
			}
			return err
		}
		return s.txRepo.CreateDepositInTx(ctx, tx, deposit)
	})
	if err != nil {
		return nil, err
	}

	metrics.DepositsProcessed.Inc()
	log.Info().
		Int64("deposit_id", deposit.ID).
		Int64("user_id", senderID).
		Str("gift", gift.Title).
		Int64("value", gift.Value).
		Msg("Deposit processed")

	if s.notifier != nil {
		text := fmt.Sprintf("✅ Gift '%s' credited! Value: %d ⭐", gift.Title, gift.Value)
		if err := s.notifier.Notify(ctx, senderID, text); err != nil {
			log.Warn().Err(err).Int64("user_id", senderID).Msg("Deposit confirmation not delivered")
		}
	}

	return deposit, nil
}

// GetUserDeposits lists a user's deposits, newest first.
func (s *DepositService) GetUserDeposits(ctx context.Context, userID int64) ([]*model.Deposit, error) {
	return s.depositRepo.GetByUser(ctx, userID)
}
