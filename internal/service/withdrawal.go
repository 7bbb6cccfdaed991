package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/pkg/db"
	"gift-betting-backend/internal/pkg/telegram"
	"gift-betting-backend/internal/repository"
)

// Common errors for withdrawal operations.
var (
	ErrDepositNotFound  = errors.New("deposit not found")
	ErrNotDepositOwner  = errors.New("deposit belongs to another user")
	ErrAlreadyWithdrawn = errors.New("deposit already withdrawn")
	ErrCollateralInUse  = errors.New("deposit backs a pending or won bet")
	ErrEmptyInvoice     = errors.New("invoice must cover at least one gift")
)

// WithdrawalService transfers deposited gifts back out of the platform and
// issues Telegram Stars invoices for withdrawal fees.
type WithdrawalService struct {
	pool         *db.Pool
	depositRepo  *repository.DepositRepository
	betRepo      *repository.BetRepository
	txRepo       *repository.TransactionRepository
	payments     *telegram.Client
	notifier     Notifier
	starsPerGift int64
}

// NewWithdrawalService creates a new WithdrawalService instance. payments may
// be nil when invoice creation is not configured.
func NewWithdrawalService(
	pool *db.Pool,
	depositRepo *repository.DepositRepository,
	betRepo *repository.BetRepository,
	txRepo *repository.TransactionRepository,
	payments *telegram.Client,
	notifier Notifier,
	starsPerGift int64,
) *WithdrawalService {
	return &WithdrawalService{
		pool:         pool,
		depositRepo:  depositRepo,
		betRepo:      betRepo,
		txRepo:       txRepo,
		payments:     payments,
		notifier:     notifier,
		starsPerGift: starsPerGift,
	}
}

// SetNotifier installs the notifier after construction.
func (s *WithdrawalService) SetNotifier(n Notifier) {
	s.notifier = n
}

// ProcessWithdrawal transfers one deposited gift to a recipient. The deposit
// row is locked for the duration of the checks, so a concurrent withdrawal of
// the same gift or a concurrent bet backed by it cannot slip through.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, depositID, ownerID, recipientID int64) (*model.Deposit, error) {
	var deposit *model.Deposit
	err := db.WithTx(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		var err error
		deposit, err = s.depositRepo.GetByIDForUpdate(ctx, tx, depositID)
		if err != nil {
			if errors.Is(err, repository.ErrDepositNotFound) {
				return ErrDepositNotFound
			}
			return err
		}

		if deposit.TelegramUserID != ownerID {
			return ErrNotDepositOwner
		}

		withdrawn, err := s.txRepo.HasCompletedWithdrawal(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if withdrawn {
			return ErrAlreadyWithdrawn
		}

		committed, err := s.betRepo.IsDepositCommitted(ctx, tx, depositID)
		if err != nil {
			return err
		}
		if committed {
			return ErrCollateralInUse
		}

		txID, err := s.txRepo.CreateWithdrawalInTx(ctx, tx, deposit, recipientID)
		if err != nil {
			return err
		}
		return s.txRepo.SetStatusInTx(ctx, tx, txID, model.TxStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("deposit_id", depositID).
		Int64("owner_id", ownerID).
		Int64("recipient_id", recipientID).
		Str("gift", deposit.Title).
		Msg("Withdrawal processed")

	if s.notifier != nil {
		text := fmt.Sprintf("🎁 Gift '%s' has been sent to you!", deposit.Title)
		if err := s.notifier.Notify(ctx, recipientID, text); err != nil {
			log.Warn().Err(err).Int64("user_id", recipientID).Msg("Withdrawal notification not delivered")
		}
	}

	return deposit, nil
}

// GetHistory lists a user's withdrawal transactions, newest first.
func (s *WithdrawalService) GetHistory(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return s.txRepo.GetByUserAndType(ctx, userID, model.TxTypeWithdrawal, limit)
}

// InvoiceResult is a Telegram Stars invoice link for a withdrawal fee.
type InvoiceResult struct {
	URL     string `json:"invoice_url"`
	Amount  int64  `json:"amount"`
	Payload string `json:"payload"`
}

// CreateInvoice issues a Stars invoice covering the withdrawal fee for the
// given gifts. The payload carries a fresh UUID plus the gift ids so the
// payment can be reconciled later. No ledger state changes here.
func (s *WithdrawalService) CreateInvoice(ctx context.Context, userID int64, giftIDs []int64) (*InvoiceResult, error) {
	if len(giftIDs) == 0 {
		return nil, ErrEmptyInvoice
	}
	if s.payments == nil {
		return nil, errors.New("payments client is not configured")
	}

	amount := s.starsPerGift * int64(len(giftIDs))

	ids := make([]string, 0, len(giftIDs))
	for _, id := range giftIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	payload := fmt.Sprintf("withdrawal:%d:%s:%s", userID, uuid.NewString(), strings.Join(ids, ","))

	url, err := s.payments.CreateInvoiceLink(ctx, telegram.Invoice{
		Title:       "Gift withdrawal",
		Description: fmt.Sprintf("Withdrawal fee for %d gift(s)", len(giftIDs)),
		Payload:     payload,
		Amount:      amount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice link: %w", err)
	}

	log.Info().Int64("user_id", userID).Int64("amount", amount).Msg("Invoice created")
	return &InvoiceResult{URL: url, Amount: amount, Payload: payload}, nil
}
