package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gift-betting-backend/internal/model"
)

// TransactionRepository handles the deposit/withdrawal audit log.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const txColumns = `id, user_id, type, deposit_id, gift_title, gift_slug, gift_value,
		stars_paid, recipient_user_id, status, telegram_message_id, notes, created_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Type,
		&t.DepositID,
		&t.GiftTitle,
		&t.GiftSlug,
		&t.GiftValue,
		&t.StarsPaid,
		&t.RecipientUserID,
		&t.Status,
		&t.TelegramMessageID,
		&t.Notes,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateDepositInTx records a completed deposit transaction alongside the
// deposit row, inside the same transaction.
func (r *TransactionRepository) CreateDepositInTx(ctx context.Context, tx pgx.Tx, d *model.Deposit) error {
	const query = `
		INSERT INTO transactions (user_id, type, deposit_id, gift_title, gift_slug,
			gift_value, stars_paid, status, telegram_message_id, notes, created_at)
		VALUES ($1, 'deposit', $2, $3, $4, $5, $6, 'completed', $7, $8, NOW())
	`

	notes := fmt.Sprintf("automatic gift deposit from user %d", d.TelegramUserID)
	_, err := tx.Exec(ctx, query,
		d.TelegramUserID, d.ID, d.Title, d.Slug, d.Value, d.Value, d.MessageID, notes)
	if err != nil {
		return fmt.Errorf("failed to record deposit transaction: %w", err)
	}

	return nil
}

// CreateWithdrawalInTx records a pending withdrawal of one deposit. The
// returned id is flipped to completed (or failed) by the caller once the
// transfer result is known.
func (r *TransactionRepository) CreateWithdrawalInTx(ctx context.Context, tx pgx.Tx, d *model.Deposit, recipientID int64) (int64, error) {
	const query = `
		INSERT INTO transactions (user_id, type, deposit_id, gift_title, gift_slug,
			gift_value, recipient_user_id, status, telegram_message_id, notes, created_at)
		VALUES ($1, 'withdrawal', $2, $3, $4, $5, $6, 'pending', $7, $8, NOW())
		RETURNING id
	`

	notes := fmt.Sprintf("gift withdrawal to user %d", recipientID)
	var id int64
	err := tx.QueryRow(ctx, query,
		d.TelegramUserID, d.ID, d.Title, d.Slug, d.Value, recipientID, d.MessageID, notes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record withdrawal transaction: %w", err)
	}

	return id, nil
}

// SetStatusInTx updates a transaction's status.
func (r *TransactionRepository) SetStatusInTx(ctx context.Context, tx pgx.Tx, id int64, status string) error {
	const query = `UPDATE transactions SET status = $2 WHERE id = $1`

	result, err := tx.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}

	return nil
}

// HasCompletedWithdrawal reports whether a deposit was already withdrawn.
// Runs inside the withdrawal transaction with the deposit row locked.
func (r *TransactionRepository) HasCompletedWithdrawal(ctx context.Context, tx pgx.Tx, depositID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE deposit_id = $1 AND type = 'withdrawal' AND status = 'completed'
		)
	`

	var withdrawn bool
	if err := tx.QueryRow(ctx, query, depositID).Scan(&withdrawn); err != nil {
		return false, fmt.Errorf("failed to check withdrawal history: %w", err)
	}

	return withdrawn, nil
}

// HasWithdrawnDeposit reports whether any of the deposits already left the
// platform through a completed withdrawal. Withdrawn gifts cannot back a bet.
func (r *TransactionRepository) HasWithdrawnDeposit(ctx context.Context, tx pgx.Tx, depositIDs []int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE deposit_id = ANY($1) AND type = 'withdrawal' AND status = 'completed'
		)
	`

	var withdrawn bool
	if err := tx.QueryRow(ctx, query, depositIDs).Scan(&withdrawn); err != nil {
		return false, fmt.Errorf("failed to check withdrawal history: %w", err)
	}

	return withdrawn, nil
}

// GetByUserAndType retrieves a user's transactions of one type, newest first.
func (r *TransactionRepository) GetByUserAndType(ctx context.Context, userID int64, txType string, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT ` + txColumns + `
		FROM transactions
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, txType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
