// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gift-betting-backend/internal/model"
)

// Common errors for repository operations.
var (
	ErrDepositNotFound  = errors.New("deposit not found")
	ErrDuplicateDeposit = errors.New("deposit already processed")
	ErrEventNotFound    = errors.New("event not found")
	ErrBetNotFound      = errors.New("bet not found")
)

// DepositRepository handles gift deposit persistence.
type DepositRepository struct {
	pool *pgxpool.Pool
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(pool *pgxpool.Pool) *DepositRepository {
	return &DepositRepository{pool: pool}
}

const depositColumns = `id, telegram_user_id, title, slug, value, message_id, created_at`

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var d model.Deposit
	err := row.Scan(
		&d.ID,
		&d.TelegramUserID,
		&d.Title,
		&d.Slug,
		&d.Value,
		&d.MessageID,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateInTx inserts a deposit inside an open transaction. The UNIQUE
// constraint on message_id turns replayed notifications into
// ErrDuplicateDeposit with no row written.
func (r *DepositRepository) CreateInTx(ctx context.Context, tx pgx.Tx, userID int64, title, slug string, value, messageID int64) (*model.Deposit, error) {
	const query = `
		INSERT INTO deposits (telegram_user_id, title, slug, value, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (message_id) DO NOTHING
		RETURNING ` + depositColumns

	deposit, err := scanDeposit(tx.QueryRow(ctx, query, userID, title, slug, value, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuplicateDeposit
		}
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}

	return deposit, nil
}

// GetByID retrieves a deposit by id.
func (r *DepositRepository) GetByID(ctx context.Context, id int64) (*model.Deposit, error) {
	const query = `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`

	deposit, err := scanDeposit(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return deposit, nil
}

// GetByIDForUpdate loads one deposit row with a row lock, for the
// withdrawal path.
func (r *DepositRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Deposit, error) {
	const query = `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE`

	deposit, err := scanDeposit(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to lock deposit: %w", err)
	}

	return deposit, nil
}

// GetOwnedForUpdate loads the named deposits filtered by owner, locking each
// row. Callers compare len(result) against len(ids): a shortfall covers both
// nonexistent ids and ids owned by another user. Rows are locked in id order
// to keep concurrent placements from deadlocking on each other.
func (r *DepositRepository) GetOwnedForUpdate(ctx context.Context, tx pgx.Tx, ids []int64, ownerID int64) ([]*model.Deposit, error) {
	const query = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE id = ANY($1) AND telegram_user_id = $2
		ORDER BY id
		FOR UPDATE
	`

	rows, err := tx.Query(ctx, query, ids, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, deposit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}

	return deposits, nil
}

// GetByUser retrieves all deposits for a user, newest first.
func (r *DepositRepository) GetByUser(ctx context.Context, userID int64) ([]*model.Deposit, error) {
	const query = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE telegram_user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, deposit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}

	return deposits, nil
}

// TotalDeposited returns the sum of deposit values for a user.
func (r *DepositRepository) TotalDeposited(ctx context.Context, userID int64) (int64, error) {
	const query = `
		SELECT COALESCE(SUM(value), 0)
		FROM deposits
		WHERE telegram_user_id = $1
	`

	var total int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum deposits: %w", err)
	}

	return total, nil
}
