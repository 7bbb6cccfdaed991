package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gift-betting-backend/internal/model"
)

// BetRepository handles bet persistence.
type BetRepository struct {
	pool *pgxpool.Pool
}

// NewBetRepository creates a new BetRepository instance.
func NewBetRepository(pool *pgxpool.Pool) *BetRepository {
	return &BetRepository{pool: pool}
}

const betColumns = `id, user_id, event_id, outcome, outcome_index, gift_ids,
		total_value, coefficient::text, potential_payout, status, actual_payout, created_at, updated_at`

func scanBet(row pgx.Row) (*model.Bet, error) {
	var (
		b           model.Bet
		giftIDsRaw  []byte
		coefficient string
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.EventID,
		&b.Outcome,
		&b.OutcomeIndex,
		&giftIDsRaw,
		&b.TotalValue,
		&coefficient,
		&b.PotentialPayout,
		&b.Status,
		&b.ActualPayout,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(giftIDsRaw, &b.GiftIDs); err != nil {
		return nil, fmt.Errorf("failed to decode gift_ids: %w", err)
	}
	if b.Coefficient, err = model.ParseCoefficient(coefficient); err != nil {
		return nil, fmt.Errorf("failed to decode coefficient: %w", err)
	}

	return &b, nil
}

// CreateInTx inserts a pending bet inside the placement transaction.
func (r *BetRepository) CreateInTx(ctx context.Context, tx pgx.Tx, bet *model.Bet) (*model.Bet, error) {
	giftIDsJSON, err := json.Marshal(bet.GiftIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gift_ids: %w", err)
	}

	const query = `
		INSERT INTO bets (user_id, event_id, outcome, outcome_index, gift_ids,
			total_value, coefficient, potential_payout, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, 'pending', NOW(), NOW())
		RETURNING ` + betColumns

	created, err := scanBet(tx.QueryRow(ctx, query,
		bet.UserID,
		bet.EventID,
		bet.Outcome,
		bet.OutcomeIndex,
		giftIDsJSON,
		bet.TotalValue,
		bet.Coefficient.String(),
		bet.PotentialPayout,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	return created, nil
}

// HasCollateralCommitted reports whether any of the gift ids already back a
// bet of this user in status pending or won. Runs inside the placement
// transaction with the deposit rows locked, so two placements racing on the
// same gift serialize and exactly one sees it as free.
func (r *BetRepository) HasCollateralCommitted(ctx context.Context, tx pgx.Tx, userID int64, giftIDs []int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM bets b
			CROSS JOIN LATERAL jsonb_array_elements_text(b.gift_ids) AS g(elem)
			WHERE b.user_id = $1
			  AND b.status IN ('pending', 'won')
			  AND g.elem::bigint = ANY($2)
		)
	`

	var committed bool
	if err := tx.QueryRow(ctx, query, userID, giftIDs).Scan(&committed); err != nil {
		return false, fmt.Errorf("failed to check collateral: %w", err)
	}

	return committed, nil
}

// IsDepositCommitted reports whether one deposit currently backs any pending
// or won bet, regardless of owner. Used by the withdrawal path.
func (r *BetRepository) IsDepositCommitted(ctx context.Context, tx pgx.Tx, depositID int64) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM bets b
			WHERE b.status IN ('pending', 'won')
			  AND b.gift_ids @> to_jsonb($1::bigint)
		)
	`

	var committed bool
	if err := tx.QueryRow(ctx, query, depositID).Scan(&committed); err != nil {
		return false, fmt.Errorf("failed to check deposit commitment: %w", err)
	}

	return committed, nil
}

// SettleWinnersInTx resolves every pending bet on the winning outcome to won
// with actual_payout = potential_payout, in one statement. Returns the number
// of winners and the sum of their payouts.
func (r *BetRepository) SettleWinnersInTx(ctx context.Context, tx pgx.Tx, eventID int64, winnerIndex int) (int64, int64, error) {
	const query = `
		WITH settled AS (
			UPDATE bets
			SET status = 'won',
			    actual_payout = potential_payout,
			    updated_at = NOW()
			WHERE event_id = $1 AND status = 'pending' AND outcome_index = $2
			RETURNING potential_payout
		)
		SELECT COUNT(*), COALESCE(SUM(potential_payout), 0) FROM settled
	`

	var count, total int64
	if err := tx.QueryRow(ctx, query, eventID, winnerIndex).Scan(&count, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to settle winning bets: %w", err)
	}

	return count, total, nil
}

// SettleLosersInTx resolves every remaining pending bet on the event to lost
// with actual_payout = 0. Returns the number of losers.
func (r *BetRepository) SettleLosersInTx(ctx context.Context, tx pgx.Tx, eventID int64, winnerIndex int) (int64, error) {
	const query = `
		UPDATE bets
		SET status = 'lost',
		    actual_payout = 0,
		    updated_at = NOW()
		WHERE event_id = $1 AND status = 'pending' AND outcome_index <> $2
	`

	result, err := tx.Exec(ctx, query, eventID, winnerIndex)
	if err != nil {
		return 0, fmt.Errorf("failed to settle losing bets: %w", err)
	}

	return result.RowsAffected(), nil
}

// GetByUser retrieves a user's bets joined with event title and status,
// newest first.
func (r *BetRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*model.UserBet, error) {
	const query = `
		SELECT b.id, b.user_id, b.event_id, b.outcome, b.outcome_index, b.gift_ids,
		       b.total_value, b.coefficient::text, b.potential_payout, b.status, b.actual_payout,
		       b.created_at, b.updated_at, e.title, e.status
		FROM bets b
		JOIN events e ON b.event_id = e.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.UserBet
	for rows.Next() {
		var (
			ub          model.UserBet
			giftIDsRaw  []byte
			coefficient string
		)
		err := rows.Scan(
			&ub.ID,
			&ub.UserID,
			&ub.EventID,
			&ub.Outcome,
			&ub.OutcomeIndex,
			&giftIDsRaw,
			&ub.TotalValue,
			&coefficient,
			&ub.PotentialPayout,
			&ub.Status,
			&ub.ActualPayout,
			&ub.CreatedAt,
			&ub.UpdatedAt,
			&ub.EventTitle,
			&ub.EventStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user bet: %w", err)
		}
		if err := json.Unmarshal(giftIDsRaw, &ub.GiftIDs); err != nil {
			return nil, fmt.Errorf("failed to decode gift_ids: %w", err)
		}
		if ub.Coefficient, err = model.ParseCoefficient(coefficient); err != nil {
			return nil, fmt.Errorf("failed to decode coefficient: %w", err)
		}
		bets = append(bets, &ub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user bets: %w", err)
	}

	return bets, nil
}

// ListByEvent retrieves all bets on one event.
func (r *BetRepository) ListByEvent(ctx context.Context, eventID int64) ([]*model.Bet, error) {
	const query = `SELECT ` + betColumns + ` FROM bets WHERE event_id = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}

	return bets, nil
}

// CountPendingByEvent returns the number of unresolved bets on an event.
func (r *BetRepository) CountPendingByEvent(ctx context.Context, eventID int64) (int64, error) {
	const query = `SELECT COUNT(*) FROM bets WHERE event_id = $1 AND status = 'pending'`

	var count int64
	if err := r.pool.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending bets: %w", err)
	}

	return count, nil
}

// SpentAndWon returns the two bet-side balance aggregates for a user:
// spent = total_value over bets not cancelled (pending and won collateral is
// committed regardless of outcome), won = actual_payout over won bets.
func (r *BetRepository) SpentAndWon(ctx context.Context, userID int64) (int64, int64, error) {
	const query = `
		SELECT
			COALESCE(SUM(total_value) FILTER (WHERE status <> 'cancelled'), 0),
			COALESCE(SUM(actual_payout) FILTER (WHERE status = 'won'), 0)
		FROM bets
		WHERE user_id = $1
	`

	var spent, won int64
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&spent, &won); err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate bets: %w", err)
	}

	return spent, won, nil
}

// StatsByEvent aggregates bet count, unique bettors, volume and the
// per-outcome breakdown for one event.
func (r *BetRepository) StatsByEvent(ctx context.Context, eventID int64) (*model.EventStats, error) {
	const totalsQuery = `
		SELECT COUNT(*), COUNT(DISTINCT user_id), COALESCE(SUM(total_value), 0)
		FROM bets
		WHERE event_id = $1
	`

	var stats model.EventStats
	if err := r.pool.QueryRow(ctx, totalsQuery, eventID).Scan(&stats.TotalBets, &stats.UniqueUsers, &stats.TotalVolume); err != nil {
		return nil, fmt.Errorf("failed to get event totals: %w", err)
	}

	const outcomesQuery = `
		SELECT outcome, outcome_index, COUNT(*), SUM(total_value)
		FROM bets
		WHERE event_id = $1
		GROUP BY outcome, outcome_index
		ORDER BY outcome_index
	`

	rows, err := r.pool.Query(ctx, outcomesQuery, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var os model.OutcomeStats
		if err := rows.Scan(&os.Outcome, &os.OutcomeIndex, &os.BetsCount, &os.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan outcome stats: %w", err)
		}
		stats.Outcomes = append(stats.Outcomes, os)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outcome stats: %w", err)
	}

	return &stats, nil
}

// StatsByUser aggregates a user's betting record.
func (r *BetRepository) StatsByUser(ctx context.Context, userID int64) (*model.UserBetStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'won'),
			COUNT(*) FILTER (WHERE status = 'lost'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COALESCE(SUM(total_value), 0),
			COALESCE(SUM(actual_payout) FILTER (WHERE status = 'won'), 0)
		FROM bets
		WHERE user_id = $1
	`

	var stats model.UserBetStats
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&stats.TotalBets,
		&stats.WonBets,
		&stats.LostBets,
		&stats.PendingBets,
		&stats.TotalWagered,
		&stats.TotalWon,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	if stats.TotalBets > 0 {
		stats.WinRate = float64(stats.WonBets) / float64(stats.TotalBets) * 100
	}
	stats.ProfitLoss = stats.TotalWon - stats.TotalWagered

	return &stats, nil
}

// GetByID retrieves a bet by id.
func (r *BetRepository) GetByID(ctx context.Context, id int64) (*model.Bet, error) {
	const query = `SELECT ` + betColumns + ` FROM bets WHERE id = $1`

	bet, err := scanBet(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBetNotFound
		}
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}

	return bet, nil
}
