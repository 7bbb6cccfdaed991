// Package model defines the data models for the gift betting platform.
package model

import "time"

// Deposit is an immutable record of one Telegram gift credited to a user.
// MessageID is the Telegram message id of the gift transfer and doubles as
// the idempotency key: a deposit notification may be replayed, a row may not.
type Deposit struct {
	ID             int64     `db:"id" json:"id"`
	TelegramUserID int64     `db:"telegram_user_id" json:"telegram_user_id"`
	Title          string    `db:"title" json:"title"`
	Slug           string    `db:"slug" json:"slug"`
	Value          int64     `db:"value" json:"value"`
	MessageID      int64     `db:"message_id" json:"message_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Event is a wagering market with a fixed, ordered set of outcomes and one
// payout coefficient per outcome. Outcome indexes are positional.
type Event struct {
	ID            int64         `db:"id" json:"id"`
	Title         string        `db:"title" json:"title"`
	Description   string        `db:"description" json:"description"`
	Outcomes      []string      `db:"outcomes" json:"outcomes"`
	Coefficients  []Coefficient `db:"coefficients" json:"coefficients"`
	TotalBank     int64         `db:"total_bank" json:"total_bank"`
	Status        string        `db:"status" json:"status"`
	StartTime     *time.Time    `db:"start_time" json:"start_time"`
	EndTime       time.Time     `db:"end_time" json:"end_time"`
	ResultOutcome *string       `db:"result_outcome" json:"result_outcome"`
	WinnerIndex   *int          `db:"winner_index" json:"winner_index"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// Bet is a user's wager of specific deposits on one outcome of one event.
type Bet struct {
	ID              int64       `db:"id" json:"id"`
	UserID          int64       `db:"user_id" json:"user_id"`
	EventID         int64       `db:"event_id" json:"event_id"`
	Outcome         string      `db:"outcome" json:"outcome"`
	OutcomeIndex    int         `db:"outcome_index" json:"outcome_index"`
	GiftIDs         []int64     `db:"gift_ids" json:"gift_ids"`
	TotalValue      int64       `db:"total_value" json:"total_value"`
	Coefficient     Coefficient `db:"coefficient" json:"coefficient"`
	PotentialPayout int64       `db:"potential_payout" json:"potential_payout"`
	Status          string      `db:"status" json:"status"`
	ActualPayout    *int64      `db:"actual_payout" json:"actual_payout"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// UserBet is a bet joined with its event for history listings.
type UserBet struct {
	Bet
	EventTitle  string `db:"event_title" json:"event_title"`
	EventStatus string `db:"event_status" json:"event_status"`
}

// Transaction is an append-only audit record for deposits and withdrawals.
// Withdrawal rows reference the source deposit and prevent double-withdrawal.
type Transaction struct {
	ID                int64     `db:"id" json:"id"`
	UserID            int64     `db:"user_id" json:"user_id"`
	Type              string    `db:"type" json:"type"`
	DepositID         *int64    `db:"deposit_id" json:"deposit_id"`
	GiftTitle         string    `db:"gift_title" json:"gift_title"`
	GiftSlug          string    `db:"gift_slug" json:"gift_slug"`
	GiftValue         int64     `db:"gift_value" json:"gift_value"`
	StarsPaid         int64     `db:"stars_paid" json:"stars_paid"`
	RecipientUserID   *int64    `db:"recipient_user_id" json:"recipient_user_id"`
	Status            string    `db:"status" json:"status"`
	TelegramMessageID *int64    `db:"telegram_message_id" json:"telegram_message_id"`
	Notes             string    `db:"notes" json:"notes"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Balance is the derived (never stored) view of a user's funds in stars.
// Available = max(0, Deposited - Spent + Won).
type Balance struct {
	Deposited int64 `json:"total_deposited"`
	Spent     int64 `json:"total_spent"`
	Won       int64 `json:"total_won"`
	Available int64 `json:"available_balance"`
}

// EventStats aggregates the betting activity on one event.
type EventStats struct {
	TotalBets   int64          `json:"total_bets"`
	UniqueUsers int64          `json:"unique_users"`
	TotalVolume int64          `json:"total_volume"`
	Outcomes    []OutcomeStats `json:"outcomes"`
}

// OutcomeStats is the per-outcome slice of EventStats.
type OutcomeStats struct {
	Outcome      string `json:"outcome"`
	OutcomeIndex int    `json:"outcome_index"`
	BetsCount    int64  `json:"bets_count"`
	TotalValue   int64  `json:"total_value"`
}

// UserBetStats aggregates a single user's betting record.
type UserBetStats struct {
	TotalBets    int64   `json:"total_bets"`
	WonBets      int64   `json:"won_bets"`
	LostBets     int64   `json:"lost_bets"`
	PendingBets  int64   `json:"pending_bets"`
	TotalWagered int64   `json:"total_wagered"`
	TotalWon     int64   `json:"total_won"`
	WinRate      float64 `json:"win_rate"`
	ProfitLoss   int64   `json:"profit_loss"`
}

// Event lifecycle statuses. Transitions are monotonic:
// waiting -> active (first bet) -> finished (settlement).
const (
	EventStatusWaiting  = "waiting"
	EventStatusActive   = "active"
	EventStatusFinished = "finished"
)

// Bet statuses. A bet leaves pending exactly once and never returns.
const (
	BetStatusPending   = "pending"
	BetStatusWon       = "won"
	BetStatusLost      = "lost"
	BetStatusCancelled = "cancelled"
)

// Transaction types and statuses.
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"

	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)
