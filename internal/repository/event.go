package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gift-betting-backend/internal/model"
)

// EventRepository handles wagering event persistence.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `id, title, description, outcomes, coefficients, total_bank,
		status, start_time, end_time, result_outcome, winner_index, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e               model.Event
		outcomesRaw     []byte
		coefficientsRaw []byte
	)
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&outcomesRaw,
		&coefficientsRaw,
		&e.TotalBank,
		&e.Status,
		&e.StartTime,
		&e.EndTime,
		&e.ResultOutcome,
		&e.WinnerIndex,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outcomesRaw, &e.Outcomes); err != nil {
		return nil, fmt.Errorf("failed to decode outcomes: %w", err)
	}
	if err := json.Unmarshal(coefficientsRaw, &e.Coefficients); err != nil {
		return nil, fmt.Errorf("failed to decode coefficients: %w", err)
	}

	return &e, nil
}

// Create inserts a new event in status waiting. Outcomes and coefficients
// must be the same length; the caller validates that.
func (r *EventRepository) Create(ctx context.Context, title, description string, outcomes []string, coefficients []model.Coefficient, endTime time.Time) (*model.Event, error) {
	outcomesJSON, err := json.Marshal(outcomes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outcomes: %w", err)
	}
	coefficientsJSON, err := json.Marshal(coefficients)
	if err != nil {
		return nil, fmt.Errorf("failed to encode coefficients: %w", err)
	}

	const query = `
		INSERT INTO events (title, description, outcomes, coefficients, status, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'waiting', $5, NOW(), NOW())
		RETURNING ` + eventColumns

	event, err := scanEvent(r.pool.QueryRow(ctx, query, title, description, outcomesJSON, coefficientsJSON, endTime))
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	return event, nil
}

// GetByID retrieves an event by id.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// GetForUpdate loads the event row with a row lock. Every writer - bet
// placement and settlement - goes through here, which serializes total_bank
// updates, the waiting->active transition, and settlement against late bets.
func (r *EventRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`

	event, err := scanEvent(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	return event, nil
}

// GetActive retrieves events open for betting: status waiting or active with
// end_time still in the future, soonest-closing first.
func (r *EventRepository) GetActive(ctx context.Context) ([]*model.Event, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status IN ('waiting', 'active') AND end_time > NOW()
		ORDER BY end_time ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// AddToBankInTx grows the event's total bank by the committed stake and
// performs the waiting->active transition on the first bet. Runs inside the
// placement transaction after the event row is already locked.
func (r *EventRepository) AddToBankInTx(ctx context.Context, tx pgx.Tx, id, amount int64) error {
	const query = `
		UPDATE events
		SET total_bank = total_bank + $2,
		    start_time = CASE WHEN status = 'waiting' THEN NOW() ELSE start_time END,
		    status = CASE WHEN status = 'waiting' THEN 'active' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, amount)
	if err != nil {
		return fmt.Errorf("failed to update event bank: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	return nil
}

// FinishInTx transitions the event to finished and records the winning
// outcome. The status is terminal; winner_index and result_outcome are
// written exactly once.
func (r *EventRepository) FinishInTx(ctx context.Context, tx pgx.Tx, id int64, winnerIndex int, resultOutcome string) error {
	const query = `
		UPDATE events
		SET status = 'finished',
		    winner_index = $2,
		    result_outcome = $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, winnerIndex, resultOutcome)
	if err != nil {
		return fmt.Errorf("failed to finish event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	return nil
}
