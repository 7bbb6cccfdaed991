package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate creates the four ledger tables and their indexes. It is safe to run
// on every startup; all statements are IF NOT EXISTS.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: deposits. The UNIQUE constraint on message_id is what
	// makes deposit intake idempotent - replays violate it and are dropped.
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deposits (
			id BIGSERIAL PRIMARY KEY,
			telegram_user_id BIGINT NOT NULL,
			title VARCHAR(255) NOT NULL,
			slug VARCHAR(255) NOT NULL,
			value BIGINT NOT NULL CHECK (value > 0),
			message_id BIGINT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_deposits_user_id ON deposits(telegram_user_id);
		CREATE INDEX IF NOT EXISTS idx_deposits_created ON deposits(created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: deposits table created")

	// Migration 2: events. Outcomes and coefficients are ordered JSONB
	// arrays; outcome_index in bets is positional into them.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			outcomes JSONB NOT NULL,
			coefficients JSONB NOT NULL,
			total_bank BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'waiting',
			start_time TIMESTAMPTZ,
			end_time TIMESTAMPTZ NOT NULL,
			result_outcome VARCHAR(255),
			winner_index INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_events_status ON events(status);
		CREATE INDEX IF NOT EXISTS idx_events_end_time ON events(end_time);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: events table created")

	// Migration 3: bets.
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS bets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			event_id BIGINT NOT NULL REFERENCES events(id),
			outcome VARCHAR(255) NOT NULL,
			outcome_index INTEGER NOT NULL,
			gift_ids JSONB NOT NULL,
			total_value BIGINT NOT NULL,
			coefficient NUMERIC(6,3) NOT NULL,
			potential_payout BIGINT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			actual_payout BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_bets_user_id ON bets(user_id);
		CREATE INDEX IF NOT EXISTS idx_bets_event_id ON bets(event_id);
		CREATE INDEX IF NOT EXISTS idx_bets_status ON bets(status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: bets table created")

	// Migration 4: transactions (deposit/withdrawal audit log).
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			deposit_id BIGINT,
			gift_title VARCHAR(255) NOT NULL DEFAULT '',
			gift_slug VARCHAR(255) NOT NULL DEFAULT '',
			gift_value BIGINT NOT NULL DEFAULT 0,
			stars_paid BIGINT NOT NULL DEFAULT 0,
			recipient_user_id BIGINT,
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			telegram_message_id BIGINT,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
		CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type);
		CREATE INDEX IF NOT EXISTS idx_transactions_deposit ON transactions(deposit_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: transactions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
