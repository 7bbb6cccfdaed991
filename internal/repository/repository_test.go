// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// inTx runs fn inside a committed transaction, failing the test on error.
func inTx(t *testing.T, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) {
	t.Helper()
	require.NoError(t, db.WithTx(context.Background(), pool, fn))
}

func mustCoefficient(t *testing.T, s string) model.Coefficient {
	t.Helper()
	c, err := model.ParseCoefficient(s)
	require.NoError(t, err)
	return c
}

// createDeposit inserts one deposit and returns it.
func createDeposit(t *testing.T, pool *pgxpool.Pool, userID, value, messageID int64) *model.Deposit {
	t.Helper()
	repo := NewDepositRepository(pool)

	var deposit *model.Deposit
	inTx(t, pool, func(tx pgx.Tx) error {
		var err error
		deposit, err = repo.CreateInTx(context.Background(), tx, userID, "Plush Pepe", "plushpepe", value, messageID)
		return err
	})
	return deposit
}

// createEvent inserts a two-outcome event ending one hour from now.
func createEvent(t *testing.T, pool *pgxpool.Pool) *model.Event {
	t.Helper()
	repo := NewEventRepository(pool)

	event, err := repo.Create(context.Background(),
		"Team A vs Team B", "friendly match",
		[]string{"Team A wins", "Team B wins"},
		[]model.Coefficient{mustCoefficient(t, "2.000"), mustCoefficient(t, "1.857")},
		time.Now().Add(time.Hour),
	)
	require.NoError(t, err)
	return event
}

// placeBet inserts a pending bet backed by the given deposits.
func placeBet(t *testing.T, pool *pgxpool.Pool, userID int64, event *model.Event, outcomeIndex int, deposits ...*model.Deposit) *model.Bet {
	t.Helper()
	betRepo := NewBetRepository(pool)
	eventRepo := NewEventRepository(pool)

	giftIDs := make([]int64, 0, len(deposits))
	var total int64
	for _, d := range deposits {
		giftIDs = append(giftIDs, d.ID)
		total += d.Value
	}
	coef := event.Coefficients[outcomeIndex]

	var bet *model.Bet
	inTx(t, pool, func(tx pgx.Tx) error {
		var err error
		bet, err = betRepo.CreateInTx(context.Background(), tx, &model.Bet{
			UserID:          userID,
			EventID:         event.ID,
			Outcome:         event.Outcomes[outcomeIndex],
			OutcomeIndex:    outcomeIndex,
			GiftIDs:         giftIDs,
			TotalValue:      total,
			Coefficient:     coef,
			PotentialPayout: coef.Payout(total),
		})
		if err != nil {
			return err
		}
		return eventRepo.AddToBankInTx(context.Background(), tx, event.ID, total)
	})
	return bet
}

// ============================================================================
// DepositRepository Tests
// ============================================================================

func TestDepositRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDepositRepository(pool)
	ctx := context.Background()

	deposit := createDeposit(t, pool, 1001, 150, 555)
	assert.Equal(t, int64(1001), deposit.TelegramUserID)
	assert.Equal(t, int64(150), deposit.Value)
	assert.Equal(t, int64(555), deposit.MessageID)

	got, err := repo.GetByID(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, deposit.ID, got.ID)
	assert.Equal(t, "plushpepe", got.Slug)
}

func TestDepositRepository_DuplicateMessageID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDepositRepository(pool)
	ctx := context.Background()

	createDeposit(t, pool, 1001, 150, 777)

	// Replaying the same message must not create a second row
	err := db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		_, err := repo.CreateInTx(ctx, tx, 1001, "Plush Pepe", "plushpepe", 150, 777)
		return err
	})
	assert.ErrorIs(t, err, ErrDuplicateDeposit)

	total, err := repo.TotalDeposited(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestDepositRepository_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDepositRepository(pool)
	_, err := repo.GetByID(context.Background(), 99999)
	assert.ErrorIs(t, err, ErrDepositNotFound)
}

func TestDepositRepository_GetOwnedForUpdate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDepositRepository(pool)
	ctx := context.Background()

	d1 := createDeposit(t, pool, 1001, 100, 1)
	d2 := createDeposit(t, pool, 1001, 200, 2)
	other := createDeposit(t, pool, 2002, 300, 3)

	inTx(t, pool, func(tx pgx.Tx) error {
		owned, err := repo.GetOwnedForUpdate(ctx, tx, []int64{d1.ID, d2.ID}, 1001)
		require.NoError(t, err)
		assert.Len(t, owned, 2)

		// A foreign gift in the set comes back short
		short, err := repo.GetOwnedForUpdate(ctx, tx, []int64{d1.ID, other.ID}, 1001)
		require.NoError(t, err)
		assert.Len(t, short, 1)
		return nil
	})
}

func TestDepositRepository_GetByUserAndTotal(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDepositRepository(pool)
	ctx := context.Background()

	createDeposit(t, pool, 1001, 100, 10)
	createDeposit(t, pool, 1001, 250, 11)
	createDeposit(t, pool, 2002, 999, 12)

	deposits, err := repo.GetByUser(ctx, 1001)
	require.NoError(t, err)
	assert.Len(t, deposits, 2)

	total, err := repo.TotalDeposited(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(350), total)

	empty, err := repo.TotalDeposited(ctx, 3003)
	require.NoError(t, err)
	assert.Zero(t, empty)
}

// ============================================================================
// EventRepository Tests
// ============================================================================

func TestEventRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewEventRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	assert.Equal(t, model.EventStatusWaiting, event.Status)
	assert.Zero(t, event.TotalBank)

	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Team A wins", "Team B wins"}, got.Outcomes)
	assert.Equal(t, mustCoefficient(t, "1.857"), got.Coefficients[1])

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventRepository_AddToBankActivates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewEventRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)

	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.AddToBankInTx(ctx, tx, event.ID, 100)
	})
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.AddToBankInTx(ctx, tx, event.ID, 50)
	})

	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.TotalBank)
	// First bet flips waiting -> active and stamps start_time
	assert.Equal(t, model.EventStatusActive, got.Status)
	assert.NotNil(t, got.StartTime)
}

func TestEventRepository_GetActiveExcludesFinishedAndExpired(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewEventRepository(pool)
	ctx := context.Background()

	open := createEvent(t, pool)

	expired, err := repo.Create(ctx, "Over already", "",
		[]string{"yes", "no"},
		[]model.Coefficient{mustCoefficient(t, "1.5"), mustCoefficient(t, "2.5")},
		time.Now().Add(-time.Minute),
	)
	require.NoError(t, err)

	finished := createEvent(t, pool)
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.FinishInTx(ctx, tx, finished.ID, 0, "Team A wins")
	})

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)

	ids := make([]int64, 0, len(active))
	for _, e := range active {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, open.ID)
	assert.NotContains(t, ids, expired.ID)
	assert.NotContains(t, ids, finished.ID)
}

func TestEventRepository_Finish(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewEventRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.FinishInTx(ctx, tx, event.ID, 1, "Team B wins")
	})

	got, err := repo.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusFinished, got.Status)
	require.NotNil(t, got.WinnerIndex)
	assert.Equal(t, 1, *got.WinnerIndex)
	require.NotNil(t, got.ResultOutcome)
	assert.Equal(t, "Team B wins", *got.ResultOutcome)
}

// ============================================================================
// BetRepository Tests
// ============================================================================

func TestBetRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d := createDeposit(t, pool, 1001, 100, 1)
	bet := placeBet(t, pool, 1001, event, 0, d)

	assert.Equal(t, model.BetStatusPending, bet.Status)
	assert.Equal(t, int64(200), bet.PotentialPayout)
	assert.Nil(t, bet.ActualPayout)

	got, err := repo.GetByID(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{d.ID}, got.GiftIDs)
	assert.Equal(t, mustCoefficient(t, "2.000"), got.Coefficient)
}

func TestBetRepository_HasCollateralCommitted(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d1 := createDeposit(t, pool, 1001, 100, 1)
	d2 := createDeposit(t, pool, 1001, 200, 2)
	placeBet(t, pool, 1001, event, 0, d1)

	inTx(t, pool, func(tx pgx.Tx) error {
		committed, err := repo.HasCollateralCommitted(ctx, tx, 1001, []int64{d1.ID})
		require.NoError(t, err)
		assert.True(t, committed)

		free, err := repo.HasCollateralCommitted(ctx, tx, 1001, []int64{d2.ID})
		require.NoError(t, err)
		assert.False(t, free)

		// Any overlap with a committed gift counts
		mixed, err := repo.HasCollateralCommitted(ctx, tx, 1001, []int64{d1.ID, d2.ID})
		require.NoError(t, err)
		assert.True(t, mixed)
		return nil
	})
}

func TestBetRepository_CollateralFreedAfterLoss(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d := createDeposit(t, pool, 1001, 100, 1)
	placeBet(t, pool, 1001, event, 1, d)

	inTx(t, pool, func(tx pgx.Tx) error {
		_, err := repo.SettleLosersInTx(ctx, tx, event.ID, 0)
		return err
	})

	// A lost bet no longer pins its gifts
	inTx(t, pool, func(tx pgx.Tx) error {
		committed, err := repo.HasCollateralCommitted(ctx, tx, 1001, []int64{d.ID})
		require.NoError(t, err)
		assert.False(t, committed)
		return nil
	})
}

func TestBetRepository_Settlement(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	dWin1 := createDeposit(t, pool, 1001, 100, 1)
	dWin2 := createDeposit(t, pool, 2002, 50, 2)
	dLose := createDeposit(t, pool, 3003, 80, 3)

	winBet1 := placeBet(t, pool, 1001, event, 0, dWin1) // pays 200
	winBet2 := placeBet(t, pool, 2002, event, 0, dWin2) // pays 100
	loseBet := placeBet(t, pool, 3003, event, 1, dLose)

	var winners, payouts, losers int64
	inTx(t, pool, func(tx pgx.Tx) error {
		var err error
		winners, payouts, err = repo.SettleWinnersInTx(ctx, tx, event.ID, 0)
		require.NoError(t, err)
		losers, err = repo.SettleLosersInTx(ctx, tx, event.ID, 0)
		return err
	})

	assert.Equal(t, int64(2), winners)
	assert.Equal(t, int64(300), payouts)
	assert.Equal(t, int64(1), losers)

	for _, tc := range []struct {
		betID  int64
		status string
		payout int64
	}{
		{winBet1.ID, model.BetStatusWon, 200},
		{winBet2.ID, model.BetStatusWon, 100},
		{loseBet.ID, model.BetStatusLost, 0},
	} {
		bet, err := repo.GetByID(ctx, tc.betID)
		require.NoError(t, err)
		assert.Equal(t, tc.status, bet.Status)
		require.NotNil(t, bet.ActualPayout)
		assert.Equal(t, tc.payout, *bet.ActualPayout)
	}

	pending, err := repo.CountPendingByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, pending)

	// Settlement is a no-op on an already settled event
	inTx(t, pool, func(tx pgx.Tx) error {
		again, _, err := repo.SettleWinnersInTx(ctx, tx, event.ID, 0)
		require.NoError(t, err)
		assert.Zero(t, again)
		return nil
	})
}

func TestBetRepository_SpentAndWon(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d1 := createDeposit(t, pool, 1001, 100, 1)
	d2 := createDeposit(t, pool, 1001, 60, 2)
	placeBet(t, pool, 1001, event, 0, d1)
	placeBet(t, pool, 1001, event, 1, d2)

	spent, won, err := repo.SpentAndWon(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(160), spent)
	assert.Zero(t, won)

	inTx(t, pool, func(tx pgx.Tx) error {
		if _, _, err := repo.SettleWinnersInTx(ctx, tx, event.ID, 0); err != nil {
			return err
		}
		_, err := repo.SettleLosersInTx(ctx, tx, event.ID, 0)
		return err
	})

	spent, won, err = repo.SpentAndWon(ctx, 1001)
	require.NoError(t, err)
	// Spend covers won and lost bets alike; only won bets pay out
	assert.Equal(t, int64(160), spent)
	assert.Equal(t, int64(200), won)
}

func TestBetRepository_Stats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d1 := createDeposit(t, pool, 1001, 100, 1)
	d2 := createDeposit(t, pool, 2002, 50, 2)
	placeBet(t, pool, 1001, event, 0, d1)
	placeBet(t, pool, 2002, event, 1, d2)

	eventStats, err := repo.StatsByEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), eventStats.TotalBets)
	assert.Equal(t, int64(2), eventStats.UniqueUsers)
	assert.Equal(t, int64(150), eventStats.TotalVolume)
	require.Len(t, eventStats.Outcomes, 2)
	assert.Equal(t, int64(100), eventStats.Outcomes[0].TotalValue)

	inTx(t, pool, func(tx pgx.Tx) error {
		if _, _, err := repo.SettleWinnersInTx(ctx, tx, event.ID, 0); err != nil {
			return err
		}
		_, err := repo.SettleLosersInTx(ctx, tx, event.ID, 0)
		return err
	})

	userStats, err := repo.StatsByUser(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userStats.TotalBets)
	assert.Equal(t, int64(1), userStats.WonBets)
	assert.Equal(t, float64(100), userStats.WinRate)
	assert.Equal(t, int64(100), userStats.ProfitLoss) // 200 paid - 100 staked
}

func TestBetRepository_UserBetsJoinEvent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBetRepository(pool)
	ctx := context.Background()

	event := createEvent(t, pool)
	d := createDeposit(t, pool, 1001, 100, 1)
	placeBet(t, pool, 1001, event, 0, d)

	bets, err := repo.GetByUser(ctx, 1001, 50)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, "Team A vs Team B", bets[0].EventTitle)
	assert.Equal(t, model.EventStatusActive, bets[0].EventStatus)
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository_WithdrawalLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTransactionRepository(pool)
	ctx := context.Background()

	deposit := createDeposit(t, pool, 1001, 100, 1)

	inTx(t, pool, func(tx pgx.Tx) error {
		withdrawn, err := repo.HasCompletedWithdrawal(ctx, tx, deposit.ID)
		require.NoError(t, err)
		assert.False(t, withdrawn)

		txID, err := repo.CreateWithdrawalInTx(ctx, tx, deposit, 2002)
		require.NoError(t, err)
		return repo.SetStatusInTx(ctx, tx, txID, model.TxStatusCompleted)
	})

	inTx(t, pool, func(tx pgx.Tx) error {
		withdrawn, err := repo.HasCompletedWithdrawal(ctx, tx, deposit.ID)
		require.NoError(t, err)
		assert.True(t, withdrawn)
		return nil
	})

	history, err := repo.GetByUserAndType(ctx, 1001, model.TxTypeWithdrawal, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.TxStatusCompleted, history[0].Status)
	require.NotNil(t, history[0].RecipientUserID)
	assert.Equal(t, int64(2002), *history[0].RecipientUserID)
}

func TestTransactionRepository_DepositRecord(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTransactionRepository(pool)
	ctx := context.Background()

	deposit := createDeposit(t, pool, 1001, 100, 1)
	inTx(t, pool, func(tx pgx.Tx) error {
		return repo.CreateDepositInTx(ctx, tx, deposit)
	})

	history, err := repo.GetByUserAndType(ctx, 1001, model.TxTypeDeposit, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.TxStatusCompleted, history[0].Status)
	assert.Equal(t, int64(100), history[0].GiftValue)
}
