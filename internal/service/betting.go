package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/cache"
	"gift-betting-backend/internal/metrics"
	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/pkg/db"
	"gift-betting-backend/internal/pkg/lock"
	"gift-betting-backend/internal/repository"
	"gift-betting-backend/internal/stream"
)

// Common errors for betting operations.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventClosed          = errors.New("event is not accepting bets")
	ErrBettingWindowExpired = errors.New("betting window has expired")
	ErrInvalidOutcome       = errors.New("invalid outcome")
	ErrEmptyCollateral      = errors.New("no gifts selected")
	ErrCollateralNotFound   = errors.New("one or more gifts not found or not owned")
	ErrCollateralCommitted  = errors.New("one or more gifts already back another bet")
	ErrInvalidEvent         = errors.New("invalid event definition")
)

// BetResult summarizes an accepted bet.
type BetResult struct {
	BetID           int64             `json:"bet_id"`
	EventID         int64             `json:"event_id"`
	Outcome         string            `json:"outcome"`
	TotalValue      int64             `json:"total_value"`
	Coefficient     model.Coefficient `json:"coefficient"`
	PotentialPayout int64             `json:"potential_payout"`
}

// BettingService handles event listing and bet placement.
type BettingService struct {
	pool        *db.Pool
	eventRepo   *repository.EventRepository
	betRepo     *repository.BetRepository
	depositRepo *repository.DepositRepository
	txRepo      *repository.TransactionRepository
	eventLock   *lock.KeyedLock
	cache       *cache.EventCache
	publisher   *stream.Publisher
}

// NewBettingService creates a new BettingService instance. cache and
// publisher may be nil when Redis or Kafka are not configured.
func NewBettingService(
	pool *db.Pool,
	eventRepo *repository.EventRepository,
	betRepo *repository.BetRepository,
	depositRepo *repository.DepositRepository,
	txRepo *repository.TransactionRepository,
	eventLock *lock.KeyedLock,
	eventCache *cache.EventCache,
	publisher *stream.Publisher,
) *BettingService {
	return &BettingService{
		pool:        pool,
		eventRepo:   eventRepo,
		betRepo:     betRepo,
		depositRepo: depositRepo,
		txRepo:      txRepo,
		eventLock:   eventLock,
		cache:       eventCache,
		publisher:   publisher,
	}
}

// PlaceBet places a bet on an event outcome, backed by the given deposits as
// collateral. All checks and writes happen in one transaction under the event
// row lock, so concurrent placements on the same gifts cannot double-spend.
func (s *BettingService) PlaceBet(ctx context.Context, userID, eventID int64, outcome string, outcomeIndex int, giftIDs []int64) (*BetResult, error) {
	if len(giftIDs) == 0 {
		return nil, ErrEmptyCollateral
	}

	s.eventLock.Lock(eventID)
	defer s.eventLock.Unlock(eventID)

	var result *BetResult
	err := db.WithTx(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		event, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if event.Status != model.EventStatusWaiting && event.Status != model.EventStatusActive {
			return ErrEventClosed
		}
		if !event.EndTime.After(time.Now()) {
			return ErrBettingWindowExpired
		}
		if outcomeIndex < 0 || outcomeIndex >= len(event.Outcomes) || outcomeIndex >= len(event.Coefficients) {
			return ErrInvalidOutcome
		}
		if outcome != "" && outcome != event.Outcomes[outcomeIndex] {
			return ErrInvalidOutcome
		}
		outcome = event.Outcomes[outcomeIndex]

		deposits, err := s.depositRepo.GetOwnedForUpdate(ctx, tx, giftIDs, userID)
		if err != nil {
			return err
		}
		if len(deposits) != len(giftIDs) {
			return ErrCollateralNotFound
		}

		withdrawn, err := s.txRepo.HasWithdrawnDeposit(ctx, tx, giftIDs)
		if err != nil {
			return err
		}
		if withdrawn {
			return ErrAlreadyWithdrawn
		}

		committed, err := s.betRepo.HasCollateralCommitted(ctx, tx, userID, giftIDs)
		if err != nil {
			return err
		}
		if committed {
			return ErrCollateralCommitted
		}

		var totalValue int64
		for _, d := range deposits {
			totalValue += d.Value
		}
		coefficient := event.Coefficients[outcomeIndex]
		potential := coefficient.Payout(totalValue)

		bet, err := s.betRepo.CreateInTx(ctx, tx, &model.Bet{
			UserID:          userID,
			EventID:         eventID,
			Outcome:         outcome,
			OutcomeIndex:    outcomeIndex,
			GiftIDs:         giftIDs,
			TotalValue:      totalValue,
			Coefficient:     coefficient,
			PotentialPayout: potential,
		})
		if err != nil {
			return err
		}

		if err := s.eventRepo.AddToBankInTx(ctx, tx, eventID, totalValue); err != nil {
			return err
		}

		result = &BetResult{
			BetID:           bet.ID,
			EventID:         eventID,
			Outcome:         outcome,
			TotalValue:      totalValue,
			Coefficient:     coefficient,
			PotentialPayout: potential,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BetsPlaced.Inc()
	log.Info().
		Int64("bet_id", result.BetID).
		Int64("user_id", userID).
		Int64("event_id", eventID).
		Str("outcome", outcome).
		Int64("total_value", result.TotalValue).
		Msg("Bet placed")

	s.invalidateEvents(ctx)
	if s.publisher != nil {
		if err := s.publisher.PublishBetPlaced(ctx, stream.BetPlaced{
			BetID:           result.BetID,
			EventID:         eventID,
			UserID:          userID,
			Outcome:         outcome,
			TotalValue:      result.TotalValue,
			PotentialPayout: result.PotentialPayout,
		}); err != nil {
			log.Warn().Err(err).Int64("bet_id", result.BetID).Msg("Failed to publish bet event")
		}
	}

	return result, nil
}

// CreateEvent registers a new betting event in waiting status.
func (s *BettingService) CreateEvent(ctx context.Context, title, description string, outcomes []string, coefficients []model.Coefficient, endTime time.Time) (*model.Event, error) {
	if title == "" || len(outcomes) < 2 || len(outcomes) != len(coefficients) {
		return nil, ErrInvalidEvent
	}
	for _, c := range coefficients {
		if c < 1000 {
			return nil, ErrInvalidEvent
		}
	}
	if !endTime.After(time.Now()) {
		return nil, ErrInvalidEvent
	}

	event, err := s.eventRepo.Create(ctx, title, description, outcomes, coefficients, endTime)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("event_id", event.ID).Str("title", title).Msg("Event created")
	s.invalidateEvents(ctx)
	return event, nil
}

// GetActiveEvents lists events still open for betting, soonest ending first.
// Served from cache when Redis is configured.
func (s *BettingService) GetActiveEvents(ctx context.Context) ([]*model.Event, error) {
	if s.cache != nil {
		if events, ok := s.cache.GetActive(ctx); ok {
			return events, nil
		}
	}

	events, err := s.eventRepo.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetActive(ctx, events)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *BettingService) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// GetEventStats aggregates per-outcome bet counts and staked value.
func (s *BettingService) GetEventStats(ctx context.Context, eventID int64) (*model.EventStats, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.betRepo.StatsByEvent(ctx, eventID)
}

// GetUserBets lists a user's recent bets with event context.
func (s *BettingService) GetUserBets(ctx context.Context, userID int64, limit int) ([]*model.UserBet, error) {
	return s.betRepo.GetByUser(ctx, userID, limit)
}

// GetUserStats aggregates a user's betting record.
func (s *BettingService) GetUserStats(ctx context.Context, userID int64) (*model.UserBetStats, error) {
	return s.betRepo.StatsByUser(ctx, userID)
}

func (s *BettingService) invalidateEvents(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateActive(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate events cache")
	}
}
