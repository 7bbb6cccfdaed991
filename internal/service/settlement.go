package service

import (
	"context"
	"errors"
	"fmt"

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

// ErrEventAlreadySettled is returned when settling an event twice.
var ErrEventAlreadySettled = errors.New("event already settled")

// SettlementResult summarizes one event settlement.
type SettlementResult struct {
	EventID       int64  `json:"event_id"`
	ResultOutcome string `json:"result_outcome"`
	WinnerIndex   int    `json:"winner_index"`
	WinnersCount  int64  `json:"winners_count"`
	LosersCount   int64  `json:"losers_count"`
	TotalPayouts  int64  `json:"total_payouts"`
}

// SettlementService resolves finished events and pays out pending bets.
type SettlementService struct {
	pool      *db.Pool
	eventRepo *repository.EventRepository
	betRepo   *repository.BetRepository
	eventLock *lock.KeyedLock
	cache     *cache.EventCache
	publisher *stream.Publisher
	notifier  Notifier
}

// SetNotifier installs the winner notifier after construction.
func (s *SettlementService) SetNotifier(n Notifier) {
	s.notifier = n
}

// NewSettlementService creates a new SettlementService instance.
func NewSettlementService(
	pool *db.Pool,
	eventRepo *repository.EventRepository,
	betRepo *repository.BetRepository,
	eventLock *lock.KeyedLock,
	eventCache *cache.EventCache,
	publisher *stream.Publisher,
) *SettlementService {
	return &SettlementService{
		pool:      pool,
		eventRepo: eventRepo,
		betRepo:   betRepo,
		eventLock: eventLock,
		cache:     eventCache,
		publisher: publisher,
	}
}

// SettleEvent declares the winning outcome of an event and resolves every
// pending bet in the same transaction: winners are paid their potential
// payout, losers get zero. Settling an already finished event returns
// ErrEventAlreadySettled and changes nothing.
func (s *SettlementService) SettleEvent(ctx context.Context, eventID int64, winnerIndex int, resultOutcome string) (*SettlementResult, error) {
	s.eventLock.Lock(eventID)
	defer s.eventLock.Unlock(eventID)

	var result *SettlementResult
	err := db.WithTx(ctx, s.pool.Pool, func(tx pgx.Tx) error {
		event, err := s.eventRepo.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if event.Status == model.EventStatusFinished {
			return ErrEventAlreadySettled
		}
		if winnerIndex < 0 || winnerIndex >= len(event.Outcomes) {
			return ErrInvalidOutcome
		}
		if resultOutcome != "" && resultOutcome != event.Outcomes[winnerIndex] {
			return ErrInvalidOutcome
		}
		resultOutcome = event.Outcomes[winnerIndex]

		if err := s.eventRepo.FinishInTx(ctx, tx, eventID, winnerIndex, resultOutcome); err != nil {
			return err
		}

		winners, totalPayouts, err := s.betRepo.SettleWinnersInTx(ctx, tx, eventID, winnerIndex)
		if err != nil {
			return err
		}
		losers, err := s.betRepo.SettleLosersInTx(ctx, tx, eventID, winnerIndex)
		if err != nil {
			return err
		}

		result = &SettlementResult{
			EventID:       eventID,
			ResultOutcome: resultOutcome,
			WinnerIndex:   winnerIndex,
			WinnersCount:  winners,
			LosersCount:   losers,
			TotalPayouts:  totalPayouts,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.EventsSettled.Inc()
	metrics.PayoutsTotal.Add(float64(result.TotalPayouts))
	log.Info().
		Int64("event_id", eventID).
		Str("result", resultOutcome).
		Int64("winners", result.WinnersCount).
		Int64("losers", result.LosersCount).
		Int64("total_payouts", result.TotalPayouts).
		Msg("Event settled")

	if s.cache != nil {
		if err := s.cache.InvalidateActive(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate events cache")
		}
	}
	s.notifyWinners(ctx, eventID, resultOutcome)
	if s.publisher != nil {
		if err := s.publisher.PublishEventSettled(ctx, stream.EventSettled{
			EventID:       eventID,
			ResultOutcome: resultOutcome,
			WinnerIndex:   winnerIndex,
			WinnersCount:  result.WinnersCount,
			LosersCount:   result.LosersCount,
			TotalPayouts:  result.TotalPayouts,
		}); err != nil {
			log.Warn().Err(err).Int64("event_id", eventID).Msg("Failed to publish settlement event")
		}
	}

	return result, nil
}

// notifyWinners tells each winning bettor their payout. Runs after commit;
// failures are logged and never affect the settlement itself.
func (s *SettlementService) notifyWinners(ctx context.Context, eventID int64, resultOutcome string) {
	if s.notifier == nil {
		return
	}

	bets, err := s.betRepo.ListByEvent(ctx, eventID)
	if err != nil {
		log.Warn().Err(err).Int64("event_id", eventID).Msg("Failed to load bets for winner notification")
		return
	}

	for _, bet := range bets {
		if bet.Status != model.BetStatusWon || bet.ActualPayout == nil {
			continue
		}
		text := fmt.Sprintf("🎉 You won! '%s' resolved and your bet paid %d ⭐", resultOutcome, *bet.ActualPayout)
		if err := s.notifier.Notify(ctx, bet.UserID, text); err != nil {
			log.Warn().Err(err).Int64("user_id", bet.UserID).Msg("Winner notification not delivered")
		}
	}
}
