// Package main is the entry point for the gift betting backend.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/bot"
	"gift-betting-backend/internal/cache"
	"gift-betting-backend/internal/config"
	apihttp "gift-betting-backend/internal/http"
	"gift-betting-backend/internal/metrics"
	"gift-betting-backend/internal/pkg/db"
	"gift-betting-backend/internal/pkg/lock"
	"gift-betting-backend/internal/pkg/telegram"
	"gift-betting-backend/internal/repository"
	"gift-betting-backend/internal/service"
	"gift-betting-backend/internal/stream"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	depositRepo := repository.NewDepositRepository(dbPool.Pool)
	eventRepo := repository.NewEventRepository(dbPool.Pool)
	betRepo := repository.NewBetRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)

	// Optional events cache
	var eventCache *cache.EventCache
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		eventCache = cache.NewEventCache(redisClient, cfg.Redis.EventTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Events cache enabled")
	}

	// Optional stream publisher
	var publisher *stream.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher = stream.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		log.Info().Str("brokers", cfg.Kafka.Brokers).Msg("Stream publisher enabled")
	}

	// Per-event lock serializes placement and settlement in-process
	eventLock := lock.NewKeyedLock()

	// Initialize services
	balanceService := service.NewBalanceService(depositRepo, betRepo)
	bettingService := service.NewBettingService(dbPool, eventRepo, betRepo, depositRepo, txRepo, eventLock, eventCache, publisher)
	settlementService := service.NewSettlementService(dbPool, eventRepo, betRepo, eventLock, eventCache, publisher)

	paymentClient := telegram.NewClient(cfg.Bot.Token)

	// The bot doubles as the notifier, so build it before the services that
	// send notifications.
	depositService := service.NewDepositService(dbPool, depositRepo, txRepo, nil)
	withdrawalService := service.NewWithdrawalService(
		dbPool, depositRepo, betRepo, txRepo, paymentClient, nil, cfg.Withdrawal.StarsPerGift)

	deps := &bot.Dependencies{
		Config:         cfg,
		DepositService: depositService,
		BettingService: bettingService,
		BalanceService: balanceService,
	}
	telegramBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	depositService.SetNotifier(telegramBot)
	withdrawalService.SetNotifier(telegramBot)
	settlementService.SetNotifier(telegramBot)

	// HTTP API
	server := apihttp.NewServer(cfg, bettingService, settlementService, depositService, balanceService, withdrawalService)

	// Metrics and health endpoint
	metricsSrv := metrics.StartServer(cfg.Metrics.Port, func(ctx context.Context) error {
		return dbPool.Ping(ctx)
	})

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	go func() {
		if err := server.Run(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			sigChan <- syscall.SIGTERM
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server shutdown failed")
	}
	telegramBot.Stop()
	log.Info().Msg("Server stopped gracefully")
}
