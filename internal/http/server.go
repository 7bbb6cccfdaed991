// Package http exposes the platform's REST API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/config"
	"gift-betting-backend/internal/service"
)

// Server serves the betting and deposits REST API.
type Server struct {
	srv *http.Server

	betting    *service.BettingService
	settlement *service.SettlementService
	deposits   *service.DepositService
	balance    *service.BalanceService
	withdrawal *service.WithdrawalService
}

// NewServer builds the router and wires every endpoint.
func NewServer(
	cfg *config.Config,
	betting *service.BettingService,
	settlement *service.SettlementService,
	deposits *service.DepositService,
	balance *service.BalanceService,
	withdrawal *service.WithdrawalService,
) *Server {
	s := &Server{
		betting:    betting,
		settlement: settlement,
		deposits:   deposits,
		balance:    balance,
		withdrawal: withdrawal,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.HTTP.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))
	router.Use(initDataAuth(cfg.Bot.Token, cfg.HTTP.InitDataTTL))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	bettingGroup := router.Group("/api/betting")
	{
		bettingGroup.GET("/events", s.listEvents)
		bettingGroup.GET("/events/:id", s.getEvent)
		bettingGroup.POST("/bet", s.placeBet)
		bettingGroup.GET("/bets/:user_id", s.userBets)
		bettingGroup.GET("/stats/:user_id", s.userStats)

		admin := bettingGroup.Group("", requireAdmin(cfg.IsAdmin))
		admin.POST("/events", s.createEvent)
		admin.POST("/events/:id/settle", s.settleEvent)
	}

	depositGroup := router.Group("/api/deposits")
	{
		depositGroup.GET("/:user_id", s.userDeposits)
		depositGroup.GET("/:user_id/balance", s.userBalance)
		depositGroup.POST("/withdrawal/process", s.processWithdrawal)
		depositGroup.GET("/withdrawal/history/:user_id", s.withdrawalHistory)
		depositGroup.POST("/payment/create-invoice", s.createInvoice)
	}

	s.srv = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	log.Info().Str("addr", s.srv.Addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request handled")
	}
}
