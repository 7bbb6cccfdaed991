package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/metrics"
	"gift-betting-backend/internal/model"
	"gift-betting-backend/internal/service"
)

// respondError maps service errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func respondError(c *gin.Context, endpoint string, err error) {
	metrics.RequestErrors.WithLabelValues(endpoint).Inc()

	var status int
	switch {
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrDepositNotFound),
		errors.Is(err, service.ErrCollateralNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEventClosed),
		errors.Is(err, service.ErrBettingWindowExpired),
		errors.Is(err, service.ErrCollateralCommitted),
		errors.Is(err, service.ErrCollateralInUse),
		errors.Is(err, service.ErrAlreadyWithdrawn),
		errors.Is(err, service.ErrEventAlreadySettled),
		errors.Is(err, service.ErrDuplicateDeposit):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidOutcome),
		errors.Is(err, service.ErrEmptyCollateral),
		errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, service.ErrInvalidDeposit),
		errors.Is(err, service.ErrEmptyInvoice):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotDepositOwner):
		status = http.StatusForbidden
	default:
		log.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return v, true
}

func (s *Server) listEvents(c *gin.Context) {
	events, err := s.betting.GetActiveEvents(c.Request.Context())
	if err != nil {
		respondError(c, "list_events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) getEvent(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	event, err := s.betting.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_event", err)
		return
	}
	stats, err := s.betting.GetEventStats(c.Request.Context(), id)
	if err != nil {
		respondError(c, "get_event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event, "stats": stats})
}

type placeBetRequest struct {
	UserID       int64   `json:"user_id"`
	EventID      int64   `json:"event_id" binding:"required"`
	Outcome      string  `json:"outcome"`
	OutcomeIndex int     `json:"outcome_index"`
	GiftIDs      []int64 `json:"gift_ids" binding:"required"`
}

func (s *Server) placeBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Authenticated identity wins over whatever the body claims.
	if id, ok := authUserID(c); ok {
		req.UserID = id
	}
	if req.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
		return
	}

	result, err := s.betting.PlaceBet(c.Request.Context(), req.UserID, req.EventID, req.Outcome, req.OutcomeIndex, req.GiftIDs)
	if err != nil {
		respondError(c, "place_bet", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bet": result})
}

type createEventRequest struct {
	Title        string              `json:"title" binding:"required"`
	Description  string              `json:"description"`
	Outcomes     []string            `json:"outcomes" binding:"required"`
	Coefficients []model.Coefficient `json:"coefficients" binding:"required"`
	EndTime      string              `json:"end_time" binding:"required"`
}

func (s *Server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_time, expected RFC3339"})
		return
	}

	event, err := s.betting.CreateEvent(c.Request.Context(), req.Title, req.Description, req.Outcomes, req.Coefficients, endTime)
	if err != nil {
		respondError(c, "create_event", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": event})
}

type settleEventRequest struct {
	WinnerIndex   int    `json:"winner_index"`
	ResultOutcome string `json:"result_outcome"`
}

func (s *Server) settleEvent(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	var req settleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := s.settlement.SettleEvent(c.Request.Context(), id, req.WinnerIndex, req.ResultOutcome)
	if err != nil {
		respondError(c, "settle_event", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "settlement": result})
}

func (s *Server) userBets(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	bets, err := s.betting.GetUserBets(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, "user_bets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

func (s *Server) userStats(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	stats, err := s.betting.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "user_stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) userDeposits(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	deposits, err := s.deposits.GetUserDeposits(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "user_deposits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

func (s *Server) userBalance(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	balance, err := s.balance.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "user_balance", err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

type processWithdrawalRequest struct {
	DepositID       int64 `json:"deposit_id" binding:"required"`
	UserID          int64 `json:"user_id"`
	RecipientUserID int64 `json:"recipient_user_id" binding:"required"`
}

func (s *Server) processWithdrawal(c *gin.Context) {
	var req processWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if id, ok := authUserID(c); ok {
		req.UserID = id
	}
	if req.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
		return
	}

	deposit, err := s.withdrawal.ProcessWithdrawal(c.Request.Context(), req.DepositID, req.UserID, req.RecipientUserID)
	if err != nil {
		respondError(c, "process_withdrawal", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "gift": deposit.Title})
}

func (s *Server) withdrawalHistory(c *gin.Context) {
	userID, ok := pathInt64(c, "user_id")
	if !ok {
		return
	}

	history, err := s.withdrawal.GetHistory(c.Request.Context(), userID, 100)
	if err != nil {
		respondError(c, "withdrawal_history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": history})
}

type createInvoiceRequest struct {
	UserID  int64   `json:"user_id"`
	GiftIDs []int64 `json:"gift_ids" binding:"required"`
}

func (s *Server) createInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if id, ok := authUserID(c); ok {
		req.UserID = id
	}
	if req.UserID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
		return
	}

	invoice, err := s.withdrawal.CreateInvoice(c.Request.Context(), req.UserID, req.GiftIDs)
	if err != nil {
		respondError(c, "create_invoice", err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
