// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"gift-betting-backend/internal/config"
	"gift-betting-backend/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot      *tele.Bot
	cfg      *config.Config
	deposits *service.DepositService
	betting  *service.BettingService
	balance  *service.BalanceService
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config         *config.Config
	DepositService *service.DepositService
	BettingService *service.BettingService
	BalanceService *service.BalanceService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:      teleBot,
		cfg:      deps.Config,
		deposits: deps.DepositService,
		betting:  deps.BettingService,
		balance:  deps.BalanceService,
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/balance", b.handleBalance)
	b.bot.Handle("/gifts", b.handleGifts)
	b.bot.Handle("/events", b.handleEvents)
	b.bot.Handle("/mybets", b.handleMyBets)

	// The gift relay account forwards incoming gift transfers as /deposit
	// commands. Admin-only so random users cannot mint deposits.
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/deposit", b.handleDeposit)
}

// Start begins polling for updates. Blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Bot started")
	b.bot.Start()
}

// Stop gracefully stops the bot.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot")
	b.bot.Stop()
}

// Notify implements service.Notifier. Failures are reported, not fatal.
func (b *Bot) Notify(_ context.Context, userID int64, text string) error {
	_, err := b.bot.Send(&tele.User{ID: userID}, text)
	if err != nil {
		return fmt.Errorf("failed to send notification to %d: %w", userID, err)
	}
	return nil
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Reply("🎁 Welcome to the gift betting platform!\n\n" +
		"Send a collectible gift to this account to deposit it, " +
		"then open the app to bet on events.\n\n" +
		"/balance - your star balance\n" +
		"/gifts - your deposited gifts\n" +
		"/events - open events\n" +
		"/mybets - your recent bets")
}

func (b *Bot) handleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	bal, err := b.balance.GetBalance(context.Background(), sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to get balance")
		return c.Reply("❌ Failed to get balance, please try again later")
	}

	return c.Reply(fmt.Sprintf(
		"💰 Your balance\n\nDeposited: %d ⭐\nSpent: %d ⭐\nWon: %d ⭐\nAvailable: %d ⭐",
		bal.Deposited, bal.Spent, bal.Won, bal.Available,
	))
}

func (b *Bot) handleGifts(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	deposits, err := b.deposits.GetUserDeposits(context.Background(), sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to list deposits")
		return c.Reply("❌ Failed to list gifts, please try again later")
	}
	if len(deposits) == 0 {
		return c.Reply("You have no deposited gifts yet. Send a gift to this account to deposit it.")
	}

	var sb strings.Builder
	sb.WriteString("🎁 Your gifts:\n\n")
	for _, d := range deposits {
		fmt.Fprintf(&sb, "#%d %s (%s) - %d ⭐\n", d.ID, d.Title, d.Slug, d.Value)
	}
	return c.Reply(sb.String())
}

func (b *Bot) handleEvents(c tele.Context) error {
	events, err := b.betting.GetActiveEvents(context.Background())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list events")
		return c.Reply("❌ Failed to list events, please try again later")
	}
	if len(events) == 0 {
		return c.Reply("No open events right now.")
	}

	var sb strings.Builder
	sb.WriteString("📊 Open events:\n\n")
	for _, e := range events {
		fmt.Fprintf(&sb, "#%d %s (bank: %d ⭐)\n", e.ID, e.Title, e.TotalBank)
		for i, outcome := range e.Outcomes {
			fmt.Fprintf(&sb, "  %d. %s x%s\n", i+1, outcome, e.Coefficients[i])
		}
		sb.WriteString("\n")
	}
	return c.Reply(sb.String())
}

func (b *Bot) handleMyBets(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	bets, err := b.betting.GetUserBets(context.Background(), sender.ID, 10)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to list bets")
		return c.Reply("❌ Failed to list bets, please try again later")
	}
	if len(bets) == 0 {
		return c.Reply("You have no bets yet.")
	}

	var sb strings.Builder
	sb.WriteString("🎲 Your bets:\n\n")
	for _, bet := range bets {
		fmt.Fprintf(&sb, "%s: %s, %d ⭐ at x%s [%s]\n",
			bet.EventTitle, bet.Outcome, bet.TotalValue, bet.Coefficient, bet.Status)
	}
	return c.Reply(sb.String())
}

// handleDeposit credits a gift relayed by the platform's gift account:
// /deposit <user_id> <message_id> <value> <slug> [title...]
func (b *Bot) handleDeposit(c tele.Context) error {
	args := c.Args()
	if len(args) < 4 {
		return c.Reply("Usage: /deposit <user_id> <message_id> <value> <slug> [title...]")
	}

	userID, err1 := strconv.ParseInt(args[0], 10, 64)
	messageID, err2 := strconv.ParseInt(args[1], 10, 64)
	value, err3 := strconv.ParseInt(args[2], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return c.Reply("❌ user_id, message_id and value must be integers")
	}

	slug := args[3]
	title := slug
	if len(args) > 4 {
		title = strings.Join(args[4:], " ")
	}

	gift := service.GiftInfo{Title: title, Slug: slug, Value: value}
	deposit, err := b.deposits.ProcessDeposit(context.Background(), gift, userID, messageID)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateDeposit) {
			return c.Reply("⚠️ Deposit already processed")
		}
		if errors.Is(err, service.ErrInvalidDeposit) {
			return c.Reply("❌ Invalid deposit data")
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to process deposit")
		return c.Reply("❌ Failed to process deposit")
	}

	return c.Reply(fmt.Sprintf("✅ Deposit #%d credited: %s (%d ⭐) for user %d",
		deposit.ID, deposit.Title, deposit.Value, userID))
}
