// Package telegram hosts the Telegram client, routing, and command handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_admin_bot/internal/config"
	"tg_admin_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	// Menu registered with Telegram at startup.
	botCommands = []models.BotCommand{
		{Command: "start", Description: "Start the bot and check your access"},
		{Command: "myid", Description: "Show your Telegram chat ID"},
		{Command: "generate", Description: "Generate a voucher (admins only)"},
		{Command: "users", Description: "List all users (admins only)"},
		{Command: "user", Description: "Get user info by username"},
		{Command: "recharge", Description: "Recharge a user's balance"},
		{Command: "adjust", Description: "Adjust a user's balance"},
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	bot    botRunner
	logger *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling, registers every
// command and the voucher callback handler (each behind the dispatch safety
// wrapper), and installs the polling error handler.
func NewClient(cfg config.Config, handlers *Handlers, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if handlers == nil {
		return nil, errors.New("handlers are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	options := []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(defaultHandler(logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
	}
	options = append(options, handlerOptions(handlers)...)

	tgBot, err := createBot(cfg.TelegramToken, options...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	return &Client{
		bot:    tgBot,
		logger: logger,
	}, nil
}

// handlerOptions wires every command and the callback handler, each wrapped by
// the safety middleware.
func handlerOptions(h *Handlers) []bot.Option {
	commands := []struct {
		pattern string
		fn      bot.HandlerFunc
	}{
		{"/start", h.Start},
		{"/myid", h.MyID},
		{"/generate", h.Generate},
		{"/users", h.ListUsers},
		{"/user", h.GetUserInfo},
		{"/recharge", h.Recharge},
		{"/adjust", h.Adjust},
	}

	options := make([]bot.Option, 0, len(commands)+1)
	for _, cmd := range commands {
		name := strings.TrimPrefix(cmd.pattern, "/")
		options = append(options, bot.WithMessageTextHandler(cmd.pattern, bot.MatchTypePrefix, h.safe(name, cmd.fn)))
	}

	options = append(options, bot.WithCallbackQueryDataHandler(voucherCallbackPrefix, bot.MatchTypePrefix, h.safe("voucher_button", h.VoucherButton)))

	return options
}

// Start registers the command menu and begins receiving updates via long
// polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: botCommands}); err != nil {
		c.logger.WithField("event", "telegram_commands_error").WithError(err).Error("failed to register bot commands")
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func defaultHandler(logger *logrus.Entry) bot.HandlerFunc {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}

		meta := extractUpdateMeta(update)

		fields := logging.Fields{
			"event":       "telegram_update",
			"update_type": meta.updateType,
		}

		if meta.text != "" {
			fields["text"] = meta.text
		}
		if meta.userID != 0 {
			fields["user_id"] = meta.userID
		}
		if meta.chatID != 0 {
			fields["chat_id"] = meta.chatID
		}

		logger.WithFields(fields).Info("telegram update received")
	}
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     update.Message.Chat.ID,
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     update.CallbackQuery.From.ID,
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       strings.TrimSpace(update.CallbackQuery.Data),
			updateType: "callback_query",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

// errorHandler logs polling-level faults. Timeouts get their own event so
// transient network stalls are distinguishable from real delivery failures.
func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		if isTimeout(err) {
			logger.WithField("event", "telegram_timeout").WithError(err).Warn("telegram request timed out, will retry")
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
