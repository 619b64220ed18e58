package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_admin_bot/internal/apiclient"
	"tg_admin_bot/internal/logging"
)

const voucherCallbackPrefix = "gen_"

// voucherService is the slice of the voucher façade the handlers depend on.
type voucherService interface {
	Generate(ctx context.Context, chatID int64, amountInput string) apiclient.Result
}

// userService is the slice of the user façade the handlers depend on.
type userService interface {
	GetMe(ctx context.Context, chatID int64) apiclient.Result
	ListUsers(ctx context.Context, chatID int64) apiclient.Result
	GetUser(ctx context.Context, chatID int64, username string) apiclient.Result
	Recharge(ctx context.Context, chatID int64, username, amountInput string) apiclient.Result
	Adjust(ctx context.Context, chatID int64, username, amountInput string) apiclient.Result
}

// sender is the slice of the bot API used for outgoing replies. *bot.Bot
// satisfies it; tests substitute a stub via the Handlers.sender field.
type sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Handlers maps incoming commands and callback queries to service calls and
// renders the results as chat replies. Handlers are stateless; every
// invocation is an independent request/response transform.
type Handlers struct {
	vouchers voucherService
	users    userService
	logger   *logrus.Entry

	// sender overrides the live bot for outgoing calls; nil in production.
	sender sender
}

// NewHandlers constructs the command handlers on top of the two service façades.
func NewHandlers(vouchers voucherService, users userService, logger *logrus.Entry) *Handlers {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handlers{
		vouchers: vouchers,
		users:    users,
		logger:   logger,
	}
}

// Start greets the admin with the command menu and voucher shortcut buttons,
// or explains why access is restricted.
func (h *Handlers) Start(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	res := h.users.GetMe(ctx, chatID)

	switch res.Status {
	case http.StatusOK:
		name := res.StringField("name")
		if name == "" {
			name = "Admin"
		}

		text := fmt.Sprintf("✅ <b>Welcome %s!</b>\n\n", name) +
			"Here are your available commands:\n\n" +
			"ℹ️ <b>General:</b>\n" +
			"/myid – Show your Telegram chat ID\n\n" +
			"📘 <b>User Commands:</b>\n" +
			"/users – List all users\n" +
			"/user &lt;username&gt; – Show user info\n\n" +
			"💰 <b>Voucher & Balance:</b>\n" +
			"/generate &lt;amount&gt; – Generate a voucher\n" +
			"/recharge &lt;username&gt; &lt;amount&gt; – Add credit to a user\n" +
			"/adjust &lt;username&gt; &lt;new_balance&gt; – Set user balance manually\n"

		h.send(ctx, b, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        text,
			ParseMode:   models.ParseModeHTML,
			ReplyMarkup: voucherKeyboard(),
		})
	case http.StatusForbidden:
		h.reply(ctx, b, chatID,
			"❌ You are not an authorized admin.\n\n"+
				"You can still use the following command:\n"+
				"/myid – Show your Telegram chat ID")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s\n\nYou can still use /myid to get your chat ID.", res.Detail()))
	}
}

// MyID echoes the chat ID back; works without any backend access.
func (h *Handlers) MyID(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}

	h.reply(ctx, b, msg.Chat.ID, fmt.Sprintf("Your Telegram chat ID is: %d", msg.Chat.ID))
}

// Generate handles /generate <amount>.
func (h *Handlers) Generate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		h.reply(ctx, b, chatID, "Usage: /generate <amount>")
		return
	}

	res := h.vouchers.Generate(ctx, chatID, args[0])

	switch res.Status {
	case http.StatusOK:
		h.reply(ctx, b, chatID, fmt.Sprintf("✅ Voucher generated: %s", res.StringField("code")))
	case http.StatusBadRequest:
		h.reply(ctx, b, chatID, "❌ Amount must be a positive number")
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to generate vouchers")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// VoucherButton handles the gen_<amount> inline keyboard shortcuts, re-entering
// the same voucher generation path as /generate.
func (h *Handlers) VoucherButton(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	// Best-effort ack; a failed ack must not block the reply.
	if _, err := h.senderOr(b).AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		h.logger.WithField("event", "callback_ack_error").WithError(err).Warn("failed to answer callback query")
	}

	chatID := messageChatID(query.Message)
	if chatID == 0 {
		// No message context to reply into.
		return
	}

	amount, ok := callbackAmount(query.Data)
	if !ok {
		h.reply(ctx, b, chatID, "❌ Invalid button data")
		return
	}

	res := h.vouchers.Generate(ctx, chatID, amount)

	switch res.Status {
	case http.StatusOK:
		h.reply(ctx, b, chatID, fmt.Sprintf("✅ Voucher generated: %s", res.StringField("code")))
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to generate vouchers")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// ListUsers handles /users.
func (h *Handlers) ListUsers(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	res := h.users.ListUsers(ctx, chatID)

	switch res.Status {
	case http.StatusOK:
		if len(res.Items) == 0 {
			h.reply(ctx, b, chatID, "No users found.")
			return
		}

		lines := []string{"📋 Users list:"}
		for _, u := range res.Items {
			lines = append(lines, fmt.Sprintf("%s %s (%s)",
				bodyString(u, "name"),
				bodyString(u, "surname"),
				bodyString(u, "username")))
		}
		h.reply(ctx, b, chatID, strings.Join(lines, "\n"))
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to view users.")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// GetUserInfo handles /user <username>.
func (h *Handlers) GetUserInfo(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	args := commandArgs(msg.Text)
	if len(args) != 1 {
		h.reply(ctx, b, chatID, "Usage: /user <username>")
		return
	}

	res := h.users.GetUser(ctx, chatID, args[0])

	switch res.Status {
	case http.StatusOK:
		h.reply(ctx, b, chatID, fmt.Sprintf("👤 User Info\nName: %s %s\nUsername: %s\nBalance: %.2f€",
			res.StringField("name"),
			res.StringField("surname"),
			res.StringField("username"),
			res.FloatField("balance")))
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to view users.")
	case http.StatusNotFound:
		h.reply(ctx, b, chatID, "⚠️ User not found.")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// Recharge handles /recharge <username> <amount>.
func (h *Handlers) Recharge(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	args := commandArgs(msg.Text)
	if len(args) != 2 {
		h.reply(ctx, b, chatID, "Usage: /recharge <username> <amount>")
		return
	}

	username := args[0]
	res := h.users.Recharge(ctx, chatID, username, args[1])

	switch res.Status {
	case http.StatusOK:
		amount, _ := parseFloatArg(args[1])
		h.reply(ctx, b, chatID, fmt.Sprintf("💰 Successfully recharged %s with %.2f€", username, amount))
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to recharge users.")
	case http.StatusNotFound:
		h.reply(ctx, b, chatID, "⚠️ User not found.")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// Adjust handles /adjust <username> <new_balance>.
func (h *Handlers) Adjust(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	args := commandArgs(msg.Text)
	if len(args) != 2 {
		h.reply(ctx, b, chatID, "Usage: /adjust <username> <new_balance>")
		return
	}

	username := args[0]
	res := h.users.Adjust(ctx, chatID, username, args[1])

	switch res.Status {
	case http.StatusOK:
		name := res.StringField("name")
		if name == "" {
			name = username
		}
		h.reply(ctx, b, chatID, fmt.Sprintf("🧾 Adjusted %s's balance to %.2f€", name, res.FloatField("balance")))
	case http.StatusForbidden:
		h.reply(ctx, b, chatID, "❌ You are not authorized to adjust balances.")
	case http.StatusNotFound:
		h.reply(ctx, b, chatID, "⚠️ User not found.")
	default:
		h.reply(ctx, b, chatID, fmt.Sprintf("⚠️ Error: %s", res.Detail()))
	}
}

// reply sends a plain-text reply to the chat, logging send failures.
func (h *Handlers) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	h.send(ctx, b, &bot.SendMessageParams{ChatID: chatID, Text: text})
}

func (h *Handlers) send(ctx context.Context, b *bot.Bot, params *bot.SendMessageParams) {
	if _, err := h.senderOr(b).SendMessage(ctx, params); err != nil {
		h.logger.WithFields(logging.Fields{
			"event":   "telegram_send_error",
			"chat_id": params.ChatID,
		}).WithError(err).Error("failed to send reply")
	}
}

func (h *Handlers) senderOr(b *bot.Bot) sender {
	if h.sender != nil {
		return h.sender
	}
	return b
}

func voucherKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "Generate 1€ voucher", CallbackData: "gen_1"}},
			{{Text: "Generate 2€ voucher", CallbackData: "gen_2"}},
			{{Text: "Generate 5€ voucher", CallbackData: "gen_5"}},
			{{Text: "Generate 10€ voucher", CallbackData: "gen_10"}},
		},
	}
}

// commandArgs splits a command message into its arguments, dropping the
// command token itself (with any @botname suffix).
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	return fields[1:]
}

// callbackAmount extracts the amount string from gen_<amount> callback data.
func callbackAmount(data string) (string, bool) {
	parts := strings.SplitN(data, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", false
	}

	if _, ok := parseFloatArg(parts[1]); !ok {
		return "", false
	}

	return parts[1], true
}

func bodyString(body apiclient.Body, key string) string {
	value, _ := body[key].(string)
	return value
}

func parseFloatArg(input string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, false
	}

	return value, true
}
