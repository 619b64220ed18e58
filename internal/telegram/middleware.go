package telegram

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_admin_bot/internal/logging"
)

const (
	handlerFaultNotice = "⚠️ An unexpected error occurred. The team has been notified."
	timeoutNotice      = "⚠️ Request timed out, please try again."
)

// safe wraps a handler with the dispatch safety middleware: it logs the
// invocation, catches any panic escaping the handler, logs it with the chat
// context and raw command text, and best-effort notifies the user. No fault
// ever propagates past this wrapper into the dispatch loop.
func (h *Handlers) safe(name string, fn bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		meta := invocationMeta(update)

		h.logger.WithFields(logging.Fields{
			"event":   "handler_invoke",
			"handler": name,
			"chat_id": meta.chatID,
		}).Info("handling command")

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			h.logger.WithFields(logging.Fields{
				"event":   "handler_panic",
				"handler": name,
				"chat_id": meta.chatID,
				"cmd":     meta.text,
				"error":   fmt.Sprint(rec),
				"stack":   string(debug.Stack()),
			}).Error("unhandled fault in handler")

			if meta.chatID == 0 {
				return
			}

			notice := handlerFaultNotice
			if err, ok := rec.(error); ok && isTimeout(err) {
				notice = timeoutNotice
			}

			// Best-effort notification; a send failure is swallowed.
			if _, err := h.senderOr(b).SendMessage(ctx, &bot.SendMessageParams{
				ChatID: meta.chatID,
				Text:   notice,
			}); err != nil {
				h.logger.WithFields(logging.Fields{
					"event":   "handler_notify_error",
					"handler": name,
					"chat_id": meta.chatID,
				}).WithError(err).Error("failed to notify user about handler fault")
			}
		}()

		fn(ctx, b, update)
	}
}

type invocation struct {
	chatID int64
	text   string
}

func invocationMeta(update *models.Update) invocation {
	if update == nil {
		return invocation{}
	}

	meta := extractUpdateMeta(update)
	return invocation{chatID: meta.chatID, text: meta.text}
}
