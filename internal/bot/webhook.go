package bot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxWebhookBody = 1 << 20

// WebhookHandler принимает апдейт от Telegram и ставит его в очередь.
// Путь с секретом и метод проверяет HTTP сервер.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&update); err != nil {
			b.logger.Warn().Err(err).Msg("Invalid webhook payload")
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), submitTimeoutWeb)
		defer cancel()
		if err := b.dispatcher.submit(ctx, update); err != nil {
			// Telegram повторит доставку, дубликаты отсечёт диалог
			b.logger.Warn().Err(err).Int("update_id", update.UpdateID).Msg("Webhook update rejected")
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
