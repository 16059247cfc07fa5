package bot

import (
	"context"
	"errors"

	"vyvoz/internal/logging"
	"vyvoz/internal/service"
	"vyvoz/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleStatusCallback обрабатывает кнопку st:<order_id>:<status> под уведомлением о заказе.
func (b *Bot) handleStatusCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	l := logging.FromContext(ctx, b.logger)
	orderID, status, _ := workflow.ParseStatusButton(cb.Data)

	admin := b.config.Telegram.AdminChatID
	if cb.Message == nil || cb.Message.Chat == nil || admin == 0 || cb.Message.Chat.ID != admin {
		l.Warn().Int64("user_id", cb.From.ID).Str("order_id", orderID).Msg("Status change outside admin chat")
		b.answerCallback(cb.ID, msgAdminOnly)
		return
	}
	if b.orders == nil {
		b.answerCallback(cb.ID, "")
		return
	}

	order, err := b.orders.ChangeStatus(ctx, orderID, status, cb.From.ID)
	if errors.Is(err, service.ErrStatusNotForward) {
		// повторное нажатие или устаревшая клавиатура
		b.answerCallback(cb.ID, msgStatusSame)
		return
	}
	if err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		l.Error().Err(err).Str("order_id", orderID).Str("status", status).Msg("Failed to change order status")
		b.answerCallback(cb.ID, b.getErrorMessage(err))
		return
	}

	b.answerCallback(cb.ID, msgStatusSaved)
	if b.metrics != nil {
		b.metrics.StatusChanges.WithLabelValues(order.Status).Inc()
	}
	l.Info().Str("order_id", order.ID).Str("status", order.Status).Int64("admin_id", cb.From.ID).Msg("Order status changed")

	keyboard := toKeyboard(workflow.StatusKeyboard(order.ID, order.Status))
	if err := b.tgService.EditReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID, keyboard); err != nil {
		l.Warn().Err(err).Str("order_id", order.ID).Msg("Failed to update status keyboard")
	}

	b.sendMessage(order.UserID, workflow.StatusNotice(order))
}
