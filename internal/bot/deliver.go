package bot

import (
	"context"

	"vyvoz/internal/logging"
	"vyvoz/internal/workflow"
)

// deliver отправляет ответы диалога по порядку. Ошибка отправки одного
// сообщения не мешает остальным: заказ уже записан.
func (b *Bot) deliver(ctx context.Context, messages []workflow.Message) {
	l := logging.FromContext(ctx, b.logger)
	for _, msg := range messages {
		if msg.ChatID == 0 {
			l.Warn().Msg("Outbound message without chat, skipped")
			continue
		}
		keyboard := toKeyboard(msg.Buttons)

		if msg.PhotoID != "" {
			if _, err := b.tgService.SendPhoto(msg.ChatID, msg.PhotoID, msg.Text, keyboard); err != nil {
				l.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send photo")
			}
			if len(msg.Album) > 0 {
				if err := b.tgService.SendAlbum(msg.ChatID, msg.Album); err != nil {
					l.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send album")
				}
			}
			continue
		}

		var err error
		if keyboard != nil {
			_, err = b.tgService.SendWithInlineKeyboard(msg.ChatID, msg.Text, *keyboard)
		} else {
			_, err = b.tgService.SendMessage(msg.ChatID, msg.Text)
		}
		if err != nil {
			l.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
		}
	}
}
