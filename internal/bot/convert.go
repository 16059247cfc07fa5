package bot

import (
	"vyvoz/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// toEvent приводит апдейт Telegram к событию диалога.
// Неподдерживаемые апдейты (правки, вступления в чат и т.п.) отбрасываются.
func toEvent(update tgbotapi.Update) (workflow.Event, bool) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
			return workflow.Event{}, false
		}
		return workflow.NewButtonEvent(cb.From.ID, cb.Message.Chat.ID, cb.Message.MessageID, cb.Data)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return workflow.Event{}, false
	}

	ev := workflow.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = workflow.KindCommand
		ev.Text = msg.Command()
	case len(msg.Photo) > 0:
		ev.Kind = workflow.KindPhoto
		// последний размер самый крупный
		ev.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
		ev.Text = msg.Caption
	case msg.Text != "":
		ev.Kind = workflow.KindText
		ev.Text = msg.Text
	default:
		// стикеры, голосовые и документы: шаг диалога повторит подсказку
		ev.Kind = workflow.KindText
	}
	return ev, true
}

func toKeyboard(rows [][]workflow.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}
