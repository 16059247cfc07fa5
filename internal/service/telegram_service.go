package service

import (
	"fmt"

	"vyvoz/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramService struct {
	bot domain.TelegramSender
}

func NewTelegramService(bot domain.TelegramSender) *TelegramService {
	return &TelegramService{
		bot: bot,
	}
}

func (s *TelegramService) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return s.bot.Send(msg)
}

func (s *TelegramService) SendWithInlineKeyboard(
	chatID int64,
	text string,
	keyboard tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return s.bot.Send(msg)
}

func (s *TelegramService) SendPhoto(
	chatID int64,
	fileID, caption string,
	keyboard *tgbotapi.InlineKeyboardMarkup,
) (tgbotapi.Message, error) {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	if keyboard != nil {
		photo.ReplyMarkup = *keyboard
	}
	return s.bot.Send(photo)
}

// SendAlbum отправляет фото одним альбомом. Telegram принимает в альбоме
// от 2 до 10 файлов, поэтому одиночное фото уходит обычным сообщением.
func (s *TelegramService) SendAlbum(chatID int64, fileIDs []string) error {
	switch len(fileIDs) {
	case 0:
		return nil
	case 1:
		_, err := s.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileIDs[0])))
		return err
	}

	for start := 0; start < len(fileIDs); start += 10 {
		end := start + 10
		if end > len(fileIDs) {
			end = len(fileIDs)
		}
		media := make([]interface{}, 0, end-start)
		for _, id := range fileIDs[start:end] {
			media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(id)))
		}
		if len(media) == 1 {
			if _, err := s.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileIDs[start]))); err != nil {
				return err
			}
			continue
		}
		if _, err := s.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
			return fmt.Errorf("send media group: %w", err)
		}
	}
	return nil
}

func (s *TelegramService) SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	return s.bot.Send(doc)
}

func (s *TelegramService) EditReplyMarkup(chatID int64, messageID int, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if keyboard != nil {
		markup = *keyboard
	}
	_, err := s.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup))
	return err
}

func (s *TelegramService) AnswerCallback(callbackID, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := s.bot.Request(callback)
	return err
}

func (s *TelegramService) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := s.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (s *TelegramService) DeleteWebhook() error {
	_, err := s.bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

func (s *TelegramService) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return s.bot.GetUpdatesChan(config)
}

func (s *TelegramService) GetSelf() tgbotapi.User {
	return s.bot.GetSelf()
}

func (s *TelegramService) StopReceivingUpdates() {
	s.bot.StopReceivingUpdates()
}
