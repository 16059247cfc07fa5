package domain

import (
	"context"
	"time"

	"vyvoz/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// LedgerStore журнал заказов: файловый или SQLite.
type LedgerStore interface {
	Append(ctx context.Context, order models.Order) error
	Orders(ctx context.Context, date string) ([]models.Order, error)
	Order(ctx context.Context, id string) (*models.Order, error)
	Occupancy(ctx context.Context, date string) (map[string]int, error)
}

type ConversationRepository interface {
	GetConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conv *models.Conversation) error
	DeleteConversation(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

type TelegramService interface {
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendPhoto(chatID int64, fileID, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	SendAlbum(chatID int64, fileIDs []string) error
	SendDocument(chatID int64, path, caption string) (tgbotapi.Message, error)
	EditReplyMarkup(chatID int64, messageID int, keyboard *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID string, text string) error
	SetWebhook(url string) error
	DeleteWebhook() error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// SheetsWriter зеркало журнала в Google Sheets.
type SheetsWriter interface {
	UpsertOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID string, status string) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, order *models.Order) error
}
