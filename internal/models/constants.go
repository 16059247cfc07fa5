package models

// Статусы заказа. Смена статуса пишется в журнал новой записью.
const (
	StatusPendingConfirmation = "pending_confirmation"
	StatusManualReview        = "manual_review"
	StatusPaymentConfirmed    = "payment_confirmed"
	StatusPickedUp            = "picked_up"
	StatusDisposed            = "disposed"
	StatusCancelled           = "cancelled"
)

// Типы задач зеркалирования заказа в Google Sheets.
const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)

// Способ передачи мусора курьеру.
const (
	TransferDoor = "door"
	TransferUp   = "up"
)

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DateLayout формат даты в журнале и на кнопках
	DateLayout = "02.01.2006"

	// SlotLayout формат временного интервала
	SlotLayout = "15:04"

	// DefaultTimezone часовой пояс расписания
	DefaultTimezone = "Europe/Moscow"

	// DefaultFirstHour и DefaultLastHour границы дневной сетки (включительно)
	DefaultFirstHour = 8
	DefaultLastHour  = 20

	// DefaultSlotCapacity максимум заказов на один интервал
	DefaultSlotCapacity = 15

	// DefaultAddressMinLength минимальная длина адреса в символах
	DefaultAddressMinLength = 10

	// DefaultBulkMinPhotos сколько фото нужно для крупного мусора
	DefaultBulkMinPhotos = 2

	// DefaultRedisTTL время жизни диалога в Redis, 0 - без ограничения
	DefaultRedisTTL = 0

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// DefaultDispatchWorkers число шардов обработки апдейтов
	DefaultDispatchWorkers = 8

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах

	// SheetsCacheTTL время жизни кэша строк Google Sheets
	SheetsCacheTTL = 60 * 60 // 1 час в секундах
)

var transferLabels = map[string]string{
	TransferDoor: "🚪 Выставлен за дверь",
	TransferUp:   "🧍 Курьер поднимется",
}

// TransferLabel возвращает подпись способа передачи для пользователя.
func TransferLabel(transfer string) string {
	if label, ok := transferLabels[transfer]; ok {
		return label
	}
	return transfer
}

// IsKnownTransfer проверяет, что способ передачи из списка поддерживаемых.
func IsKnownTransfer(transfer string) bool {
	_, ok := transferLabels[transfer]
	return ok
}
