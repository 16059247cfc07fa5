package bot

import (
	"errors"

	"vyvoz/internal/admission"
	"vyvoz/internal/ledger"
	"vyvoz/internal/schedule"
	"vyvoz/internal/service"
	"vyvoz/internal/workflow"
)

const (
	msgRateLimited  = "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного."
	msgAdminOnly    = "⛔ Только для администратора."
	msgStatusSame   = "Статус уже установлен."
	msgStatusSaved  = "Статус обновлён."
	msgOrderMissing = "Заказ не найден."
	msgStaleButton  = "Кнопка устарела, воспользуйтесь последним сообщением."
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var invalid *schedule.InvalidDateError
	if errors.As(err, &invalid) {
		return "⚠️ Эта дата больше недоступна для записи. Начните новый заказ."
	}

	if errors.Is(err, admission.ErrSlotFull) || errors.Is(err, workflow.ErrFullyBooked) {
		return "⚠️ Свободных мест в выбранное время нет. Пожалуйста, выберите другое время."
	}

	if errors.Is(err, admission.ErrBusy) {
		return "⚠️ Сейчас много заявок на это время. Пожалуйста, повторите через минуту."
	}

	if errors.Is(err, admission.ErrPersistence) {
		return "⚠️ Не удалось сохранить заказ. Пожалуйста, попробуйте ещё раз."
	}

	if errors.Is(err, ledger.ErrOrderNotFound) {
		return msgOrderMissing
	}

	if errors.Is(err, service.ErrStatusNotForward) {
		return msgStatusSame
	}

	if errors.Is(err, service.ErrUnknownStatus) {
		return "Неизвестный статус."
	}

	// Default error message
	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже или обратитесь к администратору."
}
