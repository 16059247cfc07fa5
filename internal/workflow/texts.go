package workflow

import (
	"fmt"
	"strings"
	"time"

	"vyvoz/internal/models"
)

const (
	textWelcome          = "👋 Здравствуйте! Я помогу вынести мусор.\nВыберите действие:"
	textChooseProduct    = "🗑 Выберите услугу:"
	textChooseTransfer   = "🚪 Как передать мусор курьеру?"
	textChooseDate       = "📅 Выберите дату:"
	textChooseTime       = "⏰ Выберите время на %s:"
	textAddress          = "📍 Укажите точный адрес (улица, дом, подъезд, этаж, код, квартира):"
	textPhoto            = "📷 Пожалуйста, отправьте фото мусора:"
	textPayment          = "💳 Стоимость: %d ₽\nПереведите оплату по номеру %s (%s) и пришлите скриншот оплаты."
	textThanks           = "✅ Спасибо! Курьер в ближайшее время заберёт мусор."
	textThanksBulk       = "✅ Спасибо! Администратор оценит объём и свяжется с вами."
	textAlreadyAccepted  = "✅ Ваш заказ уже принят. Чтобы оформить новый, нажмите кнопку ниже."
	textBulkDescription  = "🛢 Опишите, что нужно вывезти, и укажите точный адрес:"
	textBulkPhotos       = "📷 Пришлите не меньше %d фото мусора."
	textBulkPhotoAck     = "📷 Фото %d из %d получено. Пришлите ещё."
	textFullyBooked      = "❌ Все временные интервалы на %s заняты. Попробуйте другую дату."
	textSlotTaken        = "⚠️ Интервал %s только что заполнился. Выберите другое время:"
	textDateUnavailable  = "⚠️ Эта дата больше недоступна."
	textDatePassed       = "⚠️ Дата %s уже недоступна для записи. Начните новый заказ."
	textPersistFailed    = "⚠️ Не удалось сохранить заказ. Нажмите «Повторить» или попробуйте чуть позже."
	textAddressShort     = "⚠️ Адрес слишком короткий. Укажите улицу, дом, подъезд и квартиру."
	textDescriptionShort = "⚠️ Опишите мусор подробнее и не забудьте адрес."
	textUnknownProduct   = "⚠️ Такой услуги нет."
	textUseButtons       = "Пожалуйста, воспользуйтесь кнопками ниже."
	textSendPhoto        = "Пожалуйста, отправьте фото."
	textSendText         = "Пожалуйста, отправьте ответ текстом."

	textInstruction = "📖 Как это работает:\n" +
		"1. Выберите услугу\n" +
		"2. Укажите, как передать мусор\n" +
		"3. Выберите дату и время\n" +
		"4. Напишите адрес и пришлите фото мусора\n" +
		"5. Оплатите и пришлите скриншот оплаты\n\n" +
		"Курьер заберёт мусор в выбранный интервал."

	btnNewOrder    = "🗑 Новый заказ"
	btnInstruction = "📖 Инструкция"
	btnContact     = "💬 Связаться с администратором"
	btnRestart     = "🔄 Начать заново"
	btnRetry       = "🔁 Повторить"
)

const slotsPerRow = 3

func (m *Machine) menuButtons(seq int64) [][]Button {
	rows := [][]Button{
		{{Text: btnNewOrder, Data: ButtonData(ActionNewOrder, seq, "")}},
		{{Text: btnInstruction, Data: ButtonData(ActionInstruction, seq, "")}},
	}
	if m.cfg.AdminContactURL != "" {
		rows = append(rows, []Button{{Text: btnContact, URL: m.cfg.AdminContactURL}})
	}
	return rows
}

func restartRow(seq int64) []Button {
	return []Button{{Text: btnRestart, Data: ButtonData(ActionRestart, seq, "")}}
}

func (m *Machine) catalogButtons(seq int64) [][]Button {
	rows := make([][]Button, 0, len(m.catalog)+1)
	for _, p := range m.catalog {
		rows = append(rows, []Button{{
			Text: fmt.Sprintf("%s — %d ₽", p.Name, p.Price),
			Data: ButtonData(ActionProduct, seq, p.ID),
		}})
	}
	return append(rows, restartRow(seq))
}

func transferButtons(seq int64) [][]Button {
	return [][]Button{
		{{Text: models.TransferLabel(models.TransferDoor), Data: ButtonData(ActionTransfer, seq, models.TransferDoor)}},
		{{Text: models.TransferLabel(models.TransferUp), Data: ButtonData(ActionTransfer, seq, models.TransferUp)}},
		restartRow(seq),
	}
}

func dateButtons(seq int64, today, tomorrow string) [][]Button {
	return [][]Button{
		{
			{Text: "Сегодня, " + shortDate(today), Data: ButtonData(ActionDate, seq, today)},
			{Text: "Завтра, " + shortDate(tomorrow), Data: ButtonData(ActionDate, seq, tomorrow)},
		},
		restartRow(seq),
	}
}

func slotButtons(seq int64, slots []models.Slot) [][]Button {
	rows := make([][]Button, 0, len(slots)/slotsPerRow+2)
	var row []Button
	for _, s := range slots {
		row = append(row, Button{Text: s.Label, Data: ButtonData(ActionTime, seq, s.Label)})
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return append(rows, restartRow(seq))
}

func retryButtons(seq int64) [][]Button {
	return [][]Button{
		{{Text: btnRetry, Data: ButtonData(ActionRetry, seq, "")}},
		restartRow(seq),
	}
}

// StatusKeyboard кнопки администратора для статусов, доступных из текущего.
func StatusKeyboard(orderID, current string) [][]Button {
	targets := []string{
		models.StatusPaymentConfirmed,
		models.StatusPickedUp,
		models.StatusDisposed,
		models.StatusCancelled,
	}

	var row []Button
	for _, s := range targets {
		if !models.CanTransition(current, s) {
			continue
		}
		row = append(row, Button{Text: models.StatusLabel(s), Data: StatusButtonData(orderID, s)})
	}
	if len(row) == 0 {
		return nil
	}
	if len(row) > 2 {
		return [][]Button{row[:2], row[2:]}
	}
	return [][]Button{row}
}

// AdminCaption подпись к фото заказа для администратора.
func AdminCaption(order *models.Order, catalog models.Catalog) string {
	var b strings.Builder
	if order.IsManual() {
		b.WriteString("📦 Новый заказ (ручная обработка)\n")
	} else {
		b.WriteString("📦 Новый заказ:\n")
	}
	fmt.Fprintf(&b, "🆔 %s\n", order.ID)
	fmt.Fprintf(&b, "🧾 Услуга: %s (%d ₽)\n", catalog.Name(order.Product), catalog.Price(order.Product))
	fmt.Fprintf(&b, "📅 Дата: %s\n", order.Date)
	if order.IsManual() {
		fmt.Fprintf(&b, "📝 Описание и адрес: %s\n", order.Address)
		fmt.Fprintf(&b, "📷 Фото: %d\n", len(order.Photos))
	} else {
		fmt.Fprintf(&b, "⏰ Время: %s\n", order.TimeSlot)
		fmt.Fprintf(&b, "%s\n", models.TransferLabel(order.Transfer))
		fmt.Fprintf(&b, "📍 Адрес: %s\n", order.Address)
		b.WriteString("💳 Оплата: чек приложен\n")
	}
	fmt.Fprintf(&b, "👤 Клиент: %d\n", order.UserID)
	fmt.Fprintf(&b, "Статус: %s", models.StatusLabel(order.Status))
	return b.String()
}

// StatusNotice уведомление клиенту о смене статуса.
func StatusNotice(order *models.Order) string {
	when := order.Date
	if order.TimeSlot != "" {
		when += " " + order.TimeSlot
	}
	return fmt.Sprintf("ℹ️ Заказ на %s: %s", when, models.StatusLabel(order.Status))
}

func shortDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02.01")
}
