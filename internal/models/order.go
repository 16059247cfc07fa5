package models

import "time"

// Order запись журнала заказов. После записи не меняется,
// новый статус оформляется отдельной записью с тем же ID.
type Order struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Product      string    `json:"product"`
	Transfer     string    `json:"transfer,omitempty"`
	Address      string    `json:"address"`
	Date         string    `json:"date"`
	TimeSlot     string    `json:"time_slot,omitempty"`
	Photos       []string  `json:"photos,omitempty"`
	PaymentProof string    `json:"payment_proof,omitempty"`
	Status       string    `json:"status"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// IsManual - заказ без интервала, разбирается администратором вручную.
func (o *Order) IsManual() bool {
	return o.TimeSlot == ""
}

// OccupiesSlot сообщает, занимает ли заказ место в интервале.
func (o *Order) OccupiesSlot() bool {
	return !o.IsManual() && o.Status != StatusCancelled
}

// WithStatus возвращает копию заказа с новым статусом.
func (o Order) WithStatus(status string, at time.Time) Order {
	o.Status = status
	o.RecordedAt = at
	if o.Photos != nil {
		o.Photos = append([]string(nil), o.Photos...)
	}
	return o
}

var statusRanks = map[string]int{
	StatusPendingConfirmation: 0,
	StatusManualReview:        0,
	StatusPaymentConfirmed:    1,
	StatusPickedUp:            2,
	StatusDisposed:            3,
	StatusCancelled:           4,
}

var statusLabels = map[string]string{
	StatusPendingConfirmation: "⏳ Ожидает подтверждения",
	StatusManualReview:        "🔎 На рассмотрении",
	StatusPaymentConfirmed:    "💳 Оплата подтверждена",
	StatusPickedUp:            "🚚 Мусор забрали",
	StatusDisposed:            "♻️ Утилизирован",
	StatusCancelled:           "❌ Отменён",
}

// IsKnownStatus проверяет статус заказа.
func IsKnownStatus(status string) bool {
	_, ok := statusRanks[status]
	return ok
}

// IsTerminalStatus - из этих статусов переходов нет.
func IsTerminalStatus(status string) bool {
	return status == StatusDisposed || status == StatusCancelled
}

// CanTransition разрешает только движение вперёд. Отмена возможна из любого
// нетерминального статуса.
func CanTransition(from, to string) bool {
	if !IsKnownStatus(from) || !IsKnownStatus(to) || IsTerminalStatus(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return statusRanks[to] > statusRanks[from]
}

// StatusLabel подпись статуса для сообщений.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}
