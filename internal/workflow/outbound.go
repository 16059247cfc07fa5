package workflow

import "vyvoz/internal/models"

// Button кнопка исходящего сообщения: либо callback Data, либо URL.
type Button struct {
	Text string
	Data string
	URL  string
}

// Message исходящее сообщение. Если задан PhotoID, Text уходит подписью к фото.
// Album - дополнительные фото, отправляются отдельной группой.
type Message struct {
	ChatID  int64
	Text    string
	PhotoID string
	Album   []string
	Buttons [][]Button
}

// Result итог обработки события.
type Result struct {
	Messages []Message
	Stale    bool
	Accepted bool
	State    models.State
	Order    *models.Order
	// Err причина отказа или отката шага, для логов и метрик
	Err error
}

func (r *Result) reply(msg Message) {
	r.Messages = append(r.Messages, msg)
}
