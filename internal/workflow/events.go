package workflow

import (
	"strconv"
	"strings"
)

// Kind тип входящего события.
type Kind string

const (
	KindText    Kind = "text"
	KindPhoto   Kind = "photo"
	KindButton  Kind = "button"
	KindCommand Kind = "command"
)

// Действия кнопок диалога.
const (
	ActionNewOrder    = "new"
	ActionInstruction = "help"
	ActionProduct     = "p"
	ActionTransfer    = "tr"
	ActionDate        = "d"
	ActionTime        = "t"
	ActionRetry       = "retry"
	ActionRestart     = "restart"

	// кнопки администратора обрабатываются вне диалога
	ActionStatus = "st"
)

const (
	CommandStart = "start"
	CommandHelp  = "help"
)

// Event входящее событие в нормализованном виде.
// Для кнопок Seq - номер шага, для которого кнопка была показана.
type Event struct {
	UserID    int64
	ChatID    int64
	Kind      Kind
	MessageID int
	Text      string
	PhotoID   string
	Action    string
	Seq       int64
	Value     string
}

func (e Event) isRestart() bool {
	return (e.Kind == KindCommand && e.Text == CommandStart) ||
		(e.Kind == KindButton && e.Action == ActionRestart)
}

func (e Event) isButton(action string) bool {
	return e.Kind == KindButton && e.Action == action
}

// ButtonData кодирует callback data: action:seq:value.
func ButtonData(action string, seq int64, value string) string {
	return action + ":" + strconv.FormatInt(seq, 10) + ":" + value
}

// ParseButton разбирает callback data. Значение может содержать двоеточия.
func ParseButton(data string) (action string, seq int64, value string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return "", 0, "", false
	}
	seq, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	if len(parts) == 3 {
		value = parts[2]
	}
	return parts[0], seq, value, true
}

// StatusButtonData кнопка смены статуса заказа: st:<order_id>:<status>.
func StatusButtonData(orderID, status string) string {
	return ActionStatus + ":" + orderID + ":" + status
}

func ParseStatusButton(data string) (orderID, status string, ok bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != ActionStatus || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// NewButtonEvent собирает событие нажатия кнопки диалога.
func NewButtonEvent(userID, chatID int64, messageID int, data string) (Event, bool) {
	action, seq, value, ok := ParseButton(data)
	if !ok || action == ActionStatus {
		return Event{}, false
	}
	return Event{
		UserID:    userID,
		ChatID:    chatID,
		Kind:      KindButton,
		MessageID: messageID,
		Action:    action,
		Seq:       seq,
		Value:     value,
	}, true
}
