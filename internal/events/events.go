package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"vyvoz/internal/models"
)

const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
)

// OrderEventPayload снимок заказа для подписчиков шины.
type OrderEventPayload struct {
	OrderID        string    `json:"order_id"`
	UserID         int64     `json:"user_id"`
	Product        string    `json:"product"`
	Transfer       string    `json:"transfer,omitempty"`
	Address        string    `json:"address"`
	Date           string    `json:"date"`
	TimeSlot       string    `json:"time_slot,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	ChangedBy      string    `json:"changed_by,omitempty"`
	ChangedByID    int64     `json:"changed_by_id,omitempty"`
}

func NewOrderEventPayload(order models.Order, previous, changedBy string, changedByID int64) OrderEventPayload {
	return OrderEventPayload{
		OrderID:        order.ID,
		UserID:         order.UserID,
		Product:        order.Product,
		Transfer:       order.Transfer,
		Address:        order.Address,
		Date:           order.Date,
		TimeSlot:       order.TimeSlot,
		Status:         order.Status,
		PreviousStatus: previous,
		RecordedAt:     order.RecordedAt,
		ChangedBy:      changedBy,
		ChangedByID:    changedByID,
	}
}

type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode разворачивает payload события в v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

type EventHandler func(event *Event) error

// EventBus синхронная шина внутри процесса.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish вызывает всех подписчиков; ошибка одного не мешает остальным.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
}
