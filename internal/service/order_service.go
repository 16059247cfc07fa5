package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vyvoz/internal/domain"
	"vyvoz/internal/events"
	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
)

var (
	ErrUnknownStatus    = errors.New("unknown order status")
	ErrStatusNotForward = errors.New("status transition is not forward")
)

// OrderStore часть журнала, нужная для смены статусов.
type OrderStore interface {
	Append(ctx context.Context, order models.Order) error
	Order(ctx context.Context, id string) (*models.Order, error)
}

// OrderService публикует события по заказам и меняет их статусы
// дописыванием новых записей в журнал.
type OrderService struct {
	store        OrderStore
	eventBus     domain.EventPublisher
	sheetsWorker domain.SyncWorker
	clock        schedule.Clock
	logger       *zerolog.Logger
	mu           sync.Mutex
}

func NewOrderService(store OrderStore, eventBus domain.EventPublisher, sheetsWorker domain.SyncWorker, clock schedule.Clock, logger *zerolog.Logger) *OrderService {
	if clock == nil {
		clock = schedule.RealClock()
	}
	return &OrderService{
		store:        store,
		eventBus:     eventBus,
		sheetsWorker: sheetsWorker,
		clock:        clock,
		logger:       logger,
	}
}

// OrderCreated вызывается после успешной фиксации заказа.
func (s *OrderService) OrderCreated(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	s.publishEvent(events.EventOrderCreated, *order, "", "user", order.UserID)
	s.enqueueSync(ctx, models.SyncTaskUpsert, order)
}

// ChangeStatus переводит заказ в новый статус. Переход назад или повтор
// текущего статуса возвращает ErrStatusNotForward без записи в журнал.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID, status string, adminID int64) (*models.Order, error) {
	if !models.IsKnownStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, status) {
		return current, ErrStatusNotForward
	}

	next := current.WithStatus(status, s.clock.Now())
	if err := s.store.Append(ctx, next); err != nil {
		return nil, fmt.Errorf("append status change: %w", err)
	}

	s.logger.Info().
		Str("order_id", orderID).
		Str("from", current.Status).
		Str("to", status).
		Int64("admin_id", adminID).
		Msg("Order status changed")

	s.publishEvent(events.EventOrderStatusChanged, next, current.Status, "admin", adminID)
	s.enqueueSync(ctx, models.SyncTaskUpdateStatus, &next)

	return &next, nil
}

func (s *OrderService) publishEvent(eventType string, order models.Order, previous, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.NewOrderEventPayload(order, previous, changedBy, changedByID)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("order_id", order.ID).Msg("publish event error")
	}
}

func (s *OrderService) enqueueSync(ctx context.Context, taskType string, order *models.Order) {
	if s.sheetsWorker == nil {
		return
	}
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, order); err != nil {
		s.logger.Error().Err(err).Str("order_id", order.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
