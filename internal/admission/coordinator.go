// Package admission сериализует оформление заказов по интервалу и
// повторно проверяет вместимость перед записью в журнал.
package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vyvoz/internal/ledger"
	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSlotFull         = errors.New("slot is full")
	ErrAlreadyFinalized = errors.New("conversation already finalized")
	ErrPersistence      = errors.New("failed to persist order")
	ErrNotReady         = errors.New("conversation is not ready for finalization")
	ErrBusy             = errors.New("slot lock timeout")
)

type Store interface {
	Append(ctx context.Context, order models.Order) error
	Order(ctx context.Context, id string) (*models.Order, error)
}

type CapacityChecker interface {
	Days(now time.Time) (today, tomorrow string)
	Remaining(ctx context.Context, date, slot string, now time.Time) (int, error)
}

type Coordinator struct {
	store    Store
	capacity CapacityChecker
	clock    schedule.Clock
	timeout  time.Duration
	locks    *keyedLocks
	logger   *zerolog.Logger
}

func NewCoordinator(store Store, capacity CapacityChecker, clock schedule.Clock, timeout time.Duration, logger *zerolog.Logger) *Coordinator {
	if clock == nil {
		clock = schedule.RealClock()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "admission").Logger()
	return &Coordinator{
		store:    store,
		capacity: capacity,
		clock:    clock,
		timeout:  timeout,
		locks:    newKeyedLocks(),
		logger:   &l,
	}
}

// NewOrderID выдаёт упорядоченный по времени идентификатор заказа.
func NewOrderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Finalize записывает заказ диалога в журнал.
//
// Под блокировкой интервала: если заказ с conv.OrderID уже в журнале, диалог
// помечается завершённым и возвращается ErrAlreadyFinalized вместе с записью.
// Нет мест - ErrSlotFull, диалог возвращается к выбору времени.
// Ошибка записи - ErrPersistence, диалог не меняется.
func (c *Coordinator) Finalize(ctx context.Context, conv *models.Conversation) (*models.Order, error) {
	if conv.Finalized || conv.State == models.StateFinalized {
		return nil, ErrAlreadyFinalized
	}

	manual := conv.State == models.StatePhotosCollected
	if conv.State != models.StatePaymentProofCollected && !manual {
		return nil, fmt.Errorf("%w: state %s", ErrNotReady, conv.State)
	}
	if !manual && conv.TimeSlot == "" {
		return nil, fmt.Errorf("%w: time slot is empty", ErrNotReady)
	}
	if conv.OrderID == "" {
		conv.OrderID = NewOrderID()
	}

	now := c.clock.Now()
	date := conv.Date
	if manual {
		// ручной заказ относится к дню, когда пришло последнее фото
		date, _ = c.capacity.Days(now)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := date + "|" + conv.TimeSlot
	unlock, err := c.locks.acquire(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("slot", key).Str("order_id", conv.OrderID).Msg("Slot lock timeout")
		return nil, fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer unlock()

	existing, err := c.store.Order(ctx, conv.OrderID)
	switch {
	case err == nil:
		conv.Finalized = true
		conv.State = models.StateFinalized
		c.logger.Info().Str("order_id", conv.OrderID).Msg("Order already in ledger, conversation marked finalized")
		return existing, ErrAlreadyFinalized
	case !errors.Is(err, ledger.ErrOrderNotFound):
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !manual {
		remaining, err := c.capacity.Remaining(ctx, conv.Date, conv.TimeSlot, now)
		if err != nil {
			var invalid *schedule.InvalidDateError
			if errors.As(err, &invalid) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if remaining <= 0 {
			c.logger.Info().
				Str("date", conv.Date).
				Str("time_slot", conv.TimeSlot).
				Int64("user_id", conv.UserID).
				Msg("Slot filled before finalization")
			conv.State = models.StateTimeChosen
			conv.TimeSlot = ""
			return nil, ErrSlotFull
		}
	}

	order := buildOrder(conv, now)
	order.Date = date
	if err := c.store.Append(ctx, order); err != nil {
		c.logger.Error().Err(err).Str("order_id", order.ID).Msg("Failed to append order")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	conv.Date = date
	conv.Finalized = true
	conv.State = models.StateFinalized

	c.logger.Info().
		Str("order_id", order.ID).
		Int64("user_id", order.UserID).
		Str("date", order.Date).
		Str("time_slot", order.TimeSlot).
		Str("status", order.Status).
		Msg("Order finalized")
	return &order, nil
}

func buildOrder(conv *models.Conversation, now time.Time) models.Order {
	order := models.Order{
		ID:           conv.OrderID,
		UserID:       conv.UserID,
		Product:      conv.Product,
		Transfer:     conv.Transfer,
		Address:      conv.Address,
		Date:         conv.Date,
		TimeSlot:     conv.TimeSlot,
		Photos:       append([]string(nil), conv.Photos...),
		PaymentProof: conv.PaymentProof,
		Status:       models.StatusPendingConfirmation,
		RecordedAt:   now,
	}
	if conv.State == models.StatePhotosCollected {
		order.Status = models.StatusManualReview
		order.TimeSlot = ""
		if conv.Description != "" {
			order.Address = conv.Description
		}
	}
	return order
}
