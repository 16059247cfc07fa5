// Package schedule строит дневную сетку интервалов вывоза и считает свободные места.
package schedule

import (
	"context"
	"fmt"
	"time"

	"vyvoz/internal/models"
)

// InvalidDateError - дата не сегодня и не завтра.
type InvalidDateError struct {
	Date     string
	Today    string
	Tomorrow string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("date %q is outside the booking window (%s, %s)", e.Date, e.Today, e.Tomorrow)
}

// OccupancyReader отдаёт число занятых мест по интервалам даты.
type OccupancyReader interface {
	Occupancy(ctx context.Context, date string) (map[string]int, error)
}

type Config struct {
	Location  *time.Location
	FirstHour int
	LastHour  int
	Capacity  int
}

// Allocator только читает журнал, расписание каждый раз считается заново.
type Allocator struct {
	store OccupancyReader
	cfg   Config
}

func NewAllocator(store OccupancyReader, cfg Config) *Allocator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.FirstHour == 0 && cfg.LastHour == 0 {
		cfg.FirstHour = models.DefaultFirstHour
		cfg.LastHour = models.DefaultLastHour
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = models.DefaultSlotCapacity
	}
	return &Allocator{store: store, cfg: cfg}
}

func (a *Allocator) Location() *time.Location {
	return a.cfg.Location
}

func (a *Allocator) Capacity() int {
	return a.cfg.Capacity
}

// Days возвращает сегодня и завтра в часовом поясе расписания.
func (a *Allocator) Days(now time.Time) (today, tomorrow string) {
	local := now.In(a.cfg.Location)
	return local.Format(models.DateLayout), local.AddDate(0, 0, 1).Format(models.DateLayout)
}

// Hours возвращает часы сетки для даты. Для сегодняшнего дня текущий
// и прошедшие часы исключаются.
func (a *Allocator) Hours(date string, now time.Time) ([]int, error) {
	today, tomorrow := a.Days(now)

	first := a.cfg.FirstHour
	switch date {
	case today:
		if h := now.In(a.cfg.Location).Hour() + 1; h > first {
			first = h
		}
	case tomorrow:
	default:
		return nil, &InvalidDateError{Date: date, Today: today, Tomorrow: tomorrow}
	}

	if first > a.cfg.LastHour {
		return []int{}, nil
	}
	hours := make([]int, 0, a.cfg.LastHour-first+1)
	for h := first; h <= a.cfg.LastHour; h++ {
		hours = append(hours, h)
	}
	return hours, nil
}

// Slots возвращает всю сетку даты вместе с занятостью, включая заполненные интервалы.
func (a *Allocator) Slots(ctx context.Context, date string, now time.Time) ([]models.Slot, error) {
	hours, err := a.Hours(date, now)
	if err != nil {
		return nil, err
	}
	if len(hours) == 0 {
		return []models.Slot{}, nil
	}

	occupancy, err := a.store.Occupancy(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read occupancy: %w", err)
	}

	slots := make([]models.Slot, 0, len(hours))
	for _, h := range hours {
		label := SlotLabel(h)
		slots = append(slots, models.Slot{
			Date:     date,
			Label:    label,
			Hour:     h,
			Capacity: a.cfg.Capacity,
			Booked:   occupancy[label],
		})
	}
	return slots, nil
}

// AvailableSlots возвращает интервалы со свободными местами по возрастанию.
// Пустой результат означает, что день полностью занят.
func (a *Allocator) AvailableSlots(ctx context.Context, date string, now time.Time) ([]models.Slot, error) {
	slots, err := a.Slots(ctx, date, now)
	if err != nil {
		return nil, err
	}

	available := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available() {
			available = append(available, s)
		}
	}
	return available, nil
}

// Remaining возвращает число свободных мест в интервале.
// Интервал, которого уже нет в сетке, считается заполненным.
func (a *Allocator) Remaining(ctx context.Context, date, slot string, now time.Time) (int, error) {
	slots, err := a.Slots(ctx, date, now)
	if err != nil {
		return 0, err
	}
	for _, s := range slots {
		if s.Label == slot {
			return s.Remaining(), nil
		}
	}
	return 0, nil
}

func SlotLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
