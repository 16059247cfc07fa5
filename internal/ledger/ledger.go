// Package ledger хранит журнал заказов: только дописывание, последняя запись
// по заказу определяет его текущее состояние.
package ledger

import (
	"errors"

	"vyvoz/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// Header колонки журнала в порядке записи.
var Header = []string{
	"order_id",
	"user",
	"product",
	"address",
	"date",
	"time_slot",
	"status",
	"transfer",
	"photos",
	"payment_proof",
	"recorded_at",
}

// Fold сворачивает записи журнала до последнего состояния каждого заказа.
// Порядок результата - порядок первого появления заказа в журнале.
func Fold(entries []models.Order) []models.Order {
	index := make(map[string]int, len(entries))
	out := make([]models.Order, 0, len(entries))

	for _, e := range entries {
		if i, ok := index[e.ID]; ok {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

// FilterByDate оставляет заказы на указанную дату, пустая дата - все.
func FilterByDate(orders []models.Order, date string) []models.Order {
	if date == "" {
		return orders
	}
	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Date == date {
			out = append(out, o)
		}
	}
	return out
}

// Occupancy считает занятые места по интервалам даты.
// Отменённые заказы и заказы без интервала места не занимают.
func Occupancy(orders []models.Order, date string) map[string]int {
	counts := make(map[string]int)
	for i := range orders {
		o := &orders[i]
		if o.Date != date || !o.OccupiesSlot() {
			continue
		}
		counts[o.TimeSlot]++
	}
	return counts
}

// Latest возвращает последнее состояние заказа из записей.
func Latest(entries []models.Order, orderID string) (*models.Order, error) {
	var found *models.Order
	for i := range entries {
		if entries[i].ID == orderID {
			o := entries[i]
			found = &o
		}
	}
	if found == nil {
		return nil, ErrOrderNotFound
	}
	return found, nil
}
