package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"vyvoz/internal/models"
)

// OrdersReader журнал, сведённый до последнего статуса каждого заказа.
type OrdersReader interface {
	Orders(ctx context.Context, date string) ([]models.Order, error)
}

type Reader struct {
	store   OrdersReader
	catalog models.Catalog
}

func NewReader(store OrdersReader, catalog models.Catalog) *Reader {
	return &Reader{store: store, catalog: catalog}
}

// DailySummary заказы на дату. Пустой или отсутствующий журнал даёт
// пустой список без ошибки.
func (r *Reader) DailySummary(ctx context.Context, date string) ([]models.Order, error) {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	orders, err := r.store.Orders(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("read orders for %s: %w", date, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Summary читает заказы и сразу считает итоги.
func (r *Reader) Summary(ctx context.Context, date string) (*Summary, error) {
	orders, err := r.DailySummary(ctx, date)
	if err != nil {
		return nil, err
	}
	s := Summarize(date, orders, r.catalog)
	return &s, nil
}

type Summary struct {
	Date      string         `json:"date"`
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	Manual    int            `json:"manual"`
	BySlot    map[string]int `json:"by_slot"`
	ByProduct map[string]int `json:"by_product"`
	ByStatus  map[string]int `json:"by_status"`

	// Revenue ожидаемая выручка по ценам каталога без отменённых заказов.
	Revenue int64          `json:"revenue"`
	Orders  []models.Order `json:"orders"`
}

func Summarize(date string, orders []models.Order, catalog models.Catalog) Summary {
	s := Summary{
		Date:      date,
		Total:     len(orders),
		BySlot:    make(map[string]int),
		ByProduct: make(map[string]int),
		ByStatus:  make(map[string]int),
		Orders:    orders,
	}
	for i := range orders {
		o := &orders[i]
		s.ByStatus[o.Status]++
		if o.Status == models.StatusCancelled {
			continue
		}
		s.Active++
		s.ByProduct[o.Product]++
		s.Revenue += catalog.Price(o.Product)
		if o.IsManual() {
			s.Manual++
			continue
		}
		s.BySlot[o.TimeSlot]++
	}
	return s
}

// Text сводка для сообщения администратору.
func (s Summary) Text(catalog models.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Сводка за %s\n\n", s.Date)
	fmt.Fprintf(&b, "Всего заявок: %d (активных: %d)\n", s.Total, s.Active)
	if s.Manual > 0 {
		fmt.Fprintf(&b, "Крупногабарит на рассмотрении: %d\n", s.Manual)
	}
	fmt.Fprintf(&b, "Ожидаемая выручка: %d ₽\n", s.Revenue)

	if len(s.BySlot) > 0 {
		b.WriteString("\nПо времени:\n")
		for _, slot := range sortedKeys(s.BySlot) {
			fmt.Fprintf(&b, "  %s — %d\n", slot, s.BySlot[slot])
		}
	}
	if len(s.ByProduct) > 0 {
		b.WriteString("\nПо услугам:\n")
		for _, id := range sortedKeys(s.ByProduct) {
			fmt.Fprintf(&b, "  %s — %d\n", catalog.Name(id), s.ByProduct[id])
		}
	}
	if len(s.ByStatus) > 0 {
		b.WriteString("\nПо статусам:\n")
		for _, st := range sortedKeys(s.ByStatus) {
			fmt.Fprintf(&b, "  %s — %d\n", models.StatusLabel(st), s.ByStatus[st])
		}
	}
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
