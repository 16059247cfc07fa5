package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vyvoz/internal/ledger"
	"vyvoz/internal/models"
)

const entryColumns = `order_id, user_id, product, address, date, time_slot, status, transfer, photos, payment_proof, recorded_at`

// Append дописывает запись журнала.
func (db *DB) Append(ctx context.Context, order models.Order) error {
	if order.ID == "" {
		return errors.New("order id is required")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	query := `INSERT INTO ledger_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Product,
		order.Address,
		order.Date,
		order.TimeSlot,
		order.Status,
		order.Transfer,
		strings.Join(order.Photos, "|"),
		order.PaymentProof,
		order.RecordedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	db.logger.Debug().
		Str("order_id", order.ID).
		Str("status", order.Status).
		Msg("Ledger entry appended")
	return nil
}

// Orders возвращает последнее состояние заказов на дату, пустая дата - все.
func (db *DB) Orders(ctx context.Context, date string) ([]models.Order, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	var args []any
	if date != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY seq`

	entries, err := db.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ledger.Fold(entries), nil
}

func (db *DB) Order(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE order_id = ? ORDER BY seq`
	entries, err := db.queryEntries(ctx, query, id)
	if err != nil {
		return nil, err
	}
	return ledger.Latest(entries, id)
}

func (db *DB) Occupancy(ctx context.Context, date string) (map[string]int, error) {
	orders, err := db.Orders(ctx, date)
	if err != nil {
		return nil, err
	}
	return ledger.Occupancy(orders, date), nil
}

func (db *DB) queryEntries(ctx context.Context, query string, args ...any) ([]models.Order, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []models.Order
	for rows.Next() {
		var (
			o          models.Order
			photos     string
			recordedAt time.Time
		)
		if err := rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Product,
			&o.Address,
			&o.Date,
			&o.TimeSlot,
			&o.Status,
			&o.Transfer,
			&photos,
			&o.PaymentProof,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if photos != "" {
			o.Photos = strings.Split(photos, "|")
		}
		o.RecordedAt = recordedAt
		entries = append(entries, o)
	}
	return entries, rows.Err()
}
