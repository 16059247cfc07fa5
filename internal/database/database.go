package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB журнал заказов в SQLite. Таблица ledger_entries только дописывается.
type DB struct {
	*sql.DB
	path   string
	mu     sync.Mutex
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// один писатель, :memory: живёт в рамках соединения
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "database").Logger()

	db := &DB{DB: sqlDB, path: path, logger: &l}
	if err := db.createTables(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	db.logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ledger_entries (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            order_id TEXT NOT NULL,
            user_id INTEGER NOT NULL,
            product TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            date TEXT NOT NULL,
            time_slot TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            transfer TEXT NOT NULL DEFAULT '',
            photos TEXT NOT NULL DEFAULT '',
            payment_proof TEXT NOT NULL DEFAULT '',
            recorded_at DATETIME NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_order_id ON ledger_entries(order_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_date_slot ON ledger_entries(date, time_slot)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
