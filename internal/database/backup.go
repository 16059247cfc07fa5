package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vyvoz/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// BackupService периодически копирует журнал заказов.
// Для SQLite используется VACUUM INTO, CSV-журнал копируется как файл.
type BackupService struct {
	sourcePath string
	driver     string
	config     config.BackupConfig
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewBackupService(sourcePath, driver string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	l := logger.With().Str("component", "backup").Logger()
	return &BackupService{
		sourcePath: sourcePath,
		driver:     driver,
		config:     cfg,
		logger:     &l,
		now:        time.Now,
	}
}

func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("Backup service is disabled")
		return
	}

	interval := 24 * time.Hour
	if s.config.Schedule != "" {
		if d, err := time.ParseDuration(s.config.Schedule); err == nil && d > 0 {
			interval = d
		} else {
			s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("Failed to parse backup schedule, using default 24h")
		}
	}
	s.logger.Info().Dur("interval", interval).Msg("Backup service started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if _, err := s.PerformBackup(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PerformBackup(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

// PerformBackup делает копию журнала и возвращает путь к ней.
func (s *BackupService) PerformBackup(ctx context.Context) (string, error) {
	if _, err := os.Stat(s.sourcePath); os.IsNotExist(err) {
		s.logger.Info().Str("source", s.sourcePath).Msg("Ledger does not exist yet, nothing to back up")
		return "", nil
	}
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	ext := filepath.Ext(s.sourcePath)
	if ext == "" {
		ext = ".bak"
	}
	timestamp := s.now().Format("20060102_150405")
	backupPath := filepath.Join(s.config.StoragePath, fmt.Sprintf("ledger_%s%s", timestamp, ext))

	if s.driver == config.LedgerDriverSQLite {
		s.logger.Info().Str("path", backupPath).Msg("Performing database backup using VACUUM INTO")
		if err := s.vacuumInto(ctx, backupPath); err != nil {
			s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
			return backupPath, s.copyFile(backupPath)
		}
		s.logger.Info().Msg("Backup completed successfully")
		return backupPath, nil
	}

	if err := s.copyFile(backupPath); err != nil {
		return "", err
	}
	return backupPath, nil
}

func (s *BackupService) vacuumInto(ctx context.Context, backupPath string) error {
	db, err := sql.Open("sqlite3", s.sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	escaped := strings.ReplaceAll(backupPath, "'", "''")
	_, err = db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", escaped))
	return err
}

func (s *BackupService) copyFile(backupPath string) error {
	source, err := os.Open(s.sourcePath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}
	if err := destination.Sync(); err != nil {
		return err
	}

	s.logger.Info().Str("path", backupPath).Msg("File backup completed successfully")
	return nil
}

func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read backup directory for cleanup")
		return
	}

	cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)

	for _, file := range files {
		if file.IsDir() || !strings.HasPrefix(file.Name(), "ledger_") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("Deleting old backup")
			if err := os.Remove(filepath.Join(s.config.StoragePath, file.Name())); err != nil {
				s.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to delete old backup")
			}
		}
	}
}
