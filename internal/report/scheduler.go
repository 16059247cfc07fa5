package report

import (
	"context"
	"time"

	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
)

// Notifier доставляет готовую сводку (обычно в админский чат).
type Notifier interface {
	SendDailySummary(ctx context.Context, summary *Summary, attachment string) error
}

// Scheduler раз в сутки в заданное время собирает сводку за текущий день.
type Scheduler struct {
	reader     *Reader
	notifier   Notifier
	catalog    models.Catalog
	clock      schedule.Clock
	loc        *time.Location
	hour       int
	minute     int
	exportsDir string
	logger     *zerolog.Logger
}

type SchedulerConfig struct {
	Location   *time.Location
	Hour       int
	Minute     int
	ExportsDir string
}

func NewScheduler(reader *Reader, notifier Notifier, catalog models.Catalog, clock schedule.Clock, cfg SchedulerConfig, logger *zerolog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if clock == nil {
		clock = schedule.RealClock()
	}
	return &Scheduler{
		reader:     reader,
		notifier:   notifier,
		catalog:    catalog,
		clock:      clock,
		loc:        cfg.Location,
		hour:       cfg.Hour,
		minute:     cfg.Minute,
		exportsDir: cfg.ExportsDir,
		logger:     logger,
	}
}

// NextRun ближайший момент отправки строго после now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Int("hour", s.hour).Int("minute", s.minute).Msg("Daily summary scheduler started")
	for {
		now := s.clock.Now()
		wait := s.NextRun(now).Sub(now)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		date := s.clock.Now().In(s.loc).Format(models.DateLayout)
		if err := s.RunOnce(ctx, date); err != nil {
			s.logger.Error().Err(err).Str("date", date).Msg("Daily summary failed")
		}
	}
}

// RunOnce собирает сводку за date, выгружает xlsx и отправляет.
// Если выгрузка не удалась, сводка уходит без вложения.
func (s *Scheduler) RunOnce(ctx context.Context, date string) error {
	summary, err := s.reader.Summary(ctx, date)
	if err != nil {
		return err
	}

	var path string
	if s.exportsDir != "" && summary.Total > 0 {
		path, err = Export(*summary, s.catalog, s.exportsDir)
		if err != nil {
			s.logger.Error().Err(err).Str("date", date).Msg("Summary export failed")
			path = ""
		}
	}

	if err := s.notifier.SendDailySummary(ctx, summary, path); err != nil {
		return err
	}
	s.logger.Info().Str("date", date).Int("orders", summary.Total).Msg("Daily summary sent")
	return nil
}
