package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"vyvoz/internal/api"
	"vyvoz/internal/config"
	"vyvoz/internal/database"
	"vyvoz/internal/domain"
	"vyvoz/internal/ledger"
	"vyvoz/internal/logging"
	"vyvoz/internal/metrics"
	"vyvoz/internal/report"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
)

// Отдельный процесс только для чтения: слоты и сводки по журналу,
// который пишет бот.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
		cfg.API.Enabled = true
	}

	catalog, err := config.LoadCatalog(cfg.Bot.ProductsPath)
	if err != nil {
		logger.Error().Err(err).Str("products_path", cfg.Bot.ProductsPath).Msg("read catalog")
		return err
	}

	store, closeStore, err := openLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics.Register()

	allocator := schedule.NewAllocator(store, schedule.Config{
		Location:  cfg.Schedule.Location(),
		FirstHour: cfg.Schedule.FirstHour,
		LastHour:  cfg.Schedule.LastHour,
		Capacity:  cfg.Schedule.Capacity,
	})
	httpServer := api.NewHTTPServer(cfg.API, api.Deps{
		Slots:     allocator,
		Summaries: report.NewReader(store, catalog),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("api stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func openLedger(cfg *config.Config, logger *zerolog.Logger) (domain.LedgerStore, func(), error) {
	if cfg.Ledger.Driver == config.LedgerDriverSQLite {
		db, err := database.NewDB(cfg.Ledger.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Ledger.Path).Msg("init database")
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}

	fs, err := ledger.NewFileStore(cfg.Ledger.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("ledger_path", cfg.Ledger.Path).Msg("open ledger")
		return nil, nil, err
	}
	return fs, func() { _ = fs.Close() }, nil
}
