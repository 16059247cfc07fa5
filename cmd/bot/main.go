package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // расписание в Europe/Moscow и на хостах без tzdata

	"vyvoz/internal/admission"
	"vyvoz/internal/api"
	"vyvoz/internal/bot"
	"vyvoz/internal/config"
	"vyvoz/internal/database"
	"vyvoz/internal/domain"
	"vyvoz/internal/events"
	"vyvoz/internal/google"
	"vyvoz/internal/ledger"
	"vyvoz/internal/logging"
	"vyvoz/internal/metrics"
	"vyvoz/internal/models"
	"vyvoz/internal/queue"
	"vyvoz/internal/report"
	"vyvoz/internal/repository"
	"vyvoz/internal/schedule"
	"vyvoz/internal/service"
	"vyvoz/internal/worker"
	"vyvoz/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ledgerStore журнал, которым пользуются все компоненты.
type ledgerStore interface {
	domain.LedgerStore
	io.Closer
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, catalog, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	store, err := initLedger(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()
	clock := schedule.RealClock()

	redisClient, conversations := initConversations(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	// Запускаем воркер синхронизации Google Sheets
	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, logger); sheetsService != nil {
		go sheetsService.Start(ctx)
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker := worker.NewSheetsWorker(sheetsService, redisClient, retryPolicy, models.WorkerQueueSize, logger)
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	eventBus := events.NewEventBus()
	if publisher := initBroker(cfg, logger); publisher != nil {
		defer publisher.Close()
		eventBus.Subscribe(events.EventOrderCreated, publisher.Handle)
		eventBus.Subscribe(events.EventOrderStatusChanged, publisher.Handle)
	}

	allocator := schedule.NewAllocator(store, schedule.Config{
		Location:  cfg.Schedule.Location(),
		FirstHour: cfg.Schedule.FirstHour,
		LastHour:  cfg.Schedule.LastHour,
		Capacity:  cfg.Schedule.Capacity,
	})
	coordinator := admission.NewCoordinator(store, allocator, clock, cfg.Admission.Timeout, logger)
	machine := workflow.NewMachine(conversations, catalog, allocator, coordinator, clock, workflow.Config{
		AdminChatID:      cfg.Telegram.AdminChatID,
		AddressMinLength: cfg.Bot.AddressMinLength,
		BulkMinPhotos:    cfg.Bot.BulkMinPhotos,
		PaymentPhone:     cfg.Bot.PaymentPhone,
		PaymentBank:      cfg.Bot.PaymentBank,
		AdminContactURL:  cfg.Bot.AdminContactURL,
	}, logger)
	orderService := service.NewOrderService(store, eventBus, syncWorker, clock, logger)

	telegramBot, err := initBot(cfg, catalog, machine, orderService, conversations, logger)
	if err != nil {
		return err
	}

	reader := report.NewReader(store, catalog)
	apiServer := api.NewHTTPServer(cfg.API, api.Deps{
		Slots:         allocator,
		Summaries:     reader,
		Webhook:       webhookHandler(cfg, telegramBot),
		WebhookSecret: cfg.Telegram.WebhookSecret,
		Ready:         readiness(redisClient),
		Clock:         clock,
	}, logger)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = apiServer.Shutdown(shutdownCtx)
	}()

	if cfg.Report.Enabled {
		hour, minute, _ := cfg.Report.Clock()
		scheduler := report.NewScheduler(reader, telegramBot, catalog, clock, report.SchedulerConfig{
			Location:   cfg.Schedule.Location(),
			Hour:       hour,
			Minute:     minute,
			ExportsDir: cfg.Report.ExportsPath,
		}, logger)
		go scheduler.Start(ctx)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Ledger.Path, cfg.Ledger.Driver, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	logger.Info().Msg("Бот запущен...")
	if err := telegramBot.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Bot stopped with error")
		return err
	}

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, models.Catalog, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger := logging.Component(baseLogger, "bot-main")

	productsPath := os.Getenv("PRODUCTS_PATH")
	if productsPath == "" {
		productsPath = cfg.Bot.ProductsPath
	}
	catalog, err := config.LoadCatalog(productsPath)
	if err != nil {
		logger.Error().Err(err).Msgf("Ошибка чтения каталога %s", productsPath)
		return nil, nil, nil, closer, err
	}

	return cfg, catalog, logger, closer, nil
}

func initLedger(cfg *config.Config, logger *zerolog.Logger) (ledgerStore, error) {
	switch cfg.Ledger.Driver {
	case config.LedgerDriverSQLite:
		db, err := database.NewDB(cfg.Ledger.Path, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
			return nil, err
		}
		return db, nil
	default:
		fs, err := ledger.NewFileStore(cfg.Ledger.Path, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Ошибка открытия журнала заказов")
			return nil, err
		}
		return fs, nil
	}
}

func initConversations(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.ConversationService) {
	ttl := cfg.Bot.ConversationTTL
	fallbackRepo := repository.NewMemoryConversationRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Warn().Msg("Redis is not configured, conversations are kept in memory")
		return nil, service.NewConversationService(fallbackRepo, logger)
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primaryRepo := repository.NewRedisConversationRepository(redisClient, ttl)
	convRepo := repository.NewFailoverConversationRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewConversationService(convRepo, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("Google Sheets mirror disabled")
		return nil
	}

	sheetsSvc, err := google.NewSheetsService(
		ctx,
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.OrdersSpreadSheetID,
		cfg.Google.OrdersSheetName,
		logger,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil
	}
	if err := sheetsSvc.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to write sheet header")
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc
}

func initBroker(cfg *config.Config, logger *zerolog.Logger) *queue.Publisher {
	if !cfg.Broker.Enabled() {
		return nil
	}
	publisher, err := queue.NewPublisher(cfg.Broker.URL, cfg.Broker.Queue, logger)
	if err != nil {
		// без брокера бот работает, события просто не уходят наружу
		logger.Warn().Err(err).Msg("Broker unavailable, order events are not exported")
		return nil
	}
	return publisher
}

func initBot(
	cfg *config.Config,
	catalog models.Catalog,
	machine *workflow.Machine,
	orders *service.OrderService,
	limiter *service.ConversationService,
	logger *zerolog.Logger,
) (*bot.Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return nil, err
	}
	botAPI.Debug = cfg.Telegram.Debug

	tgService := service.NewTelegramService(bot.NewBotWrapper(botAPI))
	telegramBot, err := bot.NewBot(tgService, cfg, catalog, machine, orders, limiter, bot.NewMetrics(nil), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return nil, err
	}
	return telegramBot, nil
}

func webhookHandler(cfg *config.Config, b *bot.Bot) http.Handler {
	if cfg.Telegram.WebhookURL == "" {
		return nil
	}
	return b.WebhookHandler()
}

func readiness(client *redis.Client) func(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return repository.Ping(ctx, client)
	}
}
