package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vyvoz/internal/admission"
	"vyvoz/internal/config"
	"vyvoz/internal/domain"
	"vyvoz/internal/logging"
	"vyvoz/internal/models"
	"vyvoz/internal/workflow"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	updateTimeout    = 30 * time.Second
	shardQueueSize   = 64
	webhookPathBase  = "/webhook/"
	pollingTimeout   = 60
	submitTimeoutWeb = 5 * time.Second
)

// Machine диалог оформления заказа.
type Machine interface {
	Handle(ctx context.Context, ev workflow.Event) (*workflow.Result, error)
}

// OrderTracker сопровождение заказа после записи в журнал.
type OrderTracker interface {
	OrderCreated(ctx context.Context, order *models.Order)
	ChangeStatus(ctx context.Context, orderID, status string, adminID int64) (*models.Order, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, userID int64, limit int, window time.Duration) bool
}

type Bot struct {
	tgService  domain.TelegramService
	config     *config.Config
	catalog    models.Catalog
	machine    Machine
	orders     OrderTracker
	limiter    RateLimiter
	metrics    *Metrics
	logger     *zerolog.Logger
	dispatcher *dispatcher
}

func NewBot(
	tgService domain.TelegramService,
	cfg *config.Config,
	catalog models.Catalog,
	machine Machine,
	orders OrderTracker,
	limiter RateLimiter,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tgService == nil {
		return nil, errors.New("telegram service is required")
	}
	if machine == nil {
		return nil, errors.New("workflow machine is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	b := &Bot{
		tgService: tgService,
		config:    cfg,
		catalog:   catalog,
		machine:   machine,
		orders:    orders,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logging.Component(logger, "bot"),
	}

	workers := cfg.Bot.Workers
	if workers <= 0 {
		workers = models.DefaultDispatchWorkers
	}
	b.dispatcher = newDispatcher(workers, shardQueueSize, b.processUpdate)
	if metrics != nil {
		b.dispatcher.depth = metrics.QueueDepth
	}
	return b, nil
}

// Start поднимает обработчики и получает апдейты через webhook или long polling.
// Возвращается после отмены ctx, когда очередь обработана.
func (b *Bot) Start(ctx context.Context) error {
	// уже принятые апдейты дорабатываются после отмены ctx
	b.dispatcher.start(context.WithoutCancel(ctx))
	defer b.dispatcher.stop()

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	if b.config.Telegram.WebhookURL != "" {
		url := strings.TrimRight(b.config.Telegram.WebhookURL, "/") + webhookPathBase + b.config.Telegram.WebhookSecret
		if err := b.tgService.SetWebhook(url); err != nil {
			return fmt.Errorf("failed to set webhook: %w", err)
		}
		b.logger.Info().Msg("Webhook mode, waiting for updates over HTTP")
		<-ctx.Done()
		b.logger.Info().Msg("Bot stopping...")
		return nil
	}

	if err := b.tgService.DeleteWebhook(); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to delete webhook before polling")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollingTimeout
	updates := b.tgService.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.tgService.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.dispatcher.submit(ctx, update); err != nil {
				b.logger.Warn().Err(err).Int("update_id", update.UpdateID).Msg("Update dropped")
			}
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Int("update_id", update.UpdateID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		userID := updateUserID(update)
		if userID == 0 {
			return
		}

		if !b.isAdmin(update) && !b.allow(updateCtx, userID) {
			l.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
			if b.metrics != nil {
				b.metrics.RateLimited.Inc()
			}
			if update.Message != nil {
				b.sendMessage(update.Message.Chat.ID, msgRateLimited)
			}
			if update.CallbackQuery != nil {
				b.answerCallback(update.CallbackQuery.ID, "")
			}
			return
		}

		if cb := update.CallbackQuery; cb != nil {
			if _, _, ok := workflow.ParseStatusButton(cb.Data); ok {
				b.handleStatusCallback(updateCtx, cb)
				return
			}
		}

		ev, ok := toEvent(update)
		if !ok {
			if update.CallbackQuery != nil {
				b.answerCallback(update.CallbackQuery.ID, "")
			}
			return
		}
		b.handleEvent(updateCtx, ev, update.CallbackQuery)
	})
}

func (b *Bot) handleEvent(ctx context.Context, ev workflow.Event, cb *tgbotapi.CallbackQuery) {
	l := logging.FromContext(ctx, b.logger)
	if b.metrics != nil {
		b.metrics.UpdatesTotal.WithLabelValues(string(ev.Kind)).Inc()
	}
	var answer string
	if cb != nil {
		// кнопку подтверждаем всегда, иначе у клиента висят часики
		defer func() { b.answerCallback(cb.ID, answer) }()
	}

	res, err := b.machine.Handle(ctx, ev)
	if err != nil {
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		l.Error().Err(err).Int64("user_id", ev.UserID).Msg("Failed to handle event")
		b.sendMessage(ev.ChatID, b.getErrorMessage(err))
		return
	}

	if res.Stale {
		if b.metrics != nil {
			b.metrics.StaleEvents.Inc()
		}
		answer = msgStaleButton
		return
	}

	if res.Err != nil {
		l.Info().Err(res.Err).Int64("user_id", ev.UserID).Str("state", string(res.State)).Msg("Event handled with rejection")
		b.recordFinalizeFailure(res.Err)
	}

	if res.Order != nil {
		l.Info().
			Str("order_id", res.Order.ID).
			Int64("user_id", res.Order.UserID).
			Str("date", res.Order.Date).
			Str("slot", res.Order.TimeSlot).
			Msg("Order finalized")
		if b.metrics != nil {
			b.metrics.OrdersCreated.WithLabelValues(res.Order.Product).Inc()
		}
		if b.orders != nil {
			b.orders.OrderCreated(ctx, res.Order)
		}
	}

	b.deliver(ctx, res.Messages)
}

func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter == nil {
		return true
	}
	window := time.Duration(b.config.Bot.RateLimitWindow) * time.Second
	return b.limiter.Allow(ctx, userID, b.config.Bot.RateLimitMessages, window)
}

func (b *Bot) isAdmin(update tgbotapi.Update) bool {
	admin := b.config.Telegram.AdminChatID
	if admin == 0 {
		return false
	}
	return updateChatID(update) == admin || updateUserID(update) == admin
}

func (b *Bot) recordFinalizeFailure(err error) {
	if b.metrics == nil {
		return
	}
	switch {
	case errors.Is(err, workflow.ErrFullyBooked):
		b.metrics.FinalizeFailures.WithLabelValues("fully_booked").Inc()
	case errors.Is(err, admission.ErrSlotFull):
		b.metrics.FinalizeFailures.WithLabelValues("slot_full").Inc()
	case errors.Is(err, admission.ErrPersistence):
		b.metrics.FinalizeFailures.WithLabelValues("persistence").Inc()
	case errors.Is(err, admission.ErrBusy):
		b.metrics.FinalizeFailures.WithLabelValues("busy").Inc()
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if chatID == 0 || text == "" {
		return
	}
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if id == "" {
		return
	}
	if err := b.tgService.AnswerCallback(id, text); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback")
	}
}
