package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"vyvoz/internal/domain"
	"vyvoz/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultQueueKey      = "sheets:queue"
	defaultDeadLetterKey = "sheets:deadletter"
)

// SyncTask задача зеркалирования заказа в таблицу.
type SyncTask struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	OrderID   string        `json:"order_id"`
	Order     *models.Order `json:"order,omitempty"`
	Status    string        `json:"status,omitempty"`
	Attempt   int           `json:"attempt"`
	LastError string        `json:"last_error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SheetsWorker применяет задачи к Google Sheets. Очередь в Redis, если он
// подключён, иначе канал в памяти.
type SheetsWorker struct {
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan SyncTask
	redisQueueKey string
	deadLetterKey string
	logger        *zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func NewSheetsWorker(sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, queueSize int, logger *zerolog.Logger) *SheetsWorker {
	if queueSize <= 0 {
		queueSize = models.WorkerQueueSize
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SheetsWorker{
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan SyncTask, queueSize),
		redisQueueKey: defaultQueueKey,
		deadLetterKey: defaultDeadLetterKey,
		logger:        logger,
		timers:        make(map[string]*time.Timer),
	}
}

// EnqueueTask ставит задачу в очередь.
func (w *SheetsWorker) EnqueueTask(ctx context.Context, taskType string, order *models.Order) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if order == nil || order.ID == "" {
		return errors.New("order id is required")
	}

	snapshot := order.WithStatus(order.Status, order.RecordedAt)
	task := SyncTask{
		ID:        uuid.NewString(),
		Type:      taskType,
		OrderID:   order.ID,
		Order:     &snapshot,
		Status:    order.Status,
		CreatedAt: time.Now(),
	}
	return w.push(ctx, task)
}

func (w *SheetsWorker) push(ctx context.Context, task SyncTask) error {
	if w.redis != nil {
		err := w.pushRedis(ctx, w.redisQueueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("task_id", task.ID).Msg("redis push failed, fallback to memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return fmt.Errorf("sheets queue is full, task %s for order %s dropped", task.Type, task.OrderID)
	}
}

// Start обрабатывает задачи до отмены ctx.
func (w *SheetsWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Sheets worker started")
	defer w.logger.Info().Msg("Sheets worker stopped")
	defer w.stopTimers()

	for {
		if ctx.Err() != nil {
			return
		}

		if w.redis == nil {
			select {
			case <-ctx.Done():
				return
			case task := <-w.queue:
				w.processTask(ctx, &task)
			}
			continue
		}

		if task, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &task)
			continue
		}
		if task, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &task)
		}
	}
}

func (w *SheetsWorker) tryLocalQueue() (SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return SyncTask{}, false
	}
}

func (w *SheetsWorker) tryRedis(ctx context.Context) (SyncTask, bool) {
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
			// не крутим цикл вхолостую, пока Redis недоступен
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
		return SyncTask{}, false
	}
	if len(res) != 2 {
		return SyncTask{}, false
	}
	var task SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return SyncTask{}, false
	}
	return task, true
}

func (w *SheetsWorker) processTask(ctx context.Context, task *SyncTask) {
	if err := w.handleTask(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.logger.Debug().Str("order_id", task.OrderID).Str("task", task.Type).Msg("Order synced to sheets")
}

func (w *SheetsWorker) handleTask(ctx context.Context, task *SyncTask) error {
	if w.sheets == nil {
		return errors.New("sheets client is not configured")
	}
	switch task.Type {
	case models.SyncTaskUpsert:
		if task.Order == nil {
			return errors.New("order payload missing")
		}
		return w.sheets.UpsertOrder(ctx, task.Order)
	case models.SyncTaskUpdateStatus:
		if task.OrderID == "" || task.Status == "" {
			return errors.New("order id or status missing")
		}
		return w.sheets.UpdateOrderStatus(ctx, task.OrderID, task.Status)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *SheetsWorker) retryOrFail(ctx context.Context, task *SyncTask, cause error) {
	task.Attempt++
	task.LastError = cause.Error()

	if task.Attempt >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Str("order_id", task.OrderID).Str("task", task.Type).Int("attempt", task.Attempt).Msg("sheets task failed permanently")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).Str("order_id", task.OrderID).Dur("delay", delay).Int("attempt", task.Attempt).Msg("sheets task will be retried")
	w.schedule(*task, delay)
}

// schedule возвращает задачу в очередь после задержки.
func (w *SheetsWorker) schedule(task SyncTask, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.timers[task.ID] = time.AfterFunc(delay, func() {
		w.mu.Lock()
		delete(w.timers, task.ID)
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.push(ctx, task); err != nil {
			w.logger.Error().Err(err).Str("order_id", task.OrderID).Msg("requeue sheets task")
		}
	})
}

func (w *SheetsWorker) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
}

func (w *SheetsWorker) pendingRetries() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

func (w *SheetsWorker) pushRedis(ctx context.Context, key string, task SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *SheetsWorker) pushDeadLetter(ctx context.Context, task *SyncTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("deadletter push failed")
	}
}
