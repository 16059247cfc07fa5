package bot

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var errDispatcherStopped = errors.New("dispatcher stopped")

// dispatcher раскладывает апдейты по шардам по user id: апдейты одного
// пользователя обрабатываются строго по очереди, разных - параллельно.
type dispatcher struct {
	mu      sync.RWMutex
	closed  bool
	started bool
	shards  []chan tgbotapi.Update
	wg      sync.WaitGroup
	handle  func(context.Context, tgbotapi.Update)
	depth   prometheus.Gauge
}

func newDispatcher(workers, queueSize int, handle func(context.Context, tgbotapi.Update)) *dispatcher {
	if workers <= 0 {
		workers = 1
	}
	shards := make([]chan tgbotapi.Update, workers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, queueSize)
	}
	return &dispatcher{shards: shards, handle: handle}
}

func (d *dispatcher) start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for _, ch := range d.shards {
		d.wg.Add(1)
		go func(ch chan tgbotapi.Update) {
			defer d.wg.Done()
			for update := range ch {
				if d.depth != nil {
					d.depth.Dec()
				}
				d.handle(ctx, update)
			}
		}(ch)
	}
}

// submit блокируется, пока шард переполнен, ctx ограничивает ожидание.
func (d *dispatcher) submit(ctx context.Context, update tgbotapi.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errDispatcherStopped
	}

	ch := d.shards[shardIndex(updateUserID(update), len(d.shards))]
	select {
	case ch <- update:
		if d.depth != nil {
			d.depth.Inc()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop закрывает очереди и ждёт, пока обработчики их дочитают.
func (d *dispatcher) stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func shardIndex(userID int64, n int) int {
	if n <= 1 {
		return 0
	}
	return int(uint64(userID) % uint64(n))
}

func updateUserID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID
	}
	return 0
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}
