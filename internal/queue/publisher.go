package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"vyvoz/internal/events"
	"vyvoz/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// channel часть *amqp.Channel, которой пользуется Publisher.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func() (channel, func() error, error)

// Publisher отправляет события заказов в durable-очередь RabbitMQ.
type Publisher struct {
	queue  string
	dial   dialFunc
	logger *zerolog.Logger

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

func NewPublisher(url, queue string, logger *zerolog.Logger) (*Publisher, error) {
	dial := func() (channel, func() error, error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		return ch, conn.Close, nil
	}
	return newPublisher(queue, dial, logger)
}

func newPublisher(queue string, dial dialFunc, logger *zerolog.Logger) (*Publisher, error) {
	p := &Publisher{queue: queue, dial: dial, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connect() error {
	ch, closeConn, err := p.dial()
	if err != nil {
		return err
	}
	p.ch = ch
	p.closeConn = closeConn
	return nil
}

// Publish отправляет готовый JSON. При закрытом соединении делает одну
// попытку переподключиться.
func (p *Publisher) Publish(ctx context.Context, eventType string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         eventType,
		Body:         body,
	}

	err := p.publishLocked(ctx, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.logger.Warn().Err(err).Msg("rabbitmq channel closed, reconnecting")
		p.closeLocked()
		if err = p.connect(); err == nil {
			err = p.publishLocked(ctx, msg)
		}
	}
	metrics.IncBroker(eventType, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, msg amqp.Publishing) error {
	if p.ch == nil {
		return amqp.ErrClosed
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
}

// Handle подписчик шины событий.
func (p *Publisher) Handle(ev *events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.Publish(ctx, ev.Type, ev.Payload)
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.closeConn != nil {
		_ = p.closeConn()
		p.closeConn = nil
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}
