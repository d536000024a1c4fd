package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"therapyhub/internal/domain"
)

// Topology defaults.
const (
	DefaultExchange = "therapyhub.events"
	DefaultQueue    = "therapyhub.notifications"
	bindingKey      = "registration.#"
)

// Config holds the RabbitMQ connection settings.
type Config struct {
	URL      string
	Exchange string
	Queue    string
	// Prefetch limits unacknowledged deliveries per consumer. Zero means 10.
	Prefetch int
}

// channel is the part of *amqp.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

// dialFunc opens a fresh connection and a channel on it.
type dialFunc func() (channel, io.Closer, error)

// Reconnect backoff bounds for the consumer.
const (
	minRedialDelay = time.Second
	maxRedialDelay = 30 * time.Second
)

// Client publishes and consumes registration events on a durable topic exchange. When the
// broker closes the channel the next operation dials again and redeclares the topology.
type Client struct {
	mu       sync.Mutex
	conn     io.Closer
	ch       channel
	dial     dialFunc
	closed   bool
	exchange string
	queue    string
	prefetch int
	logger   *slog.Logger
	now      func() time.Time
	// redialDelay is the first consumer reconnect backoff.
	redialDelay time.Duration
}

// Dial connects to RabbitMQ and declares the exchange, queue and binding.
func Dial(cfg Config, logger *slog.Logger) (*Client, error) {
	dial := func() (channel, io.Closer, error) {
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("open rabbitmq channel: %w", err)
		}
		return ch, conn, nil
	}
	ch, conn, err := dial()
	if err != nil {
		return nil, err
	}
	c, err := newClient(ch, cfg, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c.conn = conn
	c.dial = dial
	return c, nil
}

func newClient(ch channel, cfg Config, logger *slog.Logger) (*Client, error) {
	c := &Client{
		ch:       ch,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		logger:   logger,
		now:      time.Now,

		redialDelay: minRedialDelay,
	}
	if c.exchange == "" {
		c.exchange = DefaultExchange
	}
	if c.queue == "" {
		c.queue = DefaultQueue
	}
	if c.prefetch <= 0 {
		c.prefetch = 10
	}
	if err := c.declare(ch); err != nil {
		return nil, err
	}
	logger.Info("rabbitmq initialized", "exchange", c.exchange, "queue", c.queue)
	return c, nil
}

func (c *Client) declare(ch channel) error {
	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.exchange, err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.queue, err)
	}
	if err := ch.QueueBind(c.queue, bindingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", c.queue, err)
	}
	return nil
}

// channelLocked returns an open channel, dialing again when the broker closed the current
// one. c.mu must be held.
func (c *Client) channelLocked() (channel, error) {
	if c.closed {
		return nil, errors.New("rabbitmq client is closed")
	}
	if c.ch != nil && !c.ch.IsClosed() {
		return c.ch, nil
	}
	if c.dial == nil {
		return nil, amqp.ErrClosed
	}
	c.releaseLocked()
	ch, conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("reconnect to rabbitmq: %w", err)
	}
	if err := c.declare(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	c.ch, c.conn = ch, conn
	c.logger.Info("rabbitmq reconnected", "exchange", c.exchange, "queue", c.queue)
	return ch, nil
}

func (c *Client) releaseLocked() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close closes the channel and the connection. The client does not reconnect afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.releaseLocked()
	c.logger.Info("rabbitmq connection closed")
}

// PingContext reports whether the broker is reachable, reconnecting if needed. It lets the
// health check cover the broker.
func (c *Client) PingContext(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.channelLocked()
	return err
}

// Publish sends event to the exchange routed by its type. It implements domain.EventPublisher.
func (c *Client) Publish(ctx context.Context, event *domain.RegistrationEvent) error {
	if event == nil {
		return errors.New("publish registration event: event is nil")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal registration event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.RegistrationID,
		Type:         event.Type,
		Timestamp:    c.now(),
		Body:         body,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// The second attempt covers a channel the broker closed after the IsClosed check.
	for attempt := 0; ; attempt++ {
		ch, err := c.channelLocked()
		if err != nil {
			return fmt.Errorf("publish registration event: %w", err)
		}
		err = ch.PublishWithContext(ctx, c.exchange, event.Type, false, false, msg)
		if err == nil {
			break
		}
		if attempt > 0 || !errors.Is(err, amqp.ErrClosed) {
			return fmt.Errorf("publish registration event: %w", err)
		}
	}
	c.logger.DebugContext(ctx, "registration event published", "type", event.Type, "registration_id", event.RegistrationID)
	return nil
}

// Consume delivers queued events to handler until ctx is cancelled. Successful deliveries
// are acked. A failed delivery is requeued once and dropped on its second failure;
// undecodable messages are dropped immediately. When the broker closes the delivery channel
// the client reconnects with backoff; without a dialer it returns an error instead.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *domain.RegistrationEvent) error) error {
	delay := c.redialDelay
	for {
		ch, deliveries, err := c.subscribe()
		if err == nil {
			delay = c.redialDelay
			c.logger.InfoContext(ctx, "consuming registration events", "queue", c.queue)
			if c.drain(ctx, deliveries, handler) {
				return nil
			}
			c.discard(ch)
			err = errors.New("rabbitmq delivery channel closed")
		}
		if !c.canRedial() {
			return err
		}
		c.logger.WarnContext(ctx, "rabbitmq consumer interrupted, reconnecting", "error", err, "retry_in", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRedialDelay)
	}
}

func (c *Client) subscribe() (channel, <-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, err := c.channelLocked()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, nil, fmt.Errorf("set rabbitmq qos: %w", err)
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("consume queue %s: %w", c.queue, err)
	}
	return ch, deliveries, nil
}

// discard drops ch so the next operation dials again. A consumer cancelled by the broker
// leaves the channel open with its deliveries closed.
func (c *Client) discard(ch channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ch == ch && c.dial != nil {
		c.releaseLocked()
	}
}

func (c *Client) canRedial() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dial != nil && !c.closed
}

// drain handles deliveries until ctx is done (true) or the channel closes (false).
func (c *Client) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler func(context.Context, *domain.RegistrationEvent) error) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			c.handle(ctx, d, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, d amqp.Delivery, handler func(context.Context, *domain.RegistrationEvent) error) {
	var event domain.RegistrationEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.ErrorContext(ctx, "dropping undecodable message", "error", err, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}
	if err := handler(ctx, &event); err != nil {
		requeue := !d.Redelivered
		c.logger.WarnContext(ctx, "failed to process registration event",
			"error", err, "type", event.Type, "registration_id", event.RegistrationID, "requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}

type noopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher returns an EventPublisher that drops events. Used when RABBITMQ_URL is unset.
func NewNoopPublisher(logger *slog.Logger) domain.EventPublisher {
	return &noopPublisher{logger: logger}
}

func (p *noopPublisher) Publish(ctx context.Context, event *domain.RegistrationEvent) error {
	p.logger.DebugContext(ctx, "registration event dropped (noop)", "type", event.Type, "registration_id", event.RegistrationID)
	return nil
}
