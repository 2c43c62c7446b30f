package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"race-kart/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrPoolClosed is returned when a channel is requested from a closed pool.
var ErrPoolClosed = errors.New("channel pool closed")

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	IsClosed() bool
	Close() error
}

// ChannelPool hands out up to size AMQP channels on one connection. Each
// channel is in confirm mode with the target queue declared. A channel the
// broker closed is replaced on its next checkout, so the pool never shrinks.
type ChannelPool struct {
	conn      *amqp.Connection
	open      func() (Channel, error)
	slots     chan struct{}
	idle      chan Channel
	done      chan struct{}
	mu        sync.Mutex
	closed    bool
	queueName string
	logger    zerolog.Logger
}

// NewChannelPool dials RabbitMQ and pre-creates size channels.
func NewChannelPool(url, queueName string, size int, logger zerolog.Logger) (*ChannelPool, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pool, err := newChannelPool(func() (Channel, error) {
		return openChannel(conn, queueName)
	}, queueName, size, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	pool.conn = conn

	return pool, nil
}

func newChannelPool(open func() (Channel, error), queueName string, size int, logger zerolog.Logger) (*ChannelPool, error) {
	pool := &ChannelPool{
		open:      open,
		slots:     make(chan struct{}, size),
		idle:      make(chan Channel, size),
		done:      make(chan struct{}),
		queueName: queueName,
		logger:    logger.With().Str("component", "rabbitmq-pool").Logger(),
	}

	for i := 0; i < size; i++ {
		ch, err := open()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.idle <- ch
	}

	pool.logger.Info().Int("size", size).Str("queue", queueName).Msg("RabbitMQ channel pool created")

	return pool, nil
}

// openChannel opens a channel in confirm mode and declares the durable queue.
func openChannel(conn *amqp.Connection, queueName string) (Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return ch, nil
}

// Get waits for a free slot and returns an open channel for it. Idle
// channels the broker closed are replaced.
func (p *ChannelPool) Get(ctx context.Context) (Channel, error) {
	select {
	case <-p.done:
		return nil, ErrPoolClosed
	default:
	}

	select {
	case p.slots <- struct{}{}:
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ch := <-p.idle:
		if !ch.IsClosed() {
			return ch, nil
		}
		p.logger.Debug().Msg("replacing channel closed by the broker")
	default:
	}

	ch, err := p.open()
	if err != nil {
		<-p.slots
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return ch, nil
}

// Put returns a channel taken with Get and frees its slot. Closed channels
// are dropped; the slot opens a new channel on a later Get.
func (p *ChannelPool) Put(ch Channel) {
	defer func() { <-p.slots }()

	if ch == nil || ch.IsClosed() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch.Close()
		return
	}

	select {
	case p.idle <- ch:
	default:
		ch.Close()
	}
}

// Close closes the idle channels and the connection. Channels still checked
// out are closed when they are returned.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.done)

	for drained := false; !drained; {
		select {
		case ch := <-p.idle:
			ch.Close()
		default:
			drained = true
		}
	}
	if p.conn != nil {
		p.conn.Close()
	}

	p.logger.Info().Msg("RabbitMQ channel pool closed")
}

// rabbitPublisher publishes persistent JSON messages to one queue with
// publisher confirms.
type rabbitPublisher struct {
	pool    *ChannelPool
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRabbitPublisher creates a publisher on top of pool.
func NewRabbitPublisher(pool *ChannelPool, timeout time.Duration, logger zerolog.Logger) Publisher {
	return &rabbitPublisher{
		pool:    pool,
		timeout: timeout,
		logger:  logger.With().Str("component", "rabbitmq-publisher").Logger(),
	}
}

// PublishOrderPlaced publishes the event to the pool's queue and waits for
// the broker to confirm it.
func (p *rabbitPublisher) PublishOrderPlaced(ctx context.Context, event model.OrderPlacedEvent) error {
	msg, err := newPublishing(OrderPlacedType, event.OrderID, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ch, err := p.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get channel from pool: %w", err)
	}
	defer p.pool.Put(ch)

	confirmation, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",               // exchange
		p.pool.queueName, // routing key (queue name)
		false,            // mandatory
		false,            // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", OrderPlacedType, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm %s: %w", OrderPlacedType, err)
	}
	if !acked {
		return fmt.Errorf("broker rejected %s for order %s", OrderPlacedType, event.OrderID)
	}

	p.logger.Debug().
		Str("order_id", event.OrderID).
		Str("queue", p.pool.queueName).
		Msg("order placed event published")

	return nil
}

// Close releases the channel pool.
func (p *rabbitPublisher) Close() error {
	p.pool.Close()
	return nil
}

func newPublishing(eventType, messageID string, data any) (amqp.Publishing, error) {
	body, err := encode(eventType, data)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         eventType,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
