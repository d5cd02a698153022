// Package broker drains the CDC stream queue and feeds decoded events to
// the processor. It holds the reconnect responsibility itself: the amqp
// client surfaces connection loss by closing the delivery channel, and
// each consumer worker dials again after a fixed backoff.
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
	"github.com/jtejido-quollio/qdic-assets/internal/metrics"
	"github.com/jtejido-quollio/qdic-assets/internal/wire"
)

// Enqueuer is the handoff point into the processor; Add blocks while the
// bounded queue is full, which is how backpressure reaches the broker
// through prefetch=1.
type Enqueuer interface {
	Add(ctx context.Context, ec *eventmodel.Context) error
}

// Config holds the consumer pool's connection parameters.
type Config struct {
	URL            string
	Queue          string
	Workers        int
	ReconnectDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	return c
}

// ConsumerPool maintains the consumer workers, one channel each with
// prefetch 1 and manual acks against the durable stream queue.
type ConsumerPool struct {
	cfg     Config
	pool    Enqueuer
	clk     clock.Clock
	log     zerolog.Logger
	met     *metrics.Metrics
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
	mu      sync.Mutex
}

// NewConsumerPool creates a consumer pool feeding the given enqueuer.
func NewConsumerPool(cfg Config, pool Enqueuer, clk clock.Clock) *ConsumerPool {
	return &ConsumerPool{
		cfg:  cfg.withDefaults(),
		pool: pool,
		clk:  clk,
		log:  zerolog.Nop(),
	}
}

// SetLogger sets the logger for the consumer pool.
func (c *ConsumerPool) SetLogger(log zerolog.Logger) {
	c.log = log.With().Str("component", "event_consumer").Logger()
}

// SetMetrics attaches Prometheus instrumentation.
func (c *ConsumerPool) SetMetrics(m *metrics.Metrics) {
	c.met = m
}

// Start launches the consumer workers. Calling Start on a running pool
// is a no-op.
func (c *ConsumerPool) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started && !c.stopped {
		c.log.Warn().Msg("Consumer pool already started, ignoring")
		return
	}
	c.started = true
	c.stopped = false

	ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.consumerWorker(ctx, i)
	}
	c.log.Info().Int("workers", c.cfg.Workers).Str("queue", c.cfg.Queue).Msg("Consumer pool started")
}

// Stop cancels the workers and waits for them to close their
// connections.
func (c *ConsumerPool) Stop() {
	c.mu.Lock()
	if c.stopped || !c.started {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.started = false
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	c.log.Info().Msg("Consumer pool stopped")
}

func (c *ConsumerPool) consumerWorker(ctx context.Context, id int) {
	defer c.wg.Done()
	log := c.log.With().Int("consumer_id", id).Logger()

	for {
		if ctx.Err() != nil {
			return
		}
		err := c.consumeOnce(ctx, log)
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Dur("reconnect_delay", c.cfg.ReconnectDelay).Msg("Consumer disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-c.clk.After(c.cfg.ReconnectDelay):
		}
	}
}

// consumeOnce holds one connection for its lifetime: dial, declare,
// consume, and range over deliveries until the channel closes or the
// pool shuts down.
func (c *ConsumerPool) consumeOnce(ctx context.Context, log zerolog.Logger) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("broker: dial: %w", err)
	}
	defer conn.Close()

	// Closing the connection on cancellation unblocks the delivery range
	// below; the watcher itself exits when this attempt ends.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watcherDone:
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: open channel: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("broker: set qos: %w", err)
	}

	if _, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-queue-type": "stream"},
	); err != nil {
		return fmt.Errorf("broker: declare queue %s: %w", c.cfg.Queue, err)
	}

	tag := "eventcore-" + uuid.NewString()
	deliveries, err := ch.Consume(
		c.cfg.Queue,
		tag,
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("broker: consume: %w", err)
	}
	log.Info().Msg("Consumer started")

	for d := range deliveries {
		c.handleDelivery(ctx, log, d)
	}
	return fmt.Errorf("broker: delivery channel closed")
}

// handleDelivery applies the consumer contract: decode, drop non-pending
// rows, hand pending ones to the processor, and always ack so a poison
// message cannot loop. The events table stays authoritative either way.
func (c *ConsumerPool) handleDelivery(ctx context.Context, log zerolog.Logger, d amqp.Delivery) {
	ec, enqueue, err := DecodeDelivery(d.Body, c.clk)
	if err != nil {
		log.Error().Err(err).Msg("Failed to decode CDC message")
		c.met.ObserveMessage("decode_error")
		c.ack(log, d)
		return
	}
	if !enqueue {
		c.met.ObserveMessage("dropped")
		c.ack(log, d)
		return
	}

	if err := c.pool.Add(ctx, ec); err != nil {
		// Shutdown raced the offer; the row is still pending in the
		// store and the stream re-surfaces it on restart.
		log.Warn().Err(err).Str("event_id", ec.Event.ID).Msg("Failed to enqueue event")
		c.ack(log, d)
		return
	}
	c.met.ObserveMessage("enqueued")
	c.ack(log, d)
}

func (c *ConsumerPool) ack(log zerolog.Logger, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("Failed to ack delivery")
	}
}

// DecodeDelivery turns a raw CDC message into a processor-ready event
// context. The second return is false when the message should be
// acknowledged and dropped: the after-row status is anything but
// pending.
func DecodeDelivery(body []byte, clk clock.Clock) (*eventmodel.Context, bool, error) {
	env, err := wire.ParseEnvelope(body)
	if err != nil {
		return nil, false, err
	}
	if env.Status() != string(eventmodel.EventStatusPending) {
		return nil, false, nil
	}
	ec, err := wire.Decode(env, clk)
	if err != nil {
		return nil, false, err
	}
	return ec, true, nil
}
