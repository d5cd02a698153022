// Package processor owns the in-process half of the event pipeline: a
// bounded queue, a pool of workers draining it, and the per-event state
// machine that resolves dependencies and applies side effects.
package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
	"github.com/jtejido-quollio/qdic-assets/internal/eventstore"
	"github.com/jtejido-quollio/qdic-assets/internal/metrics"
)

// Dispatcher routes a dependency-resolved event to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev eventmodel.Event) error
}

// Config holds the pool's tunables. Zero values resolve to the
// production defaults.
type Config struct {
	Workers               int
	QueueCapacityFactor   int
	DependencyPollTimeout time.Duration
	PollInterval          time.Duration
	RevisibilityDelay     time.Duration
	MaxRetryCount         int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1000
	}
	if c.QueueCapacityFactor <= 0 {
		c.QueueCapacityFactor = 5
	}
	if c.DependencyPollTimeout <= 0 {
		c.DependencyPollTimeout = 120 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.RevisibilityDelay <= 0 {
		c.RevisibilityDelay = 20 * time.Second
	}
	if c.MaxRetryCount <= 0 {
		c.MaxRetryCount = 4
	}
	return c
}

// poisonPill is the distinguished sentinel a worker interprets as "drain
// no further". It is a dedicated allocation so it can never collide with
// a real context, including a nil one.
var poisonPill = &eventmodel.Context{}

// Pool manages workers that process events from the bounded queue.
type Pool struct {
	cfg        Config
	events     eventstore.Store
	dispatcher Dispatcher
	clk        clock.Clock
	queue      chan *eventmodel.Context
	wg         sync.WaitGroup
	running    atomic.Bool
	log        zerolog.Logger
	met        *metrics.Metrics
	stopped    bool
	started    bool
	mu         sync.Mutex
}

// New creates a processor pool. The queue capacity is Workers times
// QueueCapacityFactor; producers block when it fills, which is the
// system's backpressure point.
func New(events eventstore.Store, dispatcher Dispatcher, clk clock.Clock, cfg Config) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:        cfg,
		events:     events,
		dispatcher: dispatcher,
		clk:        clk,
		queue:      make(chan *eventmodel.Context, cfg.Workers*cfg.QueueCapacityFactor),
		log:        zerolog.Nop(),
	}
}

// SetLogger sets the logger for the pool.
func (p *Pool) SetLogger(log zerolog.Logger) {
	p.log = log.With().Str("component", "event_processor").Logger()
}

// SetMetrics attaches Prometheus instrumentation.
func (p *Pool) SetMetrics(m *metrics.Metrics) {
	p.met = m
}

// Start launches the worker goroutines. Calling Start on a running pool
// is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started && !p.stopped {
		p.log.Warn().Msg("Processor pool already started, ignoring")
		return
	}

	p.stopped = false
	p.started = true
	p.running.Store(true)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.log.Info().Int("workers", p.cfg.Workers).Int("queue_capacity", cap(p.queue)).Msg("Processor pool started")
}

// Stop flips the running flag, pushes one poison pill per worker and
// waits for all of them to exit. In-flight events finish their current
// cooperative step first.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped || !p.started {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.started = false
	p.mu.Unlock()

	p.running.Store(false)
	for i := 0; i < p.cfg.Workers; i++ {
		p.queue <- poisonPill
	}
	p.wg.Wait()
	p.log.Info().Msg("Processor pool stopped")
}

// Add offers an event context to the queue, blocking while it is full.
// Both the broker consumers and the internal requeue path come through
// here.
func (p *Pool) Add(ctx context.Context, ec *eventmodel.Context) error {
	select {
	case p.queue <- ec:
		p.met.ObserveQueueDepth(len(p.queue))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the number of events at rest in the queue.
func (p *Pool) Depth() int {
	return len(p.queue)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.log.Debug().Int("worker_id", id).Msg("Worker started")

	for p.running.Load() {
		select {
		case <-ctx.Done():
			p.log.Debug().Int("worker_id", id).Msg("Worker canceled")
			return
		case ec := <-p.queue:
			if ec == poisonPill {
				p.log.Debug().Int("worker_id", id).Msg("Worker stopped")
				return
			}
			p.met.ObserveQueueDepth(len(p.queue))
			p.Process(ctx, ec)
		}
	}
}
