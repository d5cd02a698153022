// Package runtime ties the consumer pool and the processor pool into one
// start/stop unit with a readiness signal for the ops surface.
package runtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Component is anything the runtime owns the lifecycle of.
type Component interface {
	Start(ctx context.Context)
	Stop()
}

// Runtime starts the processor before the consumers so the queue has
// drains before it has producers, and stops them in the reverse order so
// no consumer offers into a stopped pool.
type Runtime struct {
	processor Component
	consumers Component
	log       zerolog.Logger
	started   bool
	mu        sync.Mutex
}

// New creates a runtime over the two pools.
func New(processor, consumers Component, log zerolog.Logger) *Runtime {
	return &Runtime{
		processor: processor,
		consumers: consumers,
		log:       log.With().Str("component", "events_runtime").Logger(),
	}
}

// Start brings the pipeline up. Idempotent.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.processor.Start(ctx)
	r.consumers.Start(ctx)
	r.started = true
	r.log.Info().Msg("Events runtime started")
}

// Stop tears the pipeline down: consumers first, then the processor
// drains. Idempotent.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	r.mu.Unlock()

	r.consumers.Stop()
	r.processor.Stop()
	r.log.Info().Msg("Events runtime stopped")
}

// Ready reports whether both pools are running, gating /readyz. It flips
// false as soon as shutdown begins so load balancers stop probing a
// draining instance.
func (r *Runtime) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}
