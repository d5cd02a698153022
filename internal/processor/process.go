package processor

import (
	"context"
	"errors"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/dependency"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
)

// Process runs the full lifecycle for one event: enter executing, check
// duplicates, wait for the operation's dependency prefix, dispatch the
// handler and record the terminal status. Failures at any step share a
// single retry budget.
func (p *Pool) Process(ctx context.Context, ec *eventmodel.Context) {
	ev := &ec.Event
	start := p.clk.Now()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error().
				Interface("panic", r).
				Str("event_id", ev.ID).
				Str("event_type", string(ev.EventType)).
				Msg("Handler panicked")
			p.retryOrGiveUp(ctx, ec)
		}
	}()

	if err := p.updateStatus(ctx, ec, eventmodel.EventStatusExecuting, true); err != nil {
		p.logProcessingError(ev, err)
		p.retryOrGiveUp(ctx, ec)
		return
	}

	duplicates, err := p.events.Duplicates(ctx, *ev)
	if err != nil {
		p.logProcessingError(ev, err)
		p.retryOrGiveUp(ctx, ec)
		return
	}
	if len(duplicates) > 0 {
		if err := p.updateStatus(ctx, ec, eventmodel.EventStatusSkipped, false); err != nil {
			p.logProcessingError(ev, err)
			p.retryOrGiveUp(ctx, ec)
			return
		}
		p.log.Info().
			Str("event_id", ev.ID).
			Str("event_type", string(ev.EventType)).
			Int("duplicates", len(duplicates)).
			Msg("Newer duplicate exists, skipping")
		p.met.ObserveProcessed(string(eventmodel.EventStatusSkipped), p.clk.Now().Sub(start).Seconds())
		return
	}

	actualDeps := dependency.Of(ev.Operation)
	if len(actualDeps) > 0 {
		resolved, err := p.waitForDependencies(ctx, *ev, actualDeps)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Shutdown mid-wait: the store still says executing; the
				// CDC stream re-surfaces the row once it flips pending.
				return
			}
			p.logProcessingError(ev, err)
			p.retryOrGiveUp(ctx, ec)
			return
		}
		if !resolved {
			p.log.Warn().
				Str("event_id", ev.ID).
				Str("operation", string(ev.Operation)).
				Int("retry_count", ev.RetryCount).
				Msg("Dependency poll timed out")
			p.retryOrGiveUp(ctx, ec)
			return
		}
	}

	ev.IsDependencyResolved = true
	if err := p.updateStatus(ctx, ec, eventmodel.EventStatusExecuting, true); err != nil {
		p.logProcessingError(ev, err)
		p.retryOrGiveUp(ctx, ec)
		return
	}

	if err := p.dispatcher.Dispatch(ctx, *ev); err != nil {
		p.logProcessingError(ev, err)
		p.retryOrGiveUp(ctx, ec)
		return
	}

	if err := p.updateStatus(ctx, ec, eventmodel.EventStatusCompleted, false); err != nil {
		p.logProcessingError(ev, err)
		p.retryOrGiveUp(ctx, ec)
		return
	}
	p.met.ObserveProcessed(string(eventmodel.EventStatusCompleted), p.clk.Now().Sub(start).Seconds())
}

// waitForDependencies polls the store until every event type in the
// dependency prefix is terminal or the poll timeout elapses. It returns
// false on timeout, and an error only for store failures or
// cancellation.
func (p *Pool) waitForDependencies(ctx context.Context, ev eventmodel.Event, actualDeps []eventmodel.EventType) (bool, error) {
	start := p.clk.Now()
	for {
		dbEvents, err := p.events.Dependents(ctx, ev)
		if err != nil {
			return false, err
		}
		if dependency.AllDependenciesCompleted(ev, actualDeps, dbEvents) {
			p.met.ObserveDependencyWait(p.clk.Now().Sub(start).Seconds())
			return true, nil
		}

		elapsed := p.clk.Now().Sub(start)
		if elapsed > p.cfg.DependencyPollTimeout {
			p.met.ObserveDependencyWait(elapsed.Seconds())
			return false, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-p.clk.After(p.cfg.PollInterval):
		}
	}
}

// retryOrGiveUp is the shared escape hatch for dependency timeouts and
// handler failures. While the retry budget lasts, the row is flipped
// back to pending and the context re-offered to the queue after the
// revisibility delay. Past the budget the event is marked completed, not
// failed, so events gating on it do not deadlock.
func (p *Pool) retryOrGiveUp(ctx context.Context, ec *eventmodel.Context) {
	ev := &ec.Event
	ev.RetryCount++

	if ev.RetryCount <= p.cfg.MaxRetryCount {
		if err := p.events.UpdateStatusAndTimes(ctx, ev.ID, eventmodel.EventStatusPending, nil, nil); err != nil {
			p.log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to flip event back to pending")
		}
		p.met.ObserveRetry()

		select {
		case <-ctx.Done():
			return
		case <-p.clk.After(p.cfg.RevisibilityDelay):
		}

		if err := p.Add(ctx, ec); err != nil {
			p.log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to requeue event")
			return
		}
		p.log.Debug().
			Str("event_id", ev.ID).
			Int("retry_count", ev.RetryCount).
			Msg("Event requeued")
		return
	}

	if err := p.updateStatus(ctx, ec, eventmodel.EventStatusCompleted, false); err != nil {
		p.log.Error().Err(err).Str("event_id", ev.ID).Msg("Failed to persist give-up status")
	}
	p.met.ObserveGiveUp()
	p.log.Error().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.EventType)).
		Str("operation", string(ev.Operation)).
		Int("retry_count", ev.RetryCount).
		Msg("Retry budget exhausted, marking completed to unblock dependents")
}

// updateStatus persists a status transition with its timing columns.
//
// Phase A (logOnlyWaitTime true) records how long the event sat between
// creation and pickup; a wait_time already held in memory is kept so
// replaying the phase never stretches it. Phase B closes the books:
// wait_time is taken from memory, then the store, then recomputed as a
// last resort, and completed_in_seconds is the remainder of the elapsed
// wall clock.
func (p *Pool) updateStatus(ctx context.Context, ec *eventmodel.Context, status eventmodel.EventStatus, logOnlyWaitTime bool) error {
	ev := &ec.Event
	now := p.clk.Now()
	createdAt := clock.EnsureAwareUTC(ev.CreatedAt)

	if logOnlyWaitTime {
		if ev.WaitTime == nil {
			w := clampSeconds(now.Sub(createdAt).Seconds())
			ev.WaitTime = &w
		}
		ev.Status = status
		return p.events.UpdateStatusAndTimes(ctx, ev.ID, status, ev.WaitTime, nil)
	}

	waitTime := ev.WaitTime
	if waitTime == nil {
		stored, err := p.events.WaitTime(ctx, ev.ID)
		if err != nil {
			return err
		}
		waitTime = stored
	}
	if waitTime == nil {
		// Consumer restarted between phases; recompute best-effort.
		w := clampSeconds(now.Sub(createdAt).Seconds())
		waitTime = &w
	}
	ev.WaitTime = waitTime

	completed := clampSeconds(now.Sub(createdAt).Seconds()) - *waitTime
	if completed < 0 {
		completed = 0
	}
	ev.CompletedInSeconds = &completed
	ev.Status = status
	if status.IsTerminal() {
		t := now
		ev.ProcessedAt = &t
	}

	return p.events.UpdateStatusAndTimes(ctx, ev.ID, status, ev.WaitTime, ev.CompletedInSeconds)
}

func (p *Pool) logProcessingError(ev *eventmodel.Event, err error) {
	p.log.Error().
		Err(err).
		Str("event_id", ev.ID).
		Str("event_type", string(ev.EventType)).
		Str("operation", string(ev.Operation)).
		Int("retry_count", ev.RetryCount).
		Msg("Error processing event")
}

func clampSeconds(s float64) int {
	if s < 0 {
		return 0
	}
	return int(s)
}
