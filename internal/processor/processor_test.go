package processor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtejido-quollio/qdic-assets/internal/assetstore"
	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
	"github.com/jtejido-quollio/qdic-assets/internal/eventstore"
	"github.com/jtejido-quollio/qdic-assets/internal/handlers"
	"github.com/jtejido-quollio/qdic-assets/internal/processor"
	"github.com/rs/zerolog"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []eventmodel.Event
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev eventmodel.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ev)
	return f.err
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fastConfig keeps dependency polling and requeue delays in the
// millisecond range so retry cycles complete within a test run.
func fastConfig(workers int) processor.Config {
	return processor.Config{
		Workers:               workers,
		QueueCapacityFactor:   5,
		DependencyPollTimeout: 40 * time.Millisecond,
		PollInterval:          5 * time.Millisecond,
		RevisibilityDelay:     5 * time.Millisecond,
		MaxRetryCount:         1,
	}
}

func seedEvent(store *eventstore.Memory, id string, et eventmodel.EventType, op eventmodel.Operation, body string, createdAt time.Time) eventmodel.Event {
	ev := eventmodel.Event{
		ID:        id,
		EventType: et,
		Operation: op,
		Body:      body,
		Status:    eventmodel.EventStatusPending,
		UserID:    "u-1",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}
	store.Seed(ev)
	return ev
}

func TestProcess_HappyPathNoBlockingDeps(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(1))

	// DeleteAssets is the first element of its own operation's dependency
	// list, so its blocking prefix is empty.
	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", time.Now().UTC().Add(-3*time.Second))

	pool.Process(context.Background(), &eventmodel.Context{Event: ev})

	stored, ok := store.Get("evnt-1")
	require.True(t, ok)
	assert.Equal(t, eventmodel.EventStatusCompleted, stored.Status)
	require.NotNil(t, stored.WaitTime)
	assert.GreaterOrEqual(t, *stored.WaitTime, 0)
	require.NotNil(t, stored.CompletedInSeconds)
	assert.GreaterOrEqual(t, *stored.CompletedInSeconds, 0)
	assert.Equal(t, 1, disp.callCount())
}

func TestProcess_DuplicateSkipped(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(1))

	base := time.Now().UTC().Add(-time.Minute)
	e1 := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", base)
	seedEvent(store, "evnt-2", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", base.Add(time.Second))

	// e1 sees the newer identical e2 and yields to it.
	pool.Process(context.Background(), &eventmodel.Context{Event: e1})

	stored, _ := store.Get("evnt-1")
	assert.Equal(t, eventmodel.EventStatusSkipped, stored.Status)
	assert.Equal(t, 0, disp.callCount())

	// e2 has no newer duplicate and proceeds.
	e2, _ := store.Get("evnt-2")
	pool.Process(context.Background(), &eventmodel.Context{Event: e2})

	stored2, _ := store.Get("evnt-2")
	assert.Equal(t, eventmodel.EventStatusCompleted, stored2.Status)
	assert.Equal(t, 1, disp.callCount())
}

func TestProcess_WaitsForDependencyThenResolves(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	cfg := fastConfig(1)
	cfg.DependencyPollTimeout = 2 * time.Second
	pool := processor.New(store, disp, clock.Real{}, cfg)

	base := time.Now().UTC().Add(-time.Minute)
	// UpdateRules precedes UpdateTags in OpDeleteTagGroup's pipeline.
	seedEvent(store, "evnt-dep", eventmodel.EventTypeUpdateRules, eventmodel.OpDeleteTagGroup, "tag-g", base)
	ev := seedEvent(store, "evnt-main", eventmodel.EventTypeUpdateTags, eventmodel.OpDeleteTagGroup, "tag-g", base.Add(time.Second))

	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.Process(context.Background(), &eventmodel.Context{Event: ev})
	}()

	// The poll loop must hold while the dependency is non-terminal.
	time.Sleep(20 * time.Millisecond)
	stored, _ := store.Get("evnt-main")
	assert.Equal(t, eventmodel.EventStatusExecuting, stored.Status)

	require.NoError(t, store.UpdateStatusAndTimes(context.Background(), "evnt-dep", eventmodel.EventStatusCompleted, nil, nil))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event did not resolve after dependency completed")
	}

	stored, _ = store.Get("evnt-main")
	assert.Equal(t, eventmodel.EventStatusCompleted, stored.Status)
	assert.Equal(t, 1, disp.callCount())
}

func TestProcess_DependencyTimeoutRetriesThenGivesUp(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(2))
	pool.Start(context.Background())
	defer pool.Stop()

	base := time.Now().UTC().Add(-time.Minute)
	// The required UpdateRules dependency never leaves pending.
	seedEvent(store, "evnt-dep", eventmodel.EventTypeUpdateRules, eventmodel.OpDeleteTagGroup, "tag-g", base)
	ev := seedEvent(store, "evnt-main", eventmodel.EventTypeUpdateTags, eventmodel.OpDeleteTagGroup, "tag-g", base.Add(time.Second))

	require.NoError(t, pool.Add(context.Background(), &eventmodel.Context{Event: ev}))

	// One timeout cycle flips the row back to pending, the next exhausts
	// the budget and gives up with completed.
	require.Eventually(t, func() bool {
		stored, _ := store.Get("evnt-main")
		return stored.Status == eventmodel.EventStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, disp.callCount(), "handler must not run when dependencies never resolved")
}

func TestProcess_OptionalDepsAbsentResolveImmediately(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(1))

	// For OpCreateRule the UpdateTags prefix is ApplyRule and
	// ApplyRuleBiData, both optional; with neither in the store the event
	// must not wait.
	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeUpdateTags, eventmodel.OpCreateRule, "rule-1", time.Now().UTC())

	start := time.Now()
	pool.Process(context.Background(), &eventmodel.Context{Event: ev})
	elapsed := time.Since(start)

	stored, _ := store.Get("evnt-1")
	assert.Equal(t, eventmodel.EventStatusCompleted, stored.Status)
	assert.Less(t, elapsed, 30*time.Millisecond)
	assert.Equal(t, 1, disp.callCount())
}

func TestProcess_HandlerErrorRetriesThenGivesUp(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{err: assert.AnError}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(2))
	pool.Start(context.Background())
	defer pool.Stop()

	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", time.Now().UTC())
	require.NoError(t, pool.Add(context.Background(), &eventmodel.Context{Event: ev}))

	require.Eventually(t, func() bool {
		stored, _ := store.Get("evnt-1")
		return stored.Status == eventmodel.EventStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// Initial attempt plus one retry before the give-up.
	assert.Equal(t, 2, disp.callCount())
}

func TestProcess_PresetWaitTimeIsNotRecomputed(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(1))

	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", time.Now().UTC().Add(-time.Hour))
	preset := 7
	ev.WaitTime = &preset

	pool.Process(context.Background(), &eventmodel.Context{Event: ev})

	stored, _ := store.Get("evnt-1")
	require.NotNil(t, stored.WaitTime)
	assert.Equal(t, 7, *stored.WaitTime, "a wait_time carried into phase A must survive replays")
	require.NotNil(t, stored.CompletedInSeconds)
	// elapsed(~1h) minus wait(7s), so roughly 3593 and never negative.
	assert.GreaterOrEqual(t, *stored.CompletedInSeconds, 0)
}

func TestProcess_TimingAccounting(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(1))

	createdAt := time.Now().UTC().Add(-10 * time.Second)
	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", createdAt)

	pool.Process(context.Background(), &eventmodel.Context{Event: ev})

	stored, _ := store.Get("evnt-1")
	require.NotNil(t, stored.WaitTime)
	require.NotNil(t, stored.CompletedInSeconds)
	total := *stored.WaitTime + *stored.CompletedInSeconds
	elapsed := int(time.Since(createdAt).Seconds())
	assert.InDelta(t, elapsed, total, 2, "wait_time + completed_in_seconds must account for the full elapsed time")
}

func TestPool_StartIsIdempotent(t *testing.T) {
	store := eventstore.NewMemory()
	pool := processor.New(store, &fakeDispatcher{}, clock.Real{}, fastConfig(2))

	ctx := context.Background()
	pool.Start(ctx)
	pool.Start(ctx) // second call must not spawn a second set of workers
	pool.Stop()
	pool.Stop() // double stop must not panic or hang
}

func TestPool_DrainsQueueAcrossWorkers(t *testing.T) {
	store := eventstore.NewMemory()
	disp := &fakeDispatcher{}
	pool := processor.New(store, disp, clock.Real{}, fastConfig(4))
	pool.Start(context.Background())
	defer pool.Stop()

	base := time.Now().UTC().Add(-time.Minute)
	for _, id := range []string{"evnt-1", "evnt-2", "evnt-3"} {
		ev := seedEvent(store, id, eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "body-"+id, base)
		require.NoError(t, pool.Add(context.Background(), &eventmodel.Context{Event: ev}))
	}

	require.Eventually(t, func() bool {
		for _, id := range []string{"evnt-1", "evnt-2", "evnt-3"} {
			stored, _ := store.Get(id)
			if !stored.Status.IsTerminal() {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, disp.callCount())
}

func TestAdd_CanceledContext(t *testing.T) {
	store := eventstore.NewMemory()
	cfg := fastConfig(1)
	cfg.QueueCapacityFactor = 1
	pool := processor.New(store, &fakeDispatcher{}, clock.Real{}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	// Fill the queue; the pool is not started so nothing drains it.
	require.NoError(t, pool.Add(ctx, &eventmodel.Context{}))
	cancel()

	err := pool.Add(ctx, &eventmodel.Context{})
	assert.ErrorIs(t, err, context.Canceled)
}

// End-to-end happy path through the real dispatch table and the closure
// table: deleting a root removes its two depth-1 children and the
// depth-2 grandchild along with the root itself.
func TestPool_EndToEndDeleteAssets(t *testing.T) {
	store := eventstore.NewMemory()
	assets := assetstore.NewMemory()
	for _, id := range []string{"schm-a", "tbl-a", "tbl-b", "clmn-a"} {
		assets.SeedAsset(id)
	}
	assets.SeedPath("schm-a", "tbl-a", 1)
	assets.SeedPath("schm-a", "tbl-b", 1)
	assets.SeedPath("schm-a", "clmn-a", 2)

	registry := handlers.NewRegistry(zerolog.Nop())
	handlers.RegisterDefaults(registry, assets)

	pool := processor.New(store, registry, clock.Real{}, fastConfig(2))
	pool.Start(context.Background())
	defer pool.Stop()

	ev := seedEvent(store, "evnt-1", eventmodel.EventTypeDeleteAssets, eventmodel.OpDeleteAssets, "schm-a", time.Now().UTC().Add(-time.Second))
	require.NoError(t, pool.Add(context.Background(), &eventmodel.Context{Event: ev}))

	require.Eventually(t, func() bool {
		stored, _ := store.Get("evnt-1")
		return stored.Status == eventmodel.EventStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	for _, id := range []string{"schm-a", "tbl-a", "tbl-b", "clmn-a"} {
		assert.False(t, assets.Has(id), "asset %s should have been deleted", id)
	}
}
