package runtime_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/jtejido-quollio/qdic-assets/internal/runtime"
)

type recordingComponent struct {
	name string
	log  *[]string
}

func (c *recordingComponent) Start(context.Context) { *c.log = append(*c.log, c.name+":start") }
func (c *recordingComponent) Stop()                 { *c.log = append(*c.log, c.name+":stop") }

func TestRuntime_StartStopOrder(t *testing.T) {
	var calls []string
	rt := runtime.New(
		&recordingComponent{name: "processor", log: &calls},
		&recordingComponent{name: "consumers", log: &calls},
		zerolog.Nop(),
	)

	assert.False(t, rt.Ready())

	rt.Start(context.Background())
	assert.True(t, rt.Ready())

	rt.Stop()
	assert.False(t, rt.Ready())

	// Processor comes up before consumers produce into it; consumers go
	// down before the processor drains.
	assert.Equal(t, []string{
		"processor:start",
		"consumers:start",
		"consumers:stop",
		"processor:stop",
	}, calls)
}

func TestRuntime_StartStopIdempotent(t *testing.T) {
	var calls []string
	rt := runtime.New(
		&recordingComponent{name: "processor", log: &calls},
		&recordingComponent{name: "consumers", log: &calls},
		zerolog.Nop(),
	)

	rt.Stop() // before start: no-op
	rt.Start(context.Background())
	rt.Start(context.Background())
	rt.Stop()
	rt.Stop()

	assert.Len(t, calls, 4)
}
