package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_NAME", "ENV", "LOG_LEVEL", "LOG_PRETTY", "DATABASE_URL",
		"RABBITMQ_URL", "RABBITMQ_EVENTS_QUEUE",
		"EVENT_PROCESSOR_WORKER_POOL_SIZE", "EVENT_CONSUMER_WORKER_POOL_SIZE",
		"EVENT_QUEUE_CAPACITY_FACTOR", "DEPENDENCY_POLL_TIMEOUT_SECONDS",
		"EVENT_TABLE_POLLER_INTERVAL_MS", "REVISIBILITY_DELAY_SECONDS",
		"MAX_RETRY_COUNT", "OPS_ADDR", "SHUTDOWN_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qdic-assets", cfg.AppName)
	assert.Equal(t, "app.public.events", cfg.RabbitMQEventsQueue)
	assert.Equal(t, 1000, cfg.ProcessorWorkers)
	assert.Equal(t, 1, cfg.ConsumerWorkers)
	assert.Equal(t, 5, cfg.QueueCapacityFactor)
	assert.Equal(t, 120*time.Second, cfg.DependencyPollTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 20*time.Second, cfg.RevisibilityDelay)
	assert.Equal(t, 4, cfg.MaxRetryCount)
	assert.Equal(t, ":9090", cfg.OpsAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("EVENT_PROCESSOR_WORKER_POOL_SIZE", "8")
	t.Setenv("EVENT_CONSUMER_WORKER_POOL_SIZE", "2")
	t.Setenv("DEPENDENCY_POLL_TIMEOUT_SECONDS", "5")
	t.Setenv("EVENT_TABLE_POLLER_INTERVAL_MS", "10")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.ProcessorWorkers)
	assert.Equal(t, 2, cfg.ConsumerWorkers)
	assert.Equal(t, 5*time.Second, cfg.DependencyPollTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.PollInterval)
	assert.True(t, cfg.LogPretty)
}

func TestLoad_RejectsNonPositivePools(t *testing.T) {
	t.Setenv("EVENT_PROCESSOR_WORKER_POOL_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENT_PROCESSOR_WORKER_POOL_SIZE")
}

func TestLoad_MalformedIntFallsBack(t *testing.T) {
	t.Setenv("MAX_RETRY_COUNT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxRetryCount)
}
