package wire_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtejido-quollio/qdic-assets/internal/clock"
	"github.com/jtejido-quollio/qdic-assets/internal/eventmodel"
	"github.com/jtejido-quollio/qdic-assets/internal/wire"
)

const sampleEnvelope = `{
  "after": {
    "id": "evnt-1",
    "event_type": "DeleteAssets",
    "operation": "OpDeleteAssets",
    "status": "pending",
    "body": "schm-a",
    "user_id": "u-1",
    "created_at": "2025-06-01T10:00:00Z",
    "expires_at": "2025-06-02T10:00:00Z",
    "retry_count": 2,
    "is_authorized": true,
    "is_fast_track": false,
    "wait_time": null,
    "completed_in_seconds": null,
    "receipt_handle": null
  }
}`

func TestParseEnvelope_Decode(t *testing.T) {
	env, err := wire.ParseEnvelope([]byte(sampleEnvelope))
	require.NoError(t, err)
	assert.Equal(t, "pending", env.Status())

	ec, err := wire.Decode(env, clock.Real{})
	require.NoError(t, err)

	ev := ec.Event
	assert.Equal(t, "evnt-1", ev.ID)
	assert.Equal(t, eventmodel.EventTypeDeleteAssets, ev.EventType)
	assert.Equal(t, eventmodel.OpDeleteAssets, ev.Operation)
	assert.Equal(t, eventmodel.EventStatusPending, ev.Status)
	assert.Equal(t, "schm-a", ev.Body)
	assert.Equal(t, "u-1", ev.UserID)
	assert.Equal(t, 2, ev.RetryCount)
	assert.True(t, ev.IsAuthorized)
	assert.Nil(t, ev.WaitTime)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), ev.CreatedAt)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := wire.ParseEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestDecode_NoAfter(t *testing.T) {
	env, err := wire.ParseEnvelope([]byte(`{"before": {"id": "x"}}`))
	require.NoError(t, err)
	assert.Equal(t, "", env.Status())

	_, err = wire.Decode(env, clock.Real{})
	assert.Error(t, err)
}

func TestDecode_StatusCaseInsensitive(t *testing.T) {
	env, err := wire.ParseEnvelope([]byte(`{"after": {"id": "e", "status": "PENDING", "created_at": "2025-06-01T10:00:00Z", "expires_at": "2025-06-01T11:00:00Z"}}`))
	require.NoError(t, err)
	assert.Equal(t, "pending", env.Status())

	ec, err := wire.Decode(env, clock.Real{})
	require.NoError(t, err)
	assert.Equal(t, eventmodel.EventStatusPending, ec.Event.Status)
}

func TestParseTimestamp_ISO(t *testing.T) {
	got := wire.ParseTimestamp("2025-06-01T10:00:00.123Z", clock.Real{})
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 123000000, time.UTC), got)
}

func TestParseTimestamp_ISOWithOffset(t *testing.T) {
	got := wire.ParseTimestamp("2025-06-01T12:00:00+02:00", clock.Real{})
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), got)
}

func TestParseTimestamp_UnixMillis(t *testing.T) {
	got := wire.ParseTimestamp("1748772000000", clock.Real{})
	assert.Equal(t, time.UnixMilli(1748772000000).UTC(), got)
}

func TestParseTimestamp_UnparseableFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := wire.ParseTimestamp("yesterday-ish", clock.Real{})
	assert.True(t, !got.Before(before.Truncate(time.Second)))
}

func TestParseTimestamp_EmptyFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	got := wire.ParseTimestamp("", clock.Real{})
	assert.True(t, !got.Before(before.Truncate(time.Second)))
}
