package wsbroadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SendWithoutClientsIsNoop(t *testing.T) {
	b := New()
	calls := 0
	b.RegisterSnapshot(StreamHealthState, func() (any, bool) {
		calls++
		return map[string]any{"ok": true}, true
	})

	require.NotPanics(t, func() { b.Send(StreamHealthState) })
	assert.Equal(t, 1, calls)
}

func TestBroadcaster_SendSkipsUnregisteredStream(t *testing.T) {
	b := New()
	require.NotPanics(t, func() { b.Send(StreamLQIUpdate) })
}

func TestBroadcaster_SendSkipsWhenSnapshotterDeclinesToRender(t *testing.T) {
	b := New()
	calls := 0
	b.RegisterSnapshot(StreamDevicesDelta, func() (any, bool) {
		calls++
		return nil, false
	})
	b.Send(StreamDevicesDelta)
	assert.Equal(t, 1, calls)
}

func TestBroadcaster_DupSuppression_IdenticalPayloadWithinWindowSuppressed(t *testing.T) {
	b := New()
	payload := map[string]any{"devices": []string{"a"}}
	b.RegisterSnapshot(StreamDevicesDelta, func() (any, bool) { return payload, true })

	b.Send(StreamDevicesDelta)
	seqAfterFirst := b.seq

	b.Send(StreamDevicesDelta)
	seqAfterSecond := b.seq

	// The second send's payload is byte-identical to the first within the
	// dup-suppression window, so it must not consume a new sequence number.
	assert.Equal(t, seqAfterFirst, seqAfterSecond)
}

func TestBroadcaster_DupSuppression_ChangedPayloadSendsAgain(t *testing.T) {
	b := New()
	n := 0
	b.RegisterSnapshot(StreamDevicesDelta, func() (any, bool) {
		n++
		return map[string]any{"count": n}, true
	})

	b.Send(StreamDevicesDelta)
	seqAfterFirst := b.seq

	b.Send(StreamDevicesDelta)
	seqAfterSecond := b.seq

	assert.Greater(t, seqAfterSecond, seqAfterFirst)
}

func TestBroadcaster_ClientCountAndMetricsStartAtZero(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.ClientCount())
	m := b.Metrics()
	assert.Zero(t, m.ConnectionsTotal)
	assert.Zero(t, m.DroppedFramesTotal)
}

func TestBroadcaster_NoteReconnectIncrementsMetric(t *testing.T) {
	b := New()
	b.NoteReconnect()
	b.NoteReconnect()
	assert.Equal(t, uint64(2), b.Metrics().ReconnectCount)
}

func TestBroadcaster_ScheduleDebouncedCoalescesBursts(t *testing.T) {
	b := New()
	calls := 0
	b.RegisterSnapshot(StreamDevicesDelta, func() (any, bool) {
		calls++
		return map[string]any{"n": calls}, true
	})

	for i := 0; i < 5; i++ {
		b.scheduleDebounced(StreamDevicesDelta, 20*time.Millisecond)
	}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, calls)
}
