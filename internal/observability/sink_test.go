package observability

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchSink_WriteBuffersWithoutKafkaConfigured(t *testing.T) {
	sink := NewBatchSink(SinkConfig{BatchSize: 10, FlushInterval: 10 * time.Millisecond}, zerolog.Nop())
	defer sink.Close()

	n, err := sink.Write([]byte(`{"level":"info","message":"hello"}`))
	require.NoError(t, err)
	assert.Positive(t, n)

	sink.mu.Lock()
	bufLen := len(sink.buf)
	sink.mu.Unlock()
	assert.Equal(t, 1, bufLen)
}

func TestBatchSink_TickerFlushesBuffer(t *testing.T) {
	sink := NewBatchSink(SinkConfig{BatchSize: 100, FlushInterval: 5 * time.Millisecond}, zerolog.Nop())
	defer sink.Close()

	_, err := sink.Write([]byte(`{"level":"info"}`))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.buf) == 0
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestBatchSink_DefaultsAppliedWhenUnset(t *testing.T) {
	sink := NewBatchSink(SinkConfig{}, zerolog.Nop())
	defer sink.Close()
	assert.Equal(t, 100, sink.cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, sink.cfg.FlushInterval)
}

func TestBatchSink_NoWriterWithoutBrokers(t *testing.T) {
	sink := NewBatchSink(SinkConfig{}, zerolog.Nop())
	defer sink.Close()
	assert.Nil(t, sink.writer)
}
