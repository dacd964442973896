package observability

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"
)

// SinkConfig tunes the async batched log sink.
type SinkConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	KafkaBrokers  []string
	KafkaTopic    string
}

// BatchSink buffers log records in memory and flushes them on a timer or
// when the batch fills, optionally mirroring them to Kafka for centralized
// aggregation. It is wired as a zerolog output so every structured log call
// lands in the buffer without the caller knowing about batching at all.
type BatchSink struct {
	cfg    SinkConfig
	writer *kafka.Writer

	mu   sync.Mutex
	buf  []json.RawMessage
	flushCh chan struct{}
	done chan struct{}

	logger zerolog.Logger
}

// NewBatchSink constructs a BatchSink and starts its background flush loop.
// When cfg.KafkaBrokers is empty, records are buffered and dropped on
// flush (no such config in single-process deployments without a broker).
func NewBatchSink(cfg SinkConfig, logger zerolog.Logger) *BatchSink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	s := &BatchSink{
		cfg:     cfg,
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.FlushInterval,
			Async:        true,
		}
	}
	go s.loop()
	return s
}

// Write implements io.Writer so a BatchSink can be set as a zerolog output:
// each call is one JSON log record, appended to the buffer.
func (s *BatchSink) Write(p []byte) (int, error) {
	record := append(json.RawMessage(nil), p...)
	s.mu.Lock()
	s.buf = append(s.buf, record)
	full := len(s.buf) >= s.cfg.BatchSize
	s.mu.Unlock()
	if full {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

func (s *BatchSink) loop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flushNow()
		case <-s.flushCh:
			s.flushNow()
		case <-s.done:
			s.flushNow()
			return
		}
	}
}

func (s *BatchSink) flushNow() {
	s.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()
	if len(batch) == 0 || s.writer == nil {
		return
	}
	msgs := make([]kafka.Message, len(batch))
	for i, b := range batch {
		msgs[i] = kafka.Message{Value: b}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.writer.WriteMessages(ctx, msgs...); err != nil {
		s.logger.Warn().Err(err).Int("batch_size", len(msgs)).Msg("log sink kafka flush failed")
	}
}

// Close flushes any buffered records and stops the background loop.
func (s *BatchSink) Close() error {
	close(s.done)
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
