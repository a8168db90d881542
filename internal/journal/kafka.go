package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

const defaultReadTimeout = 5 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaJournal publishes entries to a Kafka topic keyed by record kind, so
// the outcomes of one kind stay ordered within a partition.
type KafkaJournal struct {
	writer      messageWriter
	reader      messageReader
	topic       string
	readTimeout time.Duration
	log         zerolog.Logger

	mu     sync.RWMutex
	closed bool
	size   int // approximate: produced minus drained by this process
}

// NewKafkaJournal creates a producer and a consumer-group reader for the topic.
func NewKafkaJournal(config registry.InternalKafkaConfig, log zerolog.Logger) (*KafkaJournal, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if config.GroupID == "" {
		config.GroupID = "recordshift-journal"
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		BatchBytes:   int64(config.MaxMessageBytes),
		MaxAttempts:  3,
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    config.MinBytes,
		MaxBytes:    config.MaxBytes,
		MaxWait:     config.MaxWait,
		StartOffset: kafka.FirstOffset,
	})

	l := logger.Component(log, "journal")
	l.Info().Strs("brokers", config.Brokers).Str("topic", config.Topic).
		Str("group_id", config.GroupID).Msg("Kafka journal initialized")

	return newKafkaJournal(writer, reader, config.Topic, config.ReadTimeout, l), nil
}

func newKafkaJournal(writer messageWriter, reader messageReader, topic string, readTimeout time.Duration, log zerolog.Logger) *KafkaJournal {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	return &KafkaJournal{
		writer:      writer,
		reader:      reader,
		topic:       topic,
		readTimeout: readTimeout,
		log:         log,
	}
}

// Append produces the entry synchronously.
func (j *KafkaJournal) Append(ctx context.Context, entry *core.JournalEntry) error {
	if j.isClosed() {
		return ErrClosed
	}
	if err := validate(entry); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(entry.Kind),
		Value: data,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "outcome", Value: []byte(entry.Outcome)},
			{Key: "direction", Value: []byte(entry.Direction)},
		},
	}

	start := time.Now()
	if err := j.writer.WriteMessages(ctx, message); err != nil {
		j.log.Error().Err(err).Str("topic", j.topic).Dur("duration", time.Since(start)).Msg("Failed to produce journal entry")
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	j.mu.Lock()
	j.size++
	j.mu.Unlock()

	j.log.Debug().Str("topic", j.topic).Int64("record_id", entry.RecordID).
		Str("outcome", string(entry.Outcome)).Dur("duration", time.Since(start)).Msg("Produced journal entry")
	return nil
}

// Drain consumes up to max entries, committing each offset after decoding.
// It stops early when no message arrives within the read timeout.
func (j *KafkaJournal) Drain(ctx context.Context, max int) ([]*core.JournalEntry, error) {
	if j.isClosed() {
		return nil, ErrClosed
	}
	if max <= 0 {
		max = defaultDrain
	}

	out := make([]*core.JournalEntry, 0, max)
	for len(out) < max {
		readCtx, cancel := context.WithTimeout(ctx, j.readTimeout)
		message, err := j.reader.FetchMessage(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			return out, fmt.Errorf("failed to read journal message: %w", err)
		}

		var entry core.JournalEntry
		if err := json.Unmarshal(message.Value, &entry); err != nil {
			j.log.Warn().Err(err).Int("partition", message.Partition).Int64("offset", message.Offset).
				Msg("Skipping undecodable journal message")
		} else {
			out = append(out, &entry)
		}

		if err := j.reader.CommitMessages(ctx, message); err != nil {
			j.log.Warn().Err(err).Int("partition", message.Partition).Int64("offset", message.Offset).
				Msg("Failed to commit journal offset")
		}
	}

	if len(out) > 0 {
		j.mu.Lock()
		j.size -= len(out)
		if j.size < 0 {
			j.size = 0
		}
		j.mu.Unlock()
	}
	return out, ctx.Err()
}

// Size returns an approximate number of undrained entries.
func (j *KafkaJournal) Size() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.size
}

// Close closes the producer and the consumer.
func (j *KafkaJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true

	return errors.Join(j.writer.Close(), j.reader.Close())
}

func (j *KafkaJournal) isClosed() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.closed
}
