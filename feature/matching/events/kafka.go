package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBus publishes events to a kafka topic keyed by user id. Every instance reads
// with its own consumer group so all gateways see all events.
type KafkaBus struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
	logger  *zap.Logger

	mu      sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

// NewKafkaBus creates a bus. An empty groupID gets a unique per-process group.
func NewKafkaBus(brokers []string, topic, groupID string, logger *zap.Logger) *KafkaBus {
	if groupID == "" {
		groupID = "matchmaker-" + uuid.NewString()
	}
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
		brokers: brokers,
		topic:   topic,
		groupID: groupID,
		logger:  logger,
	}
}

func (b *KafkaBus) Publish(ctx context.Context, evt Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.Key),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(evt.Name)},
		},
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", evt.Name, err)
	}
	return nil
}

func (b *KafkaBus) Subscribe(ctx context.Context, handler Handler, names ...Name) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     b.brokers,
		Topic:       b.topic,
		GroupID:     b.groupID,
		StartOffset: kafka.LastOffset,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			b.logger.Error(fmt.Sprintf(msg, args...))
		}),
	})

	b.mu.Lock()
	b.readers = append(b.readers, reader)
	b.mu.Unlock()

	accept := nameFilter(names)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				b.logger.Error("Failed to read event", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			var evt Event
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				b.logger.Warn("Discarding malformed event", zap.Int64("offset", msg.Offset), zap.Error(err))
				continue
			}
			if !accept(evt.Name) {
				continue
			}
			deliver(ctx, b.logger, handler, evt)
		}
	}()
	return nil
}

// Close closes the writer and every reader.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	readers := b.readers
	b.readers = nil
	b.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.wg.Wait()
	if err := b.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
