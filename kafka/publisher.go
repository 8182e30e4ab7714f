// Package kafka publishes snapshot pointer updates to a Kafka topic,
// so that readers caching snapshots can be notified of new ones.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/serde"
	"github.com/get-eventually/go-eventually-snapshot/snapshot"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

var _ snapshot.PointerObserver = &PointerPublisher{}

// PointerUpdated is the message published on every snapshot pointer update.
type PointerUpdated struct {
	StreamID            event.StreamID  `json:"stream_id"`
	LastSnapshotVersion version.Version `json:"last_snapshot_version"`
	RecordedAt          time.Time       `json:"recorded_at"`
}

// MessageWriter is the subset of *kafka.Writer used by the PointerPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PointerPublisher is a snapshot.PointerObserver that publishes
// a PointerUpdated message for every pointer update.
//
// Messages are keyed by Event Stream id, so updates of the same
// Event Stream land on the same partition, in order.
type PointerPublisher struct {
	writer MessageWriter
	serde  serde.Bytes[PointerUpdated]
	now    func() time.Time
}

// NewPointerPublisher returns a PointerPublisher writing to the specified topic.
func NewPointerPublisher(brokers []string, topic string) *PointerPublisher {
	return NewPointerPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond, //nolint:mnd // Pointer updates are small and latency sensitive.
	})
}

// NewPointerPublisherWithWriter returns a PointerPublisher using
// the provided MessageWriter.
func NewPointerPublisherWithWriter(writer MessageWriter) *PointerPublisher {
	return &PointerPublisher{
		writer: writer,
		serde:  serde.NewJSON[PointerUpdated](),
		now:    time.Now,
	}
}

// PointerUpdated implements the snapshot.PointerObserver interface.
func (p *PointerPublisher) PointerUpdated(ctx context.Context, id event.StreamID, v version.Version) error {
	now := p.now().UTC()

	data, err := p.serde.Serialize(PointerUpdated{
		StreamID:            id,
		LastSnapshotVersion: v,
		RecordedAt:          now,
	})
	if err != nil {
		return fmt.Errorf("kafka.PointerPublisher: failed to marshal message, %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(id),
		Value: data,
		Time:  now,
	}); err != nil {
		return fmt.Errorf("kafka.PointerPublisher: failed to publish message, %w", err)
	}

	return nil
}

// Close closes the underlying writer, flushing pending messages.
func (p *PointerPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka.PointerPublisher: failed to close writer, %w", err)
	}

	return nil
}
