package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"user-api/internal/domain/event"
)

// Record header names
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

// EventPublisher publishes user events as JSON records keyed by user ID,
// so all events of one user land on the same partition in order
type EventPublisher struct {
	producer *Producer
}

var _ event.Publisher = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher writing to the producer's topic
func NewEventPublisher(p *Producer) *EventPublisher {
	return &EventPublisher{producer: p}
}

// Publish implements event.Publisher
func (p *EventPublisher) Publish(ctx context.Context, evt event.UserEvent) error {
	record, err := NewEventRecord(evt)
	if err != nil {
		return err
	}
	return p.producer.ProduceWithTracing(ctx, record)
}

// NewEventRecord encodes evt into a record without a topic
func NewEventRecord(evt event.UserEvent) (*kgo.Record, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user event: %w", err)
	}
	return &kgo.Record{
		Key:   []byte(evt.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(evt.Type)},
			{Key: HeaderEventID, Value: []byte(evt.ID.String())},
		},
	}, nil
}

// DecodeEventRecord parses the JSON value of record
func DecodeEventRecord(record *kgo.Record) (event.UserEvent, error) {
	var evt event.UserEvent
	if err := json.Unmarshal(record.Value, &evt); err != nil {
		return event.UserEvent{}, fmt.Errorf("failed to decode user event at offset %d: %w", record.Offset, err)
	}
	if evt.Type == "" || !evt.UserID.IsValid() {
		return event.UserEvent{}, fmt.Errorf("malformed user event at offset %d", record.Offset)
	}
	return evt, nil
}
