package events

import (
	"context"
	"fmt"
	"time"

	"clinicbook/pkg/kafka"
	"clinicbook/pkg/model"
)

const Source = "clinicbook"

// Publisher announces occupancy changes. Delivery is best-effort and never
// part of the claim or release outcome.
type Publisher interface {
	Publish(ctx context.Context, evt model.OccupancyEvent) error
}

type MessageWriter interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt model.OccupancyEvent) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	msg, err := NewMessage(evt)
	if err != nil {
		return err
	}
	return p.writer.Publish(ctx, msg)
}

// NewMessage keys the record by slot ID so events for one slot stay ordered.
func NewMessage(evt model.OccupancyEvent) (kafka.Message, error) {
	msg, err := kafka.NewMessage().
		WithKey(evt.SlotID).
		WithEventType(string(evt.Type)).
		WithSchemaVersion("1").
		WithSource(Source).
		WithValue(evt).
		Build()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode occupancy event: %w", err)
	}
	return msg, nil
}

// Decode reverses NewMessage. Unknown event types are rejected as permanent
// failures so they go straight to the dead-letter topic.
func Decode(msg kafka.Message) (model.OccupancyEvent, error) {
	var evt model.OccupancyEvent
	if err := msg.DecodeValue(&evt); err != nil {
		return evt, kafka.NewPermanentError("malformed occupancy event", err)
	}
	switch evt.Type {
	case model.SlotClaimed, model.SlotReleased:
	default:
		return evt, kafka.NewPermanentError(fmt.Sprintf("unknown occupancy event type %q", evt.Type), nil)
	}
	if evt.SlotID == "" {
		return evt, kafka.NewPermanentError("occupancy event without slot id", nil)
	}
	return evt, nil
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.OccupancyEvent) error { return nil }
