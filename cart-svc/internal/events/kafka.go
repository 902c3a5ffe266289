package events

import (
	"context"
	"encoding/json"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink streams cart events to the analytics topic, keyed by owner so
// one cart's events stay ordered.
type KafkaSink struct {
	Writer MessageWriter
}

func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{Writer: writer}
}

var _ Sink = (*KafkaSink)(nil)

func (p *KafkaSink) Forward(ctx context.Context, evt domain.CartEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Owner),
		Value: payload,
	})
}
