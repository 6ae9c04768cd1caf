// internal/pkg/outbox/publisher.go
package outbox

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/mq"
)

// Publisher 把一条出站记录投递到消息系统。
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// KafkaPublisher 使用一个不绑定 topic 的 writer，按记录上的 Topic 路由。
type KafkaPublisher struct {
	writer mq.MessageWriter
	tracer trace.Tracer
}

func NewKafkaPublisher(writer mq.MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, tracer: otel.Tracer("outbox")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec Record) error {
	// 还原写入事件时的追踪上下文，让消费端的 span 挂在原始请求下面
	carrier := propagation.MapCarrier{}
	if len(rec.Headers) > 0 {
		_ = json.Unmarshal(rec.Headers, &carrier)
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	ctx, span := p.tracer.Start(ctx, "outbox.Publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", rec.Topic),
		attribute.String("event.type", rec.EventType),
		attribute.String("event.id", rec.EventID),
	)

	msg := kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.MsgKey),
		Value: rec.Payload,
		Headers: []kafka.Header{
			{Key: event.HeaderEventType, Value: []byte(rec.EventType)},
			{Key: event.HeaderEventID, Value: []byte(rec.EventID)},
		},
	}
	if err := mq.ProduceMessage(ctx, p.writer, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return err
	}
	return nil
}
