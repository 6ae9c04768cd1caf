// internal/service/order/interfaces/dlt_handler.go
package interfaces

import (
	"context"

	"github.com/segmentio/kafka-go"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/metrics"
	"shopflow/internal/pkg/mq"
)

// DeadLetterHandler 消费死信主题并记录日志，消息总是直接提交
type DeadLetterHandler struct{}

func NewDeadLetterHandler() *DeadLetterHandler {
	return &DeadLetterHandler{}
}

func (h *DeadLetterHandler) Handle(ctx context.Context, msg kafka.Message) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, hd := range msg.Headers {
		headers[hd.Key] = string(hd.Value)
	}
	metrics.DeadLetters.WithLabelValues(headers[mq.HeaderOriginalTopic]).Inc()

	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_topic", headers[mq.HeaderOriginalTopic]).
		Str("original_partition", headers[mq.HeaderOriginalPartition]).
		Str("original_offset", headers[mq.HeaderOriginalOffset]).
		Str("exception_fqcn", headers[mq.HeaderExceptionFqcn]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("event_type", headers[event.HeaderEventType]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
	return nil
}
