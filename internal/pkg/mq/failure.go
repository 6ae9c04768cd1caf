// internal/pkg/mq/failure.go
package mq

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"shopflow/internal/pkg/logger"
)

const (
	HeaderOriginalTopic     = "dlt-original-topic"
	HeaderOriginalPartition = "dlt-original-partition"
	HeaderOriginalOffset    = "dlt-original-offset"
	HeaderExceptionFqcn     = "dlt-exception-fqcn"
	HeaderExceptionMessage  = "dlt-exception-message"
)

// FailureHandler 把处理失败的消息投递到死信主题，保留原始位置和错误信息。
type FailureHandler struct {
	writer   MessageWriter
	dltTopic string
}

func NewFailureHandler(writer MessageWriter, dltTopic string) *FailureHandler {
	return &FailureHandler{writer: writer, dltTopic: dltTopic}
}

func (h *FailureHandler) Handle(ctx context.Context, msg kafka.Message, cause error) {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionFqcn, Value: []byte(fmt.Sprintf("%T", cause))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(cause.Error())},
	)

	dlt := kafka.Message{Topic: h.dltTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := h.writer.WriteMessages(ctx, dlt); err != nil {
		logger.Ctx(ctx).Error().Err(err).
			Str("original_topic", msg.Topic).
			Int64("original_offset", msg.Offset).
			Msg("🚨 CRITICAL: failed to route message to dead letter topic")
		return
	}
	logger.Ctx(ctx).Warn().Err(cause).
		Str("original_topic", msg.Topic).
		Str("dlt_topic", h.dltTopic).
		Msg("message routed to dead letter topic")
}
