// internal/pkg/mq/consumer.go
package mq

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"shopflow/internal/pkg/logger"
)

// MessageReader 是 *kafka.Reader 的最小接口。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// HandlerFunc 处理一条消息，ctx 已经带上了上游的追踪上下文。
type HandlerFunc func(ctx context.Context, msg kafka.Message) error

// Consumer 拉取消息并交给 HandlerFunc，失败的消息交给 FailureHandler 后照常提交 offset。
type Consumer struct {
	name           string
	reader         MessageReader
	handle         HandlerFunc
	failureHandler *FailureHandler
	wg             sync.WaitGroup
}

func NewConsumer(name string, reader MessageReader, handle HandlerFunc, failureHandler *FailureHandler) *Consumer {
	return &Consumer{name: name, reader: reader, handle: handle, failureHandler: failureHandler}
}

// Run 阻塞直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) error {
	c.wg.Add(1)
	defer c.wg.Done()
	logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("✅ Kafka consumer started")

	for {
		// 使用 FetchMessage 而不是 ReadMessage，处理完再提交
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				logger.Ctx(ctx).Info().Str("consumer", c.name).Msg("🛑 Kafka consumer shutting down")
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		carrier := KafkaHeaderCarrier(msg.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)

		if err := c.handle(msgCtx, msg); err != nil {
			if c.failureHandler != nil {
				c.failureHandler.Handle(msgCtx, msg, err)
			} else {
				logger.Ctx(msgCtx).Error().Err(err).Str("consumer", c.name).Msg("message handling failed")
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("consumer", c.name).Msg("failed to commit message")
		}
	}
}

// Close 关闭底层 reader 并等待 Run 返回。
func (c *Consumer) Close() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}
