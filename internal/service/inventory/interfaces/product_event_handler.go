package interfaces

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/logger"
	"shopflow/internal/service/inventory/domain"
)

// InventoryLifecycle 是商品事件驱动的库存台账操作
type InventoryLifecycle interface {
	CreateInventory(ctx context.Context, productID int64, initialStock int) error
	DeleteInventory(ctx context.Context, productID int64) error
}

// ProductEventHandler 消费 product-events，为新商品建账、为删除的商品清理台账。
type ProductEventHandler struct {
	service InventoryLifecycle
}

func NewProductEventHandler(service InventoryLifecycle) *ProductEventHandler {
	return &ProductEventHandler{service: service}
}

// Handle 实现 mq.HandlerFunc。返回错误的消息会被投递到死信主题。
func (h *ProductEventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	env, payload, err := event.Parse(msg.Value)
	if err != nil {
		if errors.Is(err, event.ErrUnknownType) {
			logger.Ctx(ctx).Debug().Str("event_type", string(env.EventType)).Msg("ignore product event")
			return nil
		}
		return err
	}

	switch p := payload.(type) {
	case *event.ProductCreatedPayload:
		err := h.service.CreateInventory(ctx, p.ProductID, p.InitialStock)
		// 重复投递
		if errors.Is(err, domain.ErrInventoryExists) {
			logger.Ctx(ctx).Info().Int64("product_id", p.ProductID).Msg("inventory already exists, skip")
			return nil
		}
		return err
	case *event.ProductDeletedPayload:
		err := h.service.DeleteInventory(ctx, p.ProductID)
		if errors.Is(err, domain.ErrInventoryNotFound) {
			return nil
		}
		return err
	default:
		logger.Ctx(ctx).Debug().Str("event_type", string(env.EventType)).Msg("ignore non-product event")
		return nil
	}
}
