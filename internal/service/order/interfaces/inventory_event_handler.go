package interfaces

import (
	"context"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/logger"
)

// InventoryEventHandler 消费 inventory-events，只做记录。
// 过期释放的预留会以 warn 级别输出，订单本身不会因此自动取消。
type InventoryEventHandler struct{}

func NewInventoryEventHandler() *InventoryEventHandler {
	return &InventoryEventHandler{}
}

// Handle 实现 mq.HandlerFunc，无法解析的消息返回错误进入死信主题
func (h *InventoryEventHandler) Handle(ctx context.Context, msg kafka.Message) error {
	env, payload, err := event.Parse(msg.Value)
	if err != nil {
		if errors.Is(err, event.ErrUnknownType) {
			logger.Ctx(ctx).Debug().Str("event_type", string(env.EventType)).Msg("ignore inventory event")
			return nil
		}
		return err
	}

	l := logger.Ctx(ctx).With().Str("event_id", env.EventID).Str("event_type", string(env.EventType)).Logger()
	switch p := payload.(type) {
	case *event.StockReservedPayload:
		l.Info().Str("order_number", p.OrderID).Int64("product_id", p.ProductID).
			Int("quantity", p.ReservedQuantity).Msg("stock reserved")
	case *event.StockConfirmedPayload:
		l.Info().Str("order_number", p.OrderID).Int64("product_id", p.ProductID).
			Int("quantity", p.ConfirmedQuantity).Msg("stock confirmed")
	case *event.StockReleasedPayload:
		e := l.Info()
		if p.Reason == event.ReleaseReasonExpired {
			e = l.Warn()
		}
		e.Str("order_number", p.OrderID).Int64("product_id", p.ProductID).
			Int("quantity", p.ReleasedQuantity).Str("reason", string(p.Reason)).Msg("stock released")
	case *event.StockUpdatedPayload:
		l.Debug().Int64("product_id", p.ProductID).Int("quantity", p.Quantity).Str("stock_status", p.StockStatus).Msg("stock updated")
	default:
		l.Debug().Msg("ignore non-inventory event")
	}
	return nil
}
