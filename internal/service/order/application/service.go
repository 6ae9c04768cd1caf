// internal/service/order/application/service.go
package application

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/metrics"
	"shopflow/internal/service/order/application/saga"
	"shopflow/internal/service/order/domain"
	"shopflow/internal/service/order/domain/port"
)

// OrderApplicationService 编排订单生命周期：下单 saga、确认、履约、取消与查询。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	cart      port.CartService
	catalog   port.ProductCatalog
	inventory port.InventoryService
	policy    port.CancellationPolicy
	now       func() time.Time
	tracer    trace.Tracer
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	cart port.CartService,
	catalog port.ProductCatalog,
	inventory port.InventoryService,
	policy port.CancellationPolicy,
) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo,
		cart:      cart,
		catalog:   catalog,
		inventory: inventory,
		policy:    policy,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer("order-service"),
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// CreateOrder 从购物车下单。每个商品一步 "预留"，最后一步持久化订单；
// 任一步失败都会释放已预留的库存，且不会留下订单记录。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, creds port.Credentials, req CreateOrderRequest) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder", trace.WithAttributes(attribute.String("user.id", creds.UserID)))
	defer span.End()

	cart, err := s.cart.GetCart(ctx, creds)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "fetch cart"))
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, fail(span, domain.ErrCartEmpty)
	}
	validation, err := s.cart.ValidateCart(ctx, creds)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "validate cart"))
	}
	if !validation.Valid {
		return nil, fail(span, &domain.CartValidationError{Reasons: validation.Errors})
	}

	now := s.now()
	// 先计数再格式化，并发同日下单可能生成相同订单号，由唯一索引兜底并触发补偿
	count, err := s.orderRepo.CountCreatedOn(ctx, now)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "count today's orders"))
	}
	orderNumber := domain.FormatOrderNumber(now, int(count)+1)
	span.SetAttributes(attribute.String("order.number", orderNumber))

	items := make([]domain.OrderItem, 0, len(cart.Items))
	workflow := saga.New("create_order")
	for _, line := range cart.Items {
		line := line
		workflow.Add(saga.Step{
			Name: "reserve:" + strconv.FormatInt(line.ProductID, 10),
			Action: func(ctx context.Context) error {
				product, err := s.catalog.GetProduct(ctx, line.ProductID)
				if err != nil {
					return errors.Wrapf(domain.ErrProductUnavailable, "product %d: %v", line.ProductID, err)
				}
				if err := s.inventory.ReserveStock(ctx, orderNumber, line.ProductID, line.Quantity); err != nil {
					return reservationError(line.ProductID, err)
				}
				unitPrice := domain.UnitPrice(product.Price, product.DiscountPrice)
				item := domain.NewOrderItem(line.ProductID, product.Name, product.SKU, unitPrice, line.Quantity)
				item.ProductImageURL = product.PrimaryImageURL()
				items = append(items, item)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return s.inventory.ReleaseStock(ctx, orderNumber, line.ProductID)
			},
		})
	}

	var order *domain.Order
	workflow.Add(saga.Step{
		Name: "persist-order",
		Action: func(ctx context.Context) error {
			o, err := domain.NewOrder(orderNumber, creds.UserID, items, decimal.Zero, req.Shipping.toDomain(), req.Notes, now)
			if err != nil {
				return err
			}
			if err := s.orderRepo.Create(ctx, o, event.MustNew(orderCreatedPayload(o), now)); err != nil {
				return err
			}
			order = o
			return nil
		},
	})

	if err := workflow.Execute(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_number", orderNumber).Str("user_id", creds.UserID).Msg("order creation aborted")
		return nil, fail(span, err)
	}

	if err := s.cart.ClearCart(ctx, creds); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_number", orderNumber).Msg("clear cart failed, order kept")
	}
	logger.Ctx(ctx).Info().Str("order_number", orderNumber).Str("final_amount", order.FinalAmount.String()).Msg("✅ order created")
	return toOrderView(order), nil
}

func reservationError(productID int64, err error) error {
	if errors.Is(err, port.ErrInsufficientStock) {
		return errors.Wrapf(domain.ErrInsufficientStock, "product %d", productID)
	}
	return errors.Wrapf(domain.ErrStockReservationFailed, "product %d: %v", productID, err)
}

func orderCreatedPayload(o *domain.Order) event.OrderCreatedPayload {
	items := make([]event.OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, event.OrderItemPayload{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return event.OrderCreatedPayload{
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		FinalAmount: o.FinalAmount,
		Status:      string(o.Status),
	}
}

// ConfirmOrder 确认每个商品的预留后把订单置为 CONFIRMED。
// 某个商品确认失败时订单保持 PENDING，可以重试；之前已确认的商品在重试时跳过。
func (s *OrderApplicationService) ConfirmOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ConfirmOrder", trace.WithAttributes(attribute.String("order.number", orderNumber)))
	defer span.End()

	order, err := s.load(ctx, orderNumber, actor)
	if err != nil {
		return nil, fail(span, err)
	}
	if !order.Status.CanTransitionTo(domain.StateConfirmed) {
		return nil, fail(span, errors.Wrapf(domain.ErrInvalidStatusTransition, "order %s: %s -> %s", orderNumber, order.Status, domain.StateConfirmed))
	}

	for _, it := range order.Items {
		err := s.inventory.ConfirmStock(ctx, orderNumber, it.ProductID)
		if errors.Is(err, port.ErrAlreadyConfirmed) {
			logger.Ctx(ctx).Info().Str("order_number", orderNumber).Int64("product_id", it.ProductID).Msg("stock already confirmed, skip")
			continue
		}
		if err != nil {
			metrics.SagaOutcomes.WithLabelValues("confirm_order", metrics.ResultFailure).Inc()
			return nil, fail(span, errors.Wrapf(domain.ErrStockConfirmationFailed, "order %s product %d: %v", orderNumber, it.ProductID, err))
		}
	}

	view, err := s.transition(ctx, order, domain.StateConfirmed, actor.UserID, "Payment confirmed",
		event.OrderConfirmedPayload{OrderNumber: order.OrderNumber, UserID: order.UserID})
	if err != nil {
		return nil, fail(span, err)
	}
	metrics.SagaOutcomes.WithLabelValues("confirm_order", metrics.ResultSuccess).Inc()
	return view, nil
}

func (s *OrderApplicationService) ProcessOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	return s.staffTransition(ctx, orderNumber, actor, domain.StateProcessing, "Order processing", nil)
}

func (s *OrderApplicationService) ShipOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	return s.staffTransition(ctx, orderNumber, actor, domain.StateShipped, "Order shipped", func(o *domain.Order) event.Payload {
		return event.OrderShippedPayload{OrderNumber: o.OrderNumber, UserID: o.UserID}
	})
}

func (s *OrderApplicationService) DeliverOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	return s.staffTransition(ctx, orderNumber, actor, domain.StateDelivered, "Order delivered", func(o *domain.Order) event.Payload {
		return event.OrderDeliveredPayload{OrderNumber: o.OrderNumber, UserID: o.UserID}
	})
}

func (s *OrderApplicationService) RefundOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	return s.staffTransition(ctx, orderNumber, actor, domain.StateRefunded, "Order refunded", nil)
}

func (s *OrderApplicationService) staffTransition(ctx context.Context, orderNumber string, actor domain.Actor, to domain.State, reason string, payload func(*domain.Order) event.Payload) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.TransitionOrder", trace.WithAttributes(
		attribute.String("order.number", orderNumber), attribute.String("order.target_status", string(to))))
	defer span.End()

	if !actor.Role.IsStaff() {
		return nil, fail(span, errors.Wrapf(domain.ErrForbidden, "%s cannot move orders to %s", actor.Role, to))
	}
	order, err := s.load(ctx, orderNumber, actor)
	if err != nil {
		return nil, fail(span, err)
	}
	var p event.Payload
	if payload != nil {
		p = payload(order)
	}
	view, err := s.transition(ctx, order, to, actor.UserID, reason, p)
	if err != nil {
		return nil, fail(span, err)
	}
	return view, nil
}

// CancelOrder 校验角色策略后释放所有商品的预留并取消订单。
// 单个释放失败只记录日志，不阻止订单进入 CANCELLED。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderNumber string, actor domain.Actor, reason string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder", trace.WithAttributes(
		attribute.String("order.number", orderNumber), attribute.String("actor.role", string(actor.Role))))
	defer span.End()

	order, err := s.load(ctx, orderNumber, actor)
	if err != nil {
		return nil, fail(span, err)
	}
	allowed, err := s.policy.CanCancel(actor.Role, order.Status)
	if err != nil {
		return nil, fail(span, errors.Wrap(err, "evaluate cancellation policy"))
	}
	if !allowed {
		return nil, fail(span, errors.Wrapf(domain.ErrCancellationNotAllowed, "role %s cannot cancel order in %s", actor.Role, order.Status))
	}
	if !order.Status.CanTransitionTo(domain.StateCancelled) {
		return nil, fail(span, errors.Wrapf(domain.ErrInvalidStatusTransition, "order %s: %s -> %s", orderNumber, order.Status, domain.StateCancelled))
	}
	if reason == "" {
		reason = "Cancelled by " + string(actor.Role)
	}

	for _, it := range order.Items {
		if err := s.inventory.ReleaseStock(ctx, orderNumber, it.ProductID); err != nil {
			metrics.SagaCompensations.WithLabelValues("cancel-release", metrics.ResultFailure).Inc()
			logger.Ctx(ctx).Error().Err(err).Str("order_number", orderNumber).Int64("product_id", it.ProductID).Msg("release stock on cancel failed, continuing")
			continue
		}
		metrics.SagaCompensations.WithLabelValues("cancel-release", metrics.ResultSuccess).Inc()
	}

	view, err := s.transition(ctx, order, domain.StateCancelled, actor.UserID, reason,
		event.OrderCancelledPayload{OrderNumber: order.OrderNumber, UserID: order.UserID, Reason: reason})
	if err != nil {
		return nil, fail(span, err)
	}
	return view, nil
}

// transition 修改内存中的订单并以原状态为条件持久化
func (s *OrderApplicationService) transition(ctx context.Context, order *domain.Order, to domain.State, changedBy, reason string, payload event.Payload) (*OrderView, error) {
	from := order.Status
	now := s.now()
	if err := order.TransitionTo(to, changedBy, reason, now); err != nil {
		return nil, err
	}
	var events []event.Envelope
	if payload != nil {
		events = append(events, event.MustNew(payload, now))
	}
	if err := s.orderRepo.UpdateStatus(ctx, order, from, events...); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("order_number", order.OrderNumber).Str("from", string(from)).Str("to", string(to)).Msg("order status changed")
	return toOrderView(order), nil
}

// load 读取订单并做归属校验，无权访问时与不存在返回同样的错误
func (s *OrderApplicationService) load(ctx context.Context, orderNumber string, actor domain.Actor) (*domain.Order, error) {
	order, err := s.orderRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order) {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", orderNumber)
	}
	return order, nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, orderNumber string, actor domain.Actor) (*OrderView, error) {
	order, err := s.load(ctx, orderNumber, actor)
	if err != nil {
		return nil, err
	}
	return toOrderView(order), nil
}

func (s *OrderApplicationService) GetOrderHistory(ctx context.Context, orderNumber string, actor domain.Actor) ([]StatusChangeView, error) {
	order, err := s.load(ctx, orderNumber, actor)
	if err != nil {
		return nil, err
	}
	return toHistoryView(order.History), nil
}

func (s *OrderApplicationService) ListOrdersByUser(ctx context.Context, userID string, page domain.Page) (*OrderPage, error) {
	page = page.Normalize()
	orders, total, err := s.orderRepo.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return toOrderPage(orders, total, page), nil
}

func (s *OrderApplicationService) ListOrdersByStatus(ctx context.Context, status domain.State, page domain.Page, actor domain.Actor) (*OrderPage, error) {
	if !actor.Role.IsStaff() {
		return nil, errors.Wrap(domain.ErrForbidden, "list orders by status")
	}
	page = page.Normalize()
	orders, total, err := s.orderRepo.ListByStatus(ctx, status, page)
	if err != nil {
		return nil, err
	}
	return toOrderPage(orders, total, page), nil
}

func toOrderPage(orders []*domain.Order, total int64, page domain.Page) *OrderPage {
	views := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toOrderView(o))
	}
	return &OrderPage{Orders: views, Total: total, Page: page.Number, Size: page.Size}
}
