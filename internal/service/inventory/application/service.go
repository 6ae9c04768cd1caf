package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopflow/internal/pkg/event"
	"shopflow/internal/pkg/logger"
	"shopflow/internal/pkg/metrics"
	"shopflow/internal/service/inventory/domain"
)

// Options 控制预留服务的行为，零值字段使用默认值。
type Options struct {
	HoldDuration     time.Duration
	DefaultThreshold int
	Clock            func() time.Time
}

// ReservationService 负责库存账本与预留状态机，每个变更都在一个事务内同时修改
// 账本行、预留行和 outbox。
type ReservationService struct {
	repo             domain.Repository
	cache            StockCache
	hold             time.Duration
	defaultThreshold int
	now              func() time.Time
	tracer           trace.Tracer
}

func NewReservationService(repo domain.Repository, cache StockCache, opts Options) *ReservationService {
	if cache == nil {
		cache = noopCache{}
	}
	if opts.HoldDuration <= 0 {
		opts.HoldDuration = domain.DefaultHoldDuration
	}
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = domain.DefaultLowStockThreshold
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ReservationService{
		repo:             repo,
		cache:            cache,
		hold:             opts.HoldDuration,
		defaultThreshold: opts.DefaultThreshold,
		now:              opts.Clock,
		tracer:           otel.Tracer("inventory-service"),
	}
}

func (s *ReservationService) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish 记录 span 状态与 reservation 指标
func finish(span trace.Span, op string, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ReservationOps.WithLabelValues(op, metrics.ResultFailure).Inc()
		return
	}
	metrics.ReservationOps.WithLabelValues(op, metrics.ResultSuccess).Inc()
}

// CheckStock 查询可承诺量是否满足 qty，读取数据库而不是缓存
func (s *ReservationService) CheckStock(ctx context.Context, productID int64, qty int) (*CheckResult, error) {
	ctx, span := s.start(ctx, "inventory.CheckStock", attribute.Int64("product.id", productID))
	defer span.End()

	inv, err := s.repo.FindInventory(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &CheckResult{
		ProductID:         productID,
		IsAvailable:       qty > 0 && inv.Available() >= qty,
		AvailableQuantity: inv.Available(),
	}, nil
}

// ReserveStock 为订单占用库存，创建 PENDING 预留。
func (s *ReservationService) ReserveStock(ctx context.Context, orderID string, productID int64, qty int) (err error) {
	ctx, span := s.start(ctx, "inventory.ReserveStock",
		attribute.String("order.id", orderID), attribute.Int64("product.id", productID), attribute.Int("quantity", qty))
	defer func() { finish(span, "reserve", err) }()

	if qty <= 0 {
		return errors.Wrapf(domain.ErrInvalidQuantity, "reserve %d", qty)
	}

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		inv, err := tx.LockInventory(ctx, productID)
		if err != nil {
			return err
		}
		existing, err := tx.LockReservationFor(ctx, orderID, productID)
		switch {
		case err == nil && existing.IsPending():
			return errors.Wrapf(domain.ErrReservationExists, "order %s product %d", orderID, productID)
		case err != nil && !errors.Is(err, domain.ErrReservationNotFound):
			return err
		}

		if err := inv.Hold(qty); err != nil {
			return err
		}
		now := s.now()
		r := domain.NewReservation(orderID, productID, qty, now, s.hold)
		if err := tx.CreateReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
		return tx.Publish(ctx, event.MustNew(event.StockReservedPayload{
			ProductID:         productID,
			OrderID:           orderID,
			ReservedQuantity:  qty,
			AvailableQuantity: inv.Available(),
			StockStatus:       string(inv.Status()),
		}, now))
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Int64("product_id", productID).Int("quantity", qty).Msg("reserve stock failed")
		return err
	}
	invalidate(ctx, s.cache, productID)
	logger.Ctx(ctx).Info().Str("order_id", orderID).Int64("product_id", productID).Int("quantity", qty).Msg("stock reserved")
	return nil
}

// ConfirmStock 把预留转为实际扣减。
func (s *ReservationService) ConfirmStock(ctx context.Context, orderID string, productID int64) (err error) {
	ctx, span := s.start(ctx, "inventory.ConfirmStock",
		attribute.String("order.id", orderID), attribute.Int64("product.id", productID))
	defer func() { finish(span, "confirm", err) }()

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		inv, r, err := lockPair(ctx, tx, orderID, productID)
		if err != nil {
			return err
		}
		if err := r.Confirm(); err != nil {
			return err
		}
		if err := inv.Deduct(r.Quantity); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
		now := s.now()
		status := string(inv.Status())
		return tx.Publish(ctx,
			event.MustNew(event.StockConfirmedPayload{
				ProductID:         productID,
				OrderID:           orderID,
				ConfirmedQuantity: r.Quantity,
				RemainingQuantity: inv.Quantity,
				StockStatus:       status,
			}, now),
			event.MustNew(event.StockUpdatedPayload{ProductID: productID, Quantity: inv.Quantity, StockStatus: status}, now),
		)
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Int64("product_id", productID).Msg("confirm stock failed")
		return err
	}
	invalidate(ctx, s.cache, productID)
	return nil
}

// ReleaseStock 主动释放预留，归还可承诺量。
func (s *ReservationService) ReleaseStock(ctx context.Context, orderID string, productID int64) (err error) {
	ctx, span := s.start(ctx, "inventory.ReleaseStock",
		attribute.String("order.id", orderID), attribute.Int64("product.id", productID))
	defer func() { finish(span, "release", err) }()

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		inv, r, err := lockPair(ctx, tx, orderID, productID)
		if err != nil {
			return err
		}
		if err := r.Release(); err != nil {
			return err
		}
		if err := inv.Unhold(r.Quantity); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, r); err != nil {
			return err
		}
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
		return tx.Publish(ctx, event.MustNew(releasedPayload(inv, r, event.ReleaseReasonReleased), s.now()))
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Int64("product_id", productID).Msg("release stock failed")
		return err
	}
	invalidate(ctx, s.cache, productID)
	return nil
}

// lockPair 先锁账本行再锁预留行
func lockPair(ctx context.Context, tx domain.TxRepository, orderID string, productID int64) (*domain.Inventory, *domain.Reservation, error) {
	inv, err := tx.LockInventory(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	r, err := tx.LockReservationFor(ctx, orderID, productID)
	if err != nil {
		return nil, nil, err
	}
	return inv, r, nil
}

func releasedPayload(inv *domain.Inventory, r *domain.Reservation, reason event.ReleaseReason) event.StockReleasedPayload {
	return event.StockReleasedPayload{
		ProductID:         r.ProductID,
		OrderID:           r.OrderID,
		ReleasedQuantity:  r.Quantity,
		AvailableQuantity: inv.Available(),
		StockStatus:       string(inv.Status()),
		Reason:            reason,
	}
}

// GetStockInfo 返回账本快照，优先读缓存
func (s *ReservationService) GetStockInfo(ctx context.Context, productID int64) (*StockInfo, error) {
	ctx, span := s.start(ctx, "inventory.GetStockInfo", attribute.Int64("product.id", productID))
	defer span.End()

	if info, err := s.cache.Get(ctx, productID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Msg("read stock cache failed")
	} else if info != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return info, nil
	}

	inv, err := s.repo.FindInventory(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	info := toStockInfo(inv)
	if err := s.cache.Set(ctx, info); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Msg("write stock cache failed")
	}
	return info, nil
}

func (s *ReservationService) GetStockStatus(ctx context.Context, productID int64) (*StockStatusView, error) {
	info, err := s.GetStockInfo(ctx, productID)
	if err != nil {
		return nil, err
	}
	return &StockStatusView{ProductID: productID, StockStatus: info.StockStatus, AvailableQuantity: info.AvailableQuantity}, nil
}

// ListLowStock 返回 LOW_STOCK 与 OUT_OF_STOCK 的商品
func (s *ReservationService) ListLowStock(ctx context.Context) ([]*StockInfo, error) {
	ctx, span := s.start(ctx, "inventory.ListLowStock")
	defer span.End()

	invs, err := s.repo.ListByStatus(ctx, domain.StockLow, domain.StockOutOfStock)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	out := make([]*StockInfo, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toStockInfo(inv))
	}
	return out, nil
}

// UpdateStock 管理端调整在手量或阈值
func (s *ReservationService) UpdateStock(ctx context.Context, productID int64, cmd UpdateStockCommand) (info *StockInfo, err error) {
	ctx, span := s.start(ctx, "inventory.UpdateStock", attribute.Int64("product.id", productID))
	defer func() { finish(span, "update", err) }()

	var updated *domain.Inventory
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		inv, err := tx.LockInventory(ctx, productID)
		if err != nil {
			return err
		}
		if cmd.Quantity != nil {
			if err := inv.SetQuantity(*cmd.Quantity); err != nil {
				return err
			}
		}
		if cmd.LowStockThreshold != nil {
			if err := inv.SetThreshold(*cmd.LowStockThreshold); err != nil {
				return err
			}
		}
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return tx.Publish(ctx, event.MustNew(event.StockUpdatedPayload{
			ProductID: productID, Quantity: inv.Quantity, StockStatus: string(inv.Status()),
		}, s.now()))
	})
	if err != nil {
		return nil, err
	}
	invalidate(ctx, s.cache, productID)
	return toStockInfo(updated), nil
}

// CreateInventory 为新商品建立账本，重复创建返回 ErrInventoryExists
func (s *ReservationService) CreateInventory(ctx context.Context, productID int64, initialStock int) (err error) {
	ctx, span := s.start(ctx, "inventory.CreateInventory", attribute.Int64("product.id", productID))
	defer func() { finish(span, "create", err) }()

	inv, err := domain.NewInventory(productID, initialStock, s.defaultThreshold)
	if err != nil {
		return err
	}
	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		if err := tx.CreateInventory(ctx, inv); err != nil {
			return err
		}
		return tx.Publish(ctx, event.MustNew(event.StockUpdatedPayload{
			ProductID: productID, Quantity: inv.Quantity, StockStatus: string(inv.Status()),
		}, s.now()))
	})
	if err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Int64("product_id", productID).Int("initial_stock", initialStock).Msg("inventory created")
	return nil
}

// DeleteInventory 删除账本行。预留记录保留，reaper 会单独处理没有账本的过期预留。
func (s *ReservationService) DeleteInventory(ctx context.Context, productID int64) (err error) {
	ctx, span := s.start(ctx, "inventory.DeleteInventory", attribute.Int64("product.id", productID))
	defer func() { finish(span, "delete", err) }()

	err = s.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		return tx.DeleteInventory(ctx, productID)
	})
	if err != nil {
		return err
	}
	invalidate(ctx, s.cache, productID)
	logger.Ctx(ctx).Info().Int64("product_id", productID).Msg("inventory deleted")
	return nil
}
