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

// Leader 决定当前实例本轮是否执行回收，ok=false 时跳过。
type Leader interface {
	Acquire(ctx context.Context) (release func(), ok bool, err error)
}

type ReaperConfig struct {
	Interval  time.Duration
	BatchSize int
	Clock     func() time.Time
}

// ReapResult 单轮回收的统计
type ReapResult struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// Reaper 周期性地把过期的 PENDING 预留转为 EXPIRED 并归还预留量。
// 每条预留在独立事务里重新加锁并复核状态，重复执行或并发执行都只会生效一次。
type Reaper struct {
	repo   domain.Repository
	cache  StockCache
	leader Leader // nil 表示单实例部署
	cfg    ReaperConfig
	tracer trace.Tracer
}

func NewReaper(repo domain.Repository, cache StockCache, leader Leader, cfg ReaperConfig) *Reaper {
	if cache == nil {
		cache = noopCache{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Reaper{repo: repo, cache: cache, leader: leader, cfg: cfg, tracer: otel.Tracer("inventory-service")}
}

// Run 按固定间隔执行，直到 ctx 结束
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("🛑 reservation reaper run failed")
			}
		}
	}
}

// RunOnce 执行一轮回收
func (r *Reaper) RunOnce(ctx context.Context) (res ReapResult, err error) {
	ctx, span := r.tracer.Start(ctx, "inventory.Reaper.RunOnce")
	defer func() {
		span.SetAttributes(
			attribute.Int("reaper.scanned", res.Scanned),
			attribute.Int("reaper.expired", res.Expired),
			attribute.Int("reaper.failed", res.Failed),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if r.leader != nil {
		release, ok, err := r.leader.Acquire(ctx)
		if err != nil {
			metrics.ReaperRuns.WithLabelValues(metrics.ResultFailure).Inc()
			return res, errors.Wrap(err, "acquire reaper leadership")
		}
		if !ok {
			metrics.ReaperRuns.WithLabelValues(metrics.ResultSkipped).Inc()
			return res, nil
		}
		defer release()
	}

	now := r.cfg.Clock()
	expired, err := r.repo.FindExpiredReservations(ctx, now, r.cfg.BatchSize)
	if err != nil {
		metrics.ReaperRuns.WithLabelValues(metrics.ResultFailure).Inc()
		return res, errors.Wrap(err, "scan expired reservations")
	}
	res.Scanned = len(expired)

	for _, snapshot := range expired {
		done, err := r.expireOne(ctx, snapshot, now)
		switch {
		case err != nil:
			res.Failed++
			logger.Ctx(ctx).Error().Err(err).
				Int64("reservation_id", snapshot.ID).
				Str("order_id", snapshot.OrderID).
				Int64("product_id", snapshot.ProductID).
				Msg("expire reservation failed")
		case done:
			res.Expired++
			metrics.ReaperExpired.Inc()
			invalidate(ctx, r.cache, snapshot.ProductID)
		default:
			res.Skipped++
		}
	}

	metrics.ReaperRuns.WithLabelValues(metrics.ResultSuccess).Inc()
	if res.Scanned > 0 {
		logger.Ctx(ctx).Info().
			Int("scanned", res.Scanned).Int("expired", res.Expired).
			Int("skipped", res.Skipped).Int("failed", res.Failed).
			Msg("reservation reaper finished")
	}
	return res, nil
}

// expireOne 在独立事务中处理一条预留。返回 false 表示该预留已被其他路径处理过。
func (r *Reaper) expireOne(ctx context.Context, snapshot *domain.Reservation, now time.Time) (bool, error) {
	var done bool
	err := r.repo.Atomic(ctx, func(ctx context.Context, tx domain.TxRepository) error {
		inv, err := tx.LockInventory(ctx, snapshot.ProductID)
		if err != nil && !errors.Is(err, domain.ErrInventoryNotFound) {
			return err
		}
		res, err := tx.LockReservation(ctx, snapshot.ID)
		if err != nil {
			return err
		}
		if !res.IsExpired(now) {
			return nil
		}
		if err := res.Expire(); err != nil {
			return err
		}
		if err := tx.SaveReservation(ctx, res); err != nil {
			return err
		}
		done = true
		// 商品已被删除时只终结预留
		if inv == nil {
			return nil
		}
		if err := inv.Unhold(res.Quantity); err != nil {
			return err
		}
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
		return tx.Publish(ctx, event.MustNew(releasedPayload(inv, res, event.ReleaseReasonExpired), now))
	})
	if err != nil {
		return false, err
	}
	return done, nil
}
