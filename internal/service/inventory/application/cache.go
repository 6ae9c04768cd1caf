package application

import (
	"context"

	"shopflow/internal/pkg/logger"
)

// StockCache 缓存库存快照。Get 未命中时返回 (nil, nil)。
type StockCache interface {
	Get(ctx context.Context, productID int64) (*StockInfo, error)
	Set(ctx context.Context, info *StockInfo) error
	Invalidate(ctx context.Context, productID int64) error
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*StockInfo, error) { return nil, nil }
func (noopCache) Set(context.Context, *StockInfo) error          { return nil }
func (noopCache) Invalidate(context.Context, int64) error        { return nil }

// invalidate 在事务提交之后调用，失败只记录日志，缓存会随 TTL 自然过期。
func invalidate(ctx context.Context, cache StockCache, productIDs ...int64) {
	for _, id := range productIDs {
		if err := cache.Invalidate(ctx, id); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", id).Msg("invalidate stock cache failed")
		}
	}
}
