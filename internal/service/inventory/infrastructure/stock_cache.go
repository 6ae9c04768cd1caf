package infrastructure

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"shopflow/internal/pkg/redis"
	"shopflow/internal/service/inventory/application"
)

const stockCachePrefix = "inventory:stock:"

// RedisStockCache 把库存快照以 JSON 缓存在 redis 中
type RedisStockCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStockCache(client *redis.Client, ttl time.Duration) *RedisStockCache {
	return &RedisStockCache{client: client, ttl: ttl}
}

func stockKey(productID int64) string {
	return stockCachePrefix + strconv.FormatInt(productID, 10)
}

func (c *RedisStockCache) Get(ctx context.Context, productID int64) (*application.StockInfo, error) {
	var info application.StockInfo
	if err := c.client.GetJSON(ctx, stockKey(productID), &info); err != nil {
		if errors.Is(err, redis.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &info, nil
}

func (c *RedisStockCache) Set(ctx context.Context, info *application.StockInfo) error {
	return c.client.SetJSON(ctx, stockKey(info.ProductID), info, c.ttl)
}

func (c *RedisStockCache) Invalidate(ctx context.Context, productID int64) error {
	return c.client.Del(ctx, stockKey(productID))
}
