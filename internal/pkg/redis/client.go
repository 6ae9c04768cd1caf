// internal/pkg/redis/client.go
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// ErrMiss 表示 key 不存在。
var ErrMiss = errors.New("redis: cache miss")

// Client 封装 go-redis，提供 JSON 读写。
type Client struct {
	rdb goredis.UniversalClient
}

// NewClient 创建客户端并 Ping 一次，addr 支持逗号分隔的集群地址。
func NewClient(ctx context.Context, addrs []string, password string, db int) (*Client, error) {
	rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    addrs,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return &Client{rdb: rdb}, nil
}

// Wrap 直接包装一个已有的 go-redis 客户端。
func Wrap(rdb goredis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) GetJSON(ctx context.Context, key string, out any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return errors.Wrapf(err, "redis get %s", key)
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return errors.Wrapf(c.rdb.Set(ctx, key, raw, ttl).Err(), "redis set %s", key)
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return errors.Wrap(c.rdb.Del(ctx, keys...).Err(), "redis del")
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
