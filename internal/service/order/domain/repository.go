// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"time"

	"shopflow/internal/pkg/event"
)

type Page struct {
	Number int // 从 1 开始
	Size   int
}

func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 || p.Size > 100 {
		p.Size = 20
	}
	return p
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// OrderRepository 定义了订单聚合的持久化接口。
// 每个写操作在一个事务内完成订单、订单行、历史与 outbox 事件的写入。
type OrderRepository interface {
	// Create 持久化新订单。订单号重复时返回 ErrDuplicateOrderNumber。
	Create(ctx context.Context, order *Order, events ...event.Envelope) error

	// UpdateStatus 以 from 作为乐观锁条件写入新状态和最新一条历史，
	// 状态已被他人修改时返回 ErrConcurrentUpdate。
	UpdateStatus(ctx context.Context, order *Order, from State, events ...event.Envelope) error

	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// CountCreatedOn 统计 day 当天（UTC）创建的订单数
	CountCreatedOn(ctx context.Context, day time.Time) (int64, error)

	ListByUser(ctx context.Context, userID string, page Page) ([]*Order, int64, error)
	ListByStatus(ctx context.Context, status State, page Page) ([]*Order, int64, error)
}
