package domain

import (
	"context"
	"time"

	"shopflow/internal/pkg/event"
)

// Repository 是库存账本与预留的持久化端口。
type Repository interface {
	// Atomic 在一个事务内执行 fn，fn 返回错误时整体回滚（包括写入 outbox 的事件）。
	Atomic(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	FindInventory(ctx context.Context, productID int64) (*Inventory, error)
	ListByStatus(ctx context.Context, statuses ...StockStatus) ([]*Inventory, error)
	// FindExpiredReservations 返回 expiresAt < now 的 PENDING 预留快照，最多 limit 条
	FindExpiredReservations(ctx context.Context, now time.Time, limit int) ([]*Reservation, error)
}

// TxRepository 只能在 Atomic 回调中使用。Lock* 方法对行加排他锁，
// 加锁顺序固定为先库存行、再预留行。
type TxRepository interface {
	LockInventory(ctx context.Context, productID int64) (*Inventory, error)
	CreateInventory(ctx context.Context, inv *Inventory) error
	SaveInventory(ctx context.Context, inv *Inventory) error
	DeleteInventory(ctx context.Context, productID int64) error

	// LockReservationFor 优先返回 (orderID, productID) 的 PENDING 预留，没有则返回最近的一条
	LockReservationFor(ctx context.Context, orderID string, productID int64) (*Reservation, error)
	LockReservation(ctx context.Context, id int64) (*Reservation, error)
	CreateReservation(ctx context.Context, r *Reservation) error
	SaveReservation(ctx context.Context, r *Reservation) error

	// Publish 把事件写入同一事务的 outbox
	Publish(ctx context.Context, events ...event.Envelope) error
}
