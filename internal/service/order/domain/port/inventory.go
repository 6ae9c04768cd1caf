package port

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientStock 库存服务明确答复库存不足
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrAlreadyConfirmed 预留在之前的调用中已经确认
	ErrAlreadyConfirmed = errors.New("inventory: reservation already confirmed")
	// ErrRejected 库存服务返回了其他业务失败
	ErrRejected = errors.New("inventory: request rejected")
)

// InventoryService 是库存服务的出站端口。
// 传输失败与 success=false 同样返回错误，调用方一律按失败处理。
type InventoryService interface {
	// ReserveStock 为给定的订单预占库存。
	ReserveStock(ctx context.Context, orderNumber string, productID int64, qty int) error

	ConfirmStock(ctx context.Context, orderNumber string, productID int64) error

	// ReleaseStock 是 ReserveStock 的补偿操作，用于释放预占的库存。
	ReleaseStock(ctx context.Context, orderNumber string, productID int64) error
}
