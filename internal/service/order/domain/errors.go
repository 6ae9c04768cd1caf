package domain

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	ErrForbidden               = errors.New("operation not permitted for role")
	ErrUnknownStatus           = errors.New("unknown order status")
	ErrCartEmpty               = errors.New("cart is empty")
	ErrProductUnavailable      = errors.New("product unavailable")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrStockReservationFailed  = errors.New("stock reservation failed")
	ErrStockConfirmationFailed = errors.New("stock confirmation failed")
	ErrConcurrentUpdate        = errors.New("order was modified concurrently")
	ErrDuplicateOrderNumber    = errors.New("order number already exists")
)

// ErrCancellationNotAllowed 仍是一种非法状态迁移，调用方按 ErrInvalidStatusTransition 匹配即可
var ErrCancellationNotAllowed = errors.Wrap(ErrInvalidStatusTransition, "cancellation not allowed")

// CartValidationError 携带购物车服务返回的校验失败原因
type CartValidationError struct {
	Reasons []string
}

func (e *CartValidationError) Error() string {
	return "cart validation failed: " + strings.Join(e.Reasons, "; ")
}
